package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/promptrunner/internal/store"
)

// ListExecutions returns recent execution summaries.
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "execution history disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	execs, err := h.repo.ListExecutions(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list executions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"executions": execs,
		"count":      len(execs),
	})
}

// GetExecution returns one execution summary.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "execution history disabled")
		return
	}

	id := chi.URLParam(r, "id")
	exec, err := h.repo.GetExecution(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get execution", "execution_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to get execution")
		return
	}

	JSON(w, http.StatusOK, exec)
}
