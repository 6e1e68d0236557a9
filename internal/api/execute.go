package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/promptrunner/internal/executor"
)

// RegisterRoutes registers execution routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/api/execute", h.Execute)
	r.HandleFunc("/execute", h.Execute)

	r.Route("/api/executions", func(r chi.Router) {
		r.Get("/", h.ListExecutions)
		r.Get("/{id}", h.GetExecution)
	})

	r.Get("/ws/execute", h.Stream)
}

// Execute runs a prompt and returns the step timeline and verdict.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		JSON(w, http.StatusMethodNotAllowed, messagePayload{Error: msgMethodNotAllowed, Message: msgUsePost})
		return
	}

	req := decodeRequest(w, r)
	status, body := h.run(r, req)
	JSON(w, status, body)
}

func (h *Handler) run(r *http.Request, req executor.Request, opts ...executor.RunOption) (int, any) {
	out, err := h.runner.Run(r.Context(), req, opts...)
	if err != nil {
		h.logger.Warn("Execution rejected", "error", err)
		return validationResponse(err)
	}
	return outcomeResponse(out, time.Now())
}

// decodeRequest reads the request body. A malformed body yields an empty
// request, which fails prompt validation.
func decodeRequest(w http.ResponseWriter, r *http.Request) executor.Request {
	var req executor.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		return executor.Request{}
	}
	return req
}
