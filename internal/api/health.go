package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/promptrunner/internal/store"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     store.Repository // nil when history is disabled
	provider string
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, provider string) *HealthHandler {
	return &HealthHandler{repo: repo, provider: provider, timeout: defaultHealthCheckTimeout}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":   "healthy",
		"provider": h.provider,
		"checks":   checks,
	}
	statusCode := http.StatusOK

	switch {
	case h.repo == nil:
		checks["database"] = "disabled"
	case h.repo.Ping(ctx) != nil:
		slog.Error("Health check failed", "check", "database")
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	default:
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
