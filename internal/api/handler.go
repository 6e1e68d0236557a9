// Package api provides HTTP handlers for the prompt runner.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/promptrunner/internal/executor"
	"github.com/ashureev/promptrunner/internal/store"
)

// maxRequestBody bounds the execute request payload.
const maxRequestBody = 1 << 20

// Runner executes a prompt request.
type Runner interface {
	Run(ctx context.Context, req executor.Request, opts ...executor.RunOption) (*executor.Outcome, error)
}

// Handler provides common handler utilities.
type Handler struct {
	runner Runner
	repo   store.Repository // nil when history is disabled
	logger *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(runner Runner, repo store.Repository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, repo: repo, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
