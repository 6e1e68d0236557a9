// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/promptrunner/internal/domain"
)

// ErrNotFound is returned when an execution does not exist.
var ErrNotFound = errors.New("execution not found")

// Repository defines the interface for persisting execution summaries.
type Repository interface {
	// SaveExecution inserts or replaces an execution summary.
	SaveExecution(ctx context.Context, exec *domain.Execution) error

	// GetExecution retrieves an execution by ID.
	GetExecution(ctx context.Context, id string) (*domain.Execution, error)

	// ListExecutions returns the most recent executions, newest first.
	ListExecutions(ctx context.Context, limit int) ([]*domain.Execution, error)

	// DeleteExecutionsBefore removes executions that started before cutoff.
	DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
