package store

import (
	"context"
	"log/slog"
	"time"
)

// StartRetentionWorker deletes executions older than retention every interval
// until ctx is cancelled. A non-positive retention disables the worker.
func StartRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		slog.Info("Execution history retention disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("Execution history retention worker started", "retention", retention, "interval", interval)

		for {
			select {
			case <-ctx.Done():
				slog.Info("Execution history retention worker stopped")
				return
			case <-ticker.C:
				prune(ctx, repo, retention)
			}
		}
	}()
}

func prune(ctx context.Context, repo Repository, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	n, err := repo.DeleteExecutionsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune execution history", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Pruned execution history", "deleted", n, "cutoff", cutoff)
	}
}
