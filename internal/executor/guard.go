package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/promptrunner/internal/metrics"
	"github.com/ashureev/promptrunner/internal/session"
)

// sessionGuard closes a session at most once. Close errors are logged and
// counted but never returned.
type sessionGuard struct {
	sess    session.Session
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Collector

	once sync.Once
}

func newSessionGuard(sess session.Session, timeout time.Duration, logger *slog.Logger, m *metrics.Collector) *sessionGuard {
	return &sessionGuard{sess: sess, timeout: timeout, logger: logger, metrics: m}
}

// Close releases the session on a context detached from ctx's cancellation,
// so an expired request deadline still lets the release go through.
func (g *sessionGuard) Close(ctx context.Context) {
	g.once.Do(func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()

		if err := g.sess.Close(closeCtx); err != nil {
			g.logger.Warn("Failed to close browser session", "session_id", g.sess.ID(), "error", err)
			g.metrics.RecordSessionCloseFailure()
			return
		}
		g.logger.Info("Browser session closed", "session_id", g.sess.ID())
	})
}
