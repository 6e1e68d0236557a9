package api

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/promptrunner/internal/domain"
	"github.com/ashureev/promptrunner/internal/executor"
	"github.com/ashureev/promptrunner/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	mu    sync.Mutex
	out   *executor.Outcome
	err   error
	got   executor.Request
	calls int
}

func (f *fakeRunner) Run(_ context.Context, req executor.Request, _ ...executor.RunOption) (*executor.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = req
	return f.out, f.err
}

type fakeRepo struct {
	mu      sync.Mutex
	execs   map[string]*domain.Execution
	pingErr error
	limit   int
}

func newFakeRepo(execs ...*domain.Execution) *fakeRepo {
	r := &fakeRepo{execs: make(map[string]*domain.Execution)}
	for _, e := range execs {
		r.execs[e.ID] = e
	}
	return r
}

func (f *fakeRepo) SaveExecution(_ context.Context, exec *domain.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs[exec.ID] = exec
	return nil
}

func (f *fakeRepo) GetExecution(_ context.Context, id string) (*domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec, ok := f.execs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return exec, nil
}

func (f *fakeRepo) ListExecutions(_ context.Context, limit int) ([]*domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	out := make([]*domain.Execution, 0, len(f.execs))
	for _, e := range f.execs {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) DeleteExecutionsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error                 { return nil }
