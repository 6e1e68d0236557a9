// Package executor drives one prompt through a browser session and collects
// the step timeline and verdict.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ashureev/promptrunner/internal/agent"
	"github.com/ashureev/promptrunner/internal/config"
	"github.com/ashureev/promptrunner/internal/domain"
	"github.com/ashureev/promptrunner/internal/metrics"
	"github.com/ashureev/promptrunner/internal/session"
)

// Step labels for the fixed stages.
const (
	ActionFinalState = "Estado final da página"
	navigatedPrefix  = "Navegou para "

	failureSummaryPrefix = "Erro durante execução: "
	historySaveTimeout   = 5 * time.Second
)

// Request is one prompt to execute.
type Request struct {
	Prompt string `json:"prompt"`
	URL    string `json:"url,omitempty"`
}

// Config is everything an Executor needs that comes from the environment.
type Config struct {
	Credentials config.Credentials
	// Required lists credential names checked before any remote call, in order.
	Required     []string
	Model        session.ModelConfig
	MaxSteps     int
	Deadline     time.Duration
	CloseTimeout time.Duration
}

// AgentRunner performs a natural-language task inside an open session.
type AgentRunner interface {
	Execute(ctx context.Context, b agent.Browser, task agent.Task) (*domain.AgentResult, error)
}

// HistoryRecorder persists execution summaries.
type HistoryRecorder interface {
	SaveExecution(ctx context.Context, exec *domain.Execution) error
}

// Outcome is the result of a run that got past validation. Err is set when
// the run failed after validation; Verdict is only meaningful when Err is nil.
type Outcome struct {
	ID         string
	SessionID  string
	Prompt     string
	URL        string
	Steps      []domain.StepRecord
	Verdict    domain.Verdict
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run completed without error.
func (o *Outcome) Succeeded() bool { return o.Err == nil }

// ErrorMessage returns the failure message, or "" on success.
func (o *Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ErrorDetail returns the failure with its stack trace.
func (o *Outcome) ErrorDetail() string {
	if o.Err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", o.Err)
}

// FailureSummary is the verdict summary used in failure payloads.
func (o *Outcome) FailureSummary() string {
	return failureSummaryPrefix + o.ErrorMessage()
}

// Execution returns the persisted summary of the run.
func (o *Outcome) Execution() *domain.Execution {
	exec := &domain.Execution{
		ID:          o.ID,
		SessionID:   o.SessionID,
		Prompt:      o.Prompt,
		URL:         o.URL,
		Success:     o.Succeeded(),
		FinalStatus: domain.FinalStatusFailed,
		TotalSteps:  len(o.Steps),
		Error:       o.ErrorMessage(),
		StartedAt:   o.StartedAt,
		FinishedAt:  o.FinishedAt,
	}
	if o.Succeeded() {
		exec.FinalStatus = o.Verdict.FinalStatus
	}
	return exec
}

// Executor runs prompts. It is safe for concurrent use; every Run owns its
// own session.
type Executor struct {
	cfg      Config
	provider session.Provider
	runner   AgentRunner
	history  HistoryRecorder
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithHistory persists a summary of every run.
func WithHistory(h HistoryRecorder) Option {
	return func(e *Executor) { e.history = h }
}

// WithMetrics records execution metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor.
func New(cfg Config, provider session.Provider, runner AgentRunner, opts ...Option) *Executor {
	e := &Executor{
		cfg:      cfg,
		provider: provider,
		runner:   runner,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type runOptions struct {
	observers []StepObserver
}

// RunOption configures a single Run.
type RunOption func(*runOptions)

// WithStepObserver calls fn for every step as it is appended.
func WithStepObserver(fn StepObserver) RunOption {
	return func(o *runOptions) { o.observers = append(o.observers, fn) }
}

// Run validates req and, if valid, executes it. The returned error is only
// ErrMissingPrompt or a *config.MissingCredentialError; in those cases no
// session was opened. Any later failure is reported in Outcome.Err, and the
// session is always closed before Run returns.
func (e *Executor) Run(ctx context.Context, req Request, opts ...RunOption) (*Outcome, error) {
	if err := Validate(req, e.cfg.Credentials, e.cfg.Required); err != nil {
		if errors.Is(err, ErrMissingPrompt) {
			e.metrics.RecordExecution(metrics.OutcomeValidationError, 0)
		} else {
			e.metrics.RecordExecution(metrics.OutcomeConfigError, 0)
		}
		return nil, err
	}

	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	out := &Outcome{
		ID:        uuid.NewString(),
		Prompt:    req.Prompt,
		URL:       req.URL,
		StartedAt: e.now().UTC(),
	}
	logger := e.logger.With("execution_id", out.ID)
	logger.Info("Execution started", "url", req.URL, "provider", e.provider.Name())

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Deadline)
	out.Err = e.execute(runCtx, req, out, &ro, logger)
	cancel()
	out.FinishedAt = e.now().UTC()

	e.finish(ctx, out, logger)
	return out, nil
}

func (e *Executor) execute(ctx context.Context, req Request, out *Outcome, ro *runOptions, logger *slog.Logger) error {
	sess, err := e.provider.Open(ctx, e.cfg.Credentials, e.cfg.Model)
	if err != nil {
		return e.wrap(ctx, err)
	}
	out.SessionID = sess.ID()
	e.metrics.RecordSessionOpened(e.provider.Name())
	logger.Info("Browser session opened", "session_id", out.SessionID)

	guard := newSessionGuard(sess, e.cfg.CloseTimeout, logger, e.metrics)
	defer guard.Close(ctx)

	rec := &stepRecorder{
		shooter:   sess,
		now:       e.now,
		observers: ro.observers,
		onRecord:  e.metrics.RecordStep,
	}
	defer func() { out.Steps = rec.Steps() }()

	if req.URL != "" {
		logger.Info("Navigating", "url", req.URL)
		if err := sess.Navigate(ctx, req.URL); err != nil {
			return e.wrap(ctx, err)
		}
		if _, err := rec.Record(ctx, navigatedPrefix+req.URL); err != nil {
			return e.wrap(ctx, err)
		}
	}

	result, err := e.runner.Execute(ctx, sess, agent.Task{Instruction: req.Prompt, MaxSteps: e.cfg.MaxSteps})
	if err != nil {
		return e.wrap(ctx, err)
	}
	if result == nil {
		result = &domain.AgentResult{}
	}
	logger.Info("Agent finished", "agent_steps", len(result.Steps), "completed", result.Completed)

	for _, s := range result.Steps {
		if _, err := rec.Record(ctx, stepAction(s)); err != nil {
			return e.wrap(ctx, err)
		}
	}
	if _, err := rec.Record(ctx, ActionFinalState); err != nil {
		return e.wrap(ctx, err)
	}

	out.Verdict = AssembleVerdict(result, rec.Len())
	return nil
}

// wrap attaches a stack trace, naming the deadline when it caused the failure.
func (e *Executor) wrap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(err, "tempo limite de execução excedido (%s)", e.cfg.Deadline)
	}
	return errors.WithStack(err)
}

func (e *Executor) finish(ctx context.Context, out *Outcome, logger *slog.Logger) {
	duration := out.FinishedAt.Sub(out.StartedAt)

	switch {
	case !out.Succeeded():
		logger.Error("Execution failed", "session_id", out.SessionID, "steps", len(out.Steps), "error", out.Err)
		e.metrics.RecordExecution(metrics.OutcomeFailure, duration)
	case out.Verdict.Succeeded():
		logger.Info("Execution completed", "session_id", out.SessionID, "steps", len(out.Steps), "duration", duration)
		e.metrics.RecordExecution(metrics.OutcomeSuccess, duration)
	default:
		logger.Info("Execution completed with caveats", "session_id", out.SessionID, "steps", len(out.Steps), "duration", duration)
		e.metrics.RecordExecution(metrics.OutcomeCaveats, duration)
	}

	if e.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
	defer cancel()
	if err := e.history.SaveExecution(saveCtx, out.Execution()); err != nil {
		logger.Warn("Failed to save execution history", "error", err)
	}
}
