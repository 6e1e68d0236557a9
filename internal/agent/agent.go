// Package agent runs an LLM-planned loop of browser actions.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/promptrunner/internal/browser"
	"github.com/ashureev/promptrunner/internal/domain"
)

// ResultMaxStepsReached is the result text when the step budget runs out.
const ResultMaxStepsReached = "Limite de passos atingido antes de concluir a tarefa"

// DefaultActionTimeout bounds a single browser action. chromedp waits for a
// selector until its context ends, so a selector that never matches would
// otherwise consume the whole run.
const DefaultActionTimeout = 3 * time.Second

// Browser is the page surface the agent acts on.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Press(ctx context.Context, key string) error
	Scroll(ctx context.Context, dy int) error
	Observe(ctx context.Context) (*browser.Observation, error)
}

// Task is one natural-language instruction for the agent.
type Task struct {
	Instruction string
	MaxSteps    int
}

// Agent asks a Planner for the next action and applies it to a Browser.
type Agent struct {
	planner       Planner
	logger        *slog.Logger
	actionTimeout time.Duration
}

// Option configures an Agent.
type Option func(*Agent)

// WithActionTimeout overrides DefaultActionTimeout. Non-positive values are ignored.
func WithActionTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.actionTimeout = d
		}
	}
}

// New creates an agent driven by planner.
func New(planner Planner, logger *slog.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{planner: planner, logger: logger, actionTimeout: DefaultActionTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute runs task against b. It returns after the planner declares the
// task done or after MaxSteps actions. Planner and observation failures abort
// the run; a failed browser action is reported back to the planner instead.
func (a *Agent) Execute(ctx context.Context, b Browser, task Task) (*domain.AgentResult, error) {
	if task.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", task.MaxSteps)
	}

	var steps []domain.AgentStep
	for i := 1; i <= task.MaxSteps; i++ {
		obs, err := b.Observe(ctx)
		if err != nil {
			return nil, fmt.Errorf("observe page: %w", err)
		}
		shot, err := b.Screenshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("capture page for planner: %w", err)
		}

		dec, err := a.planner.Next(ctx, PlanInput{
			Instruction: task.Instruction,
			Step:        i,
			MaxSteps:    task.MaxSteps,
			Observation: *obs,
			Screenshot:  shot,
			History:     steps,
		})
		if err != nil {
			return nil, fmt.Errorf("plan step %d: %w", i, err)
		}

		if dec.Done {
			a.logger.Debug("Agent finished", "steps", len(steps), "success", dec.Success)
			return &domain.AgentResult{
				Success:     dec.Success,
				Result:      dec.Result,
				Observation: dec.Thought,
				Steps:       steps,
				Completed:   true,
			}, nil
		}

		step := domain.AgentStep{Action: dec.Describe(), Thought: dec.Thought}
		actCtx, cancel := context.WithTimeout(ctx, a.actionTimeout)
		err = a.apply(actCtx, b, dec)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("tempo limite da ação excedido (%s)", a.actionTimeout)
			}
			step.Observation = "falhou: " + err.Error()
			a.logger.Debug("Agent action failed", "action", step.Action, "error", err)
		} else {
			step.Observation = "ok"
		}
		steps = append(steps, step)
	}

	failed := false
	return &domain.AgentResult{
		Success:   &failed,
		Result:    ResultMaxStepsReached,
		Steps:     steps,
		Completed: false,
	}, nil
}

var errUnknownAction = errors.New("unknown action")

func (a *Agent) apply(ctx context.Context, b Browser, dec Decision) error {
	switch strings.ToLower(dec.Action) {
	case ActionClick:
		return b.Click(ctx, dec.Selector)
	case ActionType:
		return b.Type(ctx, dec.Selector, dec.Value)
	case ActionPress:
		return b.Press(ctx, dec.Value)
	case ActionScroll:
		return b.Scroll(ctx, dec.ScrollDelta())
	case ActionNavigate:
		return b.Navigate(ctx, dec.Value)
	case ActionWait:
		return nil
	default:
		return fmt.Errorf("%w %q", errUnknownAction, dec.Action)
	}
}
