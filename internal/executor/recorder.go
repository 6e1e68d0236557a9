package executor

import (
	"context"
	"time"

	"github.com/ashureev/promptrunner/internal/domain"
)

// Screenshotter captures the current page.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// StepObserver is notified of every appended step.
type StepObserver func(domain.StepRecord)

// stepRecorder keeps the append-only, 1-based step timeline of one execution.
type stepRecorder struct {
	shooter   Screenshotter
	now       func() time.Time
	observers []StepObserver
	onRecord  func()

	steps []domain.StepRecord
}

// Record captures a screenshot and appends it as the next step. A failed
// capture appends nothing.
func (r *stepRecorder) Record(ctx context.Context, action string) (domain.StepRecord, error) {
	shot, err := r.shooter.Screenshot(ctx)
	if err != nil {
		return domain.StepRecord{}, err
	}

	step := domain.StepRecord{
		Number:     len(r.steps) + 1,
		Action:     action,
		Screenshot: shot,
		Timestamp:  r.now().UTC(),
	}
	r.steps = append(r.steps, step)

	if r.onRecord != nil {
		r.onRecord()
	}
	for _, obs := range r.observers {
		obs(step)
	}
	return step, nil
}

// Steps returns the recorded steps.
func (r *stepRecorder) Steps() []domain.StepRecord {
	return r.steps
}

// Len returns the number of recorded steps.
func (r *stepRecorder) Len() int {
	return len(r.steps)
}
