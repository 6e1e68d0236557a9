package domain

import (
	"time"
)

// Execution is the persisted summary of one request. Screenshots and
// verdict details are not stored.
type Execution struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id,omitempty"`
	Prompt      string      `json:"prompt"`
	URL         string      `json:"url,omitempty"`
	Success     bool        `json:"success"`
	FinalStatus FinalStatus `json:"final_status"`
	TotalSteps  int         `json:"total_steps"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}

// Duration returns how long the execution took.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}
