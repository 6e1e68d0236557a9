package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/promptrunner/internal/browser"
	"github.com/ashureev/promptrunner/internal/domain"
)

// Actions a planner may request.
const (
	ActionClick    = "click"
	ActionType     = "type"
	ActionPress    = "press"
	ActionScroll   = "scroll"
	ActionNavigate = "navigate"
	ActionWait     = "wait"
)

const defaultScroll = 600

// PlanInput is everything a planner sees before choosing the next action.
type PlanInput struct {
	Instruction string
	Step        int
	MaxSteps    int
	Observation browser.Observation
	Screenshot  []byte
	History     []domain.AgentStep
}

// Decision is the planner's choice for one step.
type Decision struct {
	Thought  string `json:"thought"`
	Action   string `json:"action"`
	Selector string `json:"selector"`
	Value    string `json:"value"`
	Done     bool   `json:"done"`
	Success  *bool  `json:"success"`
	Result   string `json:"result"`
}

// Planner picks the next browser action.
type Planner interface {
	Next(ctx context.Context, in PlanInput) (Decision, error)
}

// Describe renders the decision as a short action label.
func (d Decision) Describe() string {
	switch strings.ToLower(d.Action) {
	case ActionClick:
		return "Clicou em " + d.Selector
	case ActionType:
		return fmt.Sprintf("Digitou %q em %s", d.Value, d.Selector)
	case ActionPress:
		return "Pressionou " + d.Value
	case ActionScroll:
		return "Rolou a página"
	case ActionNavigate:
		return "Navegou para " + d.Value
	case ActionWait:
		return "Aguardou"
	default:
		return d.Action
	}
}

// ScrollDelta returns the vertical scroll distance, defaulting to one screen down.
func (d Decision) ScrollDelta() int {
	v := strings.TrimSpace(d.Value)
	switch strings.ToLower(v) {
	case "", "down":
		return defaultScroll
	case "up":
		return -defaultScroll
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultScroll
	}
	return n
}

// ParseDecision extracts a Decision from model output. The JSON object may be
// wrapped in prose or a fenced code block, and the prose may contain braces of
// its own; the first brace that starts a decodable object wins.
func ParseDecision(text string) (Decision, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return Decision{}, fmt.Errorf("no JSON object in planner output: %q", truncate(text, 200))
	}

	var decodeErr error
	for start >= 0 {
		var d Decision
		err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&d)
		if err == nil {
			if !d.Done && d.Action == "" {
				return Decision{}, fmt.Errorf("planner decision has neither action nor done")
			}
			return d, nil
		}
		if decodeErr == nil {
			decodeErr = err
		}
		next := strings.Index(text[start+1:], "{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return Decision{}, fmt.Errorf("decode planner decision: %w", decodeErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
