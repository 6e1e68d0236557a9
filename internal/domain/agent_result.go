package domain

// AgentStep is one sub-step reported by an agent run.
type AgentStep struct {
	Action      string `json:"action,omitempty"`
	Thought     string `json:"thought,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// Label returns the first non-empty of action, thought and observation.
func (s AgentStep) Label() string {
	switch {
	case s.Action != "":
		return s.Action
	case s.Thought != "":
		return s.Thought
	default:
		return s.Observation
	}
}

// AgentResult is the raw outcome of an agent execution.
// Fields the agent did not report stay at their zero value; Success is nil when absent.
type AgentResult struct {
	Success     *bool       `json:"success,omitempty"`
	Result      string      `json:"result,omitempty"`
	Observation string      `json:"observation,omitempty"`
	Steps       []AgentStep `json:"steps,omitempty"`
	Completed   bool        `json:"completed"`
}
