package executor

import (
	"strings"

	"github.com/ashureev/promptrunner/internal/domain"
)

// Fallback texts used when the agent result omits a field.
const (
	FallbackSummary = "Tarefa executada"
	FallbackDetails = "Execução concluída"
	FallbackAction  = "Ação executada"

	detailsSeparator = " → "
)

// AssembleVerdict turns a raw agent result into a Verdict. An absent success
// flag stays nil and yields CompletedWithCaveats.
func AssembleVerdict(raw *domain.AgentResult, totalSteps int) domain.Verdict {
	if raw == nil {
		raw = &domain.AgentResult{}
	}

	v := domain.Verdict{
		Success:     raw.Success,
		Summary:     FallbackSummary,
		TotalSteps:  totalSteps,
		Details:     FallbackDetails,
		FinalStatus: domain.FinalStatusCompletedWithCaveats,
	}

	switch {
	case raw.Result != "":
		v.Summary = raw.Result
	case raw.Observation != "":
		v.Summary = raw.Observation
	}

	if len(raw.Steps) > 0 {
		parts := make([]string, 0, len(raw.Steps))
		for _, s := range raw.Steps {
			if s.Action != "" {
				parts = append(parts, s.Action)
			} else {
				parts = append(parts, s.Thought)
			}
		}
		v.Details = strings.Join(parts, detailsSeparator)
	}

	if v.Succeeded() {
		v.FinalStatus = domain.FinalStatusCompleted
	}
	return v
}

// stepAction labels a recorded step for an agent sub-step.
func stepAction(s domain.AgentStep) string {
	if label := s.Label(); label != "" {
		return label
	}
	return FallbackAction
}
