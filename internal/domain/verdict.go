package domain

// FinalStatus is the normalized end state of an execution.
type FinalStatus string

const (
	// FinalStatusCompleted means the agent explicitly reported success.
	FinalStatusCompleted FinalStatus = "✅ Concluído com sucesso"
	// FinalStatusCompletedWithCaveats means the run finished without an explicit success.
	FinalStatusCompletedWithCaveats FinalStatus = "⚠️ Concluído com ressalvas"
	// FinalStatusFailed means the pipeline aborted with an error.
	FinalStatusFailed FinalStatus = "❌ Falhou"
)

// Verdict is the normalized summary of one agent execution.
// Success is nil when the agent did not report a success flag.
type Verdict struct {
	Success     *bool
	Summary     string
	TotalSteps  int
	Details     string
	FinalStatus FinalStatus
}

// Succeeded reports whether the verdict carries an explicit success.
func (v Verdict) Succeeded() bool {
	return v.Success != nil && *v.Success
}
