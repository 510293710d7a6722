package messagequeue

// RunStartedPayload is the schema for runs.started messages.
type RunStartedPayload struct {
	RunID     string `json:"run_id"`
	SubjectID string `json:"subject_id"`
	Query     string `json:"query"`
}

// RunStepPayload is the schema for runs.step messages, one per state
// transition of the dispatcher.
type RunStepPayload struct {
	RunID   string `json:"run_id"`
	Turn    int    `json:"turn"`
	Step    string `json:"step"`
	Detail  string `json:"detail,omitempty"`
	Entries int    `json:"ledger_entries"`
}

// RunCompletedPayload is the schema for runs.completed messages.
type RunCompletedPayload struct {
	RunID   string `json:"run_id"`
	Turns   int    `json:"turns"`
	Status  string `json:"status"` // "completed" or "failed"
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}
