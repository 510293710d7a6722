package flow

// Event is emitted once per dispatcher state transition for progress display.
type Event struct {
	RunID    string `json:"run_id"`
	Turn     int    `json:"turn"`
	Step     Step   `json:"step"`
	Detail   string `json:"detail,omitempty"`
	Messages int    `json:"messages"` // transcript length after the transition
	Entries  int    `json:"ledger_entries"`
}

// RunRequest is the input to one orchestrated run. SubjectID identifies whose
// pension data the workers query; it is carried here, per run, precisely so
// no ambient global slot is needed.
type RunRequest struct {
	SubjectID string `json:"subject_id"`
	Query     string `json:"query"`
}
