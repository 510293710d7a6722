package flow

import "fmt"

// OrchestrationError is returned for unrecoverable faults inside the
// dispatcher loop. It carries the partial ledger so callers can inspect what
// had been gathered before the fault.
type OrchestrationError struct {
	RunID  string
	Step   Step
	Ledger []LedgerEntry
	Err    error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration failed at step %s (run %s): %v", e.Step, e.RunID, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}
