// Package worker defines the specialist worker port and its result shapes.
package worker

import (
	"context"
	"encoding/json"

	"github.com/fundsage/FundSage/internal/domain/flow"
)

// Request carries everything a worker needs for one invocation. SubjectID is
// passed explicitly per run; workers must not consult any ambient per-request
// state.
type Request struct {
	SubjectID string
	Query     string
}

// ToolTrace is one (tool call, observation) pair produced during a worker run.
// Input and Observation are raw JSON payloads recorded verbatim in the ledger.
type ToolTrace struct {
	Tool        string
	Input       json.RawMessage
	Observation json.RawMessage
}

// Result is the tagged worker output: either plain text, or text plus a tool
// trace. A nil trace with non-empty text is the plain-text variant; adapters
// never need runtime introspection to tell the shapes apart.
type Result struct {
	Text  string
	Trace []ToolTrace
}

// Worker is the port interface for one specialist analysis worker.
type Worker interface {
	// Step returns the routing step this worker serves.
	Step() flow.Step

	// Run executes the analysis for the given request.
	Run(ctx context.Context, req Request) (*Result, error)
}
