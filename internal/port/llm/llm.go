// Package llm defines the ports for the language-model collaborators the
// orchestration core consumes: routing classification and final synthesis.
package llm

import (
	"context"

	"github.com/fundsage/FundSage/internal/domain/flow"
)

// Classifier decides the first route for a fresh query. Implementations
// return one of the closed step names; the caller coerces anything else to
// finish.
type Classifier interface {
	Classify(ctx context.Context, conversation string) (flow.Step, error)
}

// Synthesizer produces the final user-facing narrative from the full message
// history.
type Synthesizer interface {
	Synthesize(ctx context.Context, history []flow.Message) (string, error)
}
