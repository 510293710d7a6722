package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/port/worker"
	"github.com/fundsage/FundSage/internal/resilience"
)

// WorkerAdapter invokes one specialist worker and normalizes its output into
// a state delta. It never returns an error: every failure mode degrades to a
// diagnostic message so the dispatcher loop keeps running.
type WorkerAdapter struct {
	registry      *worker.Registry
	previewLength int
	log           *slog.Logger
}

// NewWorkerAdapter creates the adapter. previewLength bounds how much of a
// tool observation is quoted in the human-readable transcript; the full
// payload is always preserved in the ledger entry.
func NewWorkerAdapter(registry *worker.Registry, previewLength int, log *slog.Logger) *WorkerAdapter {
	return &WorkerAdapter{
		registry:      registry,
		previewLength: previewLength,
		log:           log.With("service", "worker_adapter"),
	}
}

// Invoke runs the worker registered for step against the most recent user
// message, retrying once on failure. SubjectID is threaded explicitly so
// workers never consult ambient per-request state.
func (a *WorkerAdapter) Invoke(ctx context.Context, step flow.Step, state *flow.State) flow.StateDelta {
	msg, ok := state.LastUserMessage()
	if !ok {
		// Recoverable degenerate case, not an error.
		return flow.StateDelta{Messages: []flow.Message{{
			Role:    flow.RoleSystem,
			Content: "No user message found to process.",
		}}}
	}

	w, err := a.registry.Lookup(step)
	if err != nil {
		a.log.ErrorContext(ctx, "no worker for routed step", "run_id", state.RunID, "step", step, "error", err)
		return flow.StateDelta{Messages: []flow.Message{{
			Role:    flow.RoleSystem,
			Content: fmt.Sprintf("No worker is available for step %q.", step),
		}}}
	}

	req := worker.Request{SubjectID: state.SubjectID, Query: msg.Content}

	var res *worker.Result
	err = resilience.Retry(ctx, 2, 0, func() error {
		var runErr error
		res, runErr = w.Run(ctx, req)
		return runErr
	})
	if err != nil {
		a.log.WarnContext(ctx, "worker failed after retry",
			"run_id", state.RunID, "step", step, "error", err)
		return flow.StateDelta{Messages: []flow.Message{{
			Role:    flow.RoleSystem,
			Content: fmt.Sprintf("The %s analysis could not be completed: %v", step, err),
		}}}
	}
	if res == nil || (res.Text == "" && len(res.Trace) == 0) {
		return flow.StateDelta{Messages: []flow.Message{{
			Role:    flow.RoleSystem,
			Content: fmt.Sprintf("The %s analysis returned no output.", step),
		}}}
	}

	var delta flow.StateDelta
	if res.Text != "" {
		delta.Messages = append(delta.Messages, flow.Message{Role: flow.RoleWorker, Content: res.Text})
	}
	for _, tr := range res.Trace {
		delta.Entries = append(delta.Entries, flow.LedgerEntry{
			ID:     uuid.NewString(),
			Worker: step,
			Tool:   tr.Tool,
			Input:  tr.Input,
			Output: tr.Observation,
		})
		delta.Messages = append(delta.Messages, flow.Message{
			Role:    flow.RoleWorker,
			Content: fmt.Sprintf("[%s] %s", tr.Tool, truncate(string(tr.Observation), a.previewLength)),
		})
	}
	return delta
}

// truncate bounds s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
