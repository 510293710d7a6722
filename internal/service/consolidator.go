package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/port/llm"
	"github.com/fundsage/FundSage/internal/resilience"
)

// Consolidator produces the final structured answer and terminates the run.
type Consolidator struct {
	synth         llm.Synthesizer
	guard         *Guardrail
	previewLength int
	log           *slog.Logger
}

// NewConsolidator creates the consolidation step.
func NewConsolidator(synth llm.Synthesizer, guard *Guardrail, previewLength int, log *slog.Logger) *Consolidator {
	return &Consolidator{
		synth:         synth,
		guard:         guard,
		previewLength: previewLength,
		log:           log.With("service", "consolidator"),
	}
}

// Consolidate synthesizes the user-facing narrative from the full message
// history, screens it through the content guardrail, bundles whatever chart
// payloads exist in state, and marks the state terminal.
func (c *Consolidator) Consolidate(ctx context.Context, state *flow.State) *flow.FinalResult {
	summary := c.synthesize(ctx, state)

	var categories []string
	if matched := c.guard.Check(summary); len(matched) > 0 {
		c.log.InfoContext(ctx, "guardrail blocked narrative",
			"run_id", state.RunID, "categories", matched)
		summary = RefusalMessage + "\n\n" + c.dataPreview(state)
		categories = matched
	}

	result := &flow.FinalResult{
		RunID:     state.RunID,
		Summary:   summary,
		Charts:    state.Charts,
		Images:    state.Images,
		Figures:   state.Figures,
		Flags:     state.Flags,
		Guardrail: categories,
		Turns:     state.TurnCount,
		CreatedAt: time.Now().UTC(),
	}

	state.Append(flow.RoleSystem, "Run consolidated.")
	state.SetFinal(result)
	return result
}

// synthesize calls the external narrative collaborator with one bounded
// retry, falling back to the most recent substantive worker message.
func (c *Consolidator) synthesize(ctx context.Context, state *flow.State) string {
	var summary string
	err := resilience.Retry(ctx, 2, 0, func() error {
		text, synthErr := c.synth.Synthesize(ctx, state.Messages)
		if synthErr != nil {
			return synthErr
		}
		summary = text
		return nil
	})
	if err == nil && strings.TrimSpace(summary) != "" {
		return summary
	}
	if err != nil {
		c.log.WarnContext(ctx, "synthesis failed, using fallback summary",
			"run_id", state.RunID, "error", err)
	}
	return c.fallbackSummary(state)
}

// fallbackSummary scans backward for the latest worker answer, skipping raw
// tool previews and diagnostic system notes.
func (c *Consolidator) fallbackSummary(state *flow.State) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if m.Role == flow.RoleWorker && !strings.HasPrefix(m.Content, "[") {
			return m.Content
		}
	}
	if len(state.Ledger) > 0 {
		return "The analysis completed, but no narrative could be generated. " + c.dataPreview(state)
	}
	return "No data was found for this request."
}

// dataPreview joins bounded previews of the raw worker observations. Raw
// data is exempt from the guardrail, so a blocked narrative still leaves the
// caller with the underlying numbers.
func (c *Consolidator) dataPreview(state *flow.State) string {
	if len(state.Ledger) == 0 {
		return "No analysis data was gathered."
	}
	parts := make([]string, 0, len(state.Ledger))
	for i := range state.Ledger {
		entry := &state.Ledger[i]
		parts = append(parts, entry.Tool+": "+truncate(string(entry.Output), c.previewLength))
	}
	return strings.Join(parts, "\n")
}
