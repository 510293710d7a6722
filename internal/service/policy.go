package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/port/cache"
	"github.com/fundsage/FundSage/internal/port/llm"
	"github.com/fundsage/FundSage/internal/resilience"
	"github.com/fundsage/FundSage/internal/workers"
)

// visualKeywords is the fixed visualization-intent vocabulary checked against
// the most recent user message.
var visualKeywords = []string{"chart", "graph", "visual", "plot", "show me", "display"}

// dataPrecondition pairs a ledger tool with the user-text keywords that make
// its data worth charting even without an explicit visualization keyword.
type dataPrecondition struct {
	tool     string
	keywords []string
}

var visualPreconditions = []dataPrecondition{
	{tool: workers.ToolProjectPension, keywords: []string{"growth", "progress", "goal", "retirement", "pension", "projection"}},
	{tool: workers.ToolRiskProfile, keywords: []string{"risk"}},
	{tool: workers.ToolDetectFraud, keywords: []string{"fraud"}},
}

// Policy is the routing brain: given the current run state it names the next
// step. Decisions are re-evaluated every turn; the policy holds no state of
// its own.
type Policy struct {
	classifier llm.Classifier
	routes     cache.Cache // optional; memoizes fresh-query classifications
	routeTTL   time.Duration
	log        *slog.Logger
}

// NewPolicy creates the routing policy. routes may be nil to disable
// classification memoization.
func NewPolicy(classifier llm.Classifier, routes cache.Cache, routeTTL time.Duration, log *slog.Logger) *Policy {
	return &Policy{
		classifier: classifier,
		routes:     routes,
		routeTTL:   routeTTL,
		log:        log.With("service", "policy"),
	}
}

// Decide resolves the next step for the run in three phases: consolidate once
// visuals exist, a keyword check after any worker has run, and an LLM
// classification for a fresh query. The decision is recorded on state.Next;
// the policy is the only writer of that field.
func (p *Policy) Decide(ctx context.Context, state *flow.State) flow.Step {
	state.Next = p.decide(ctx, state)
	return state.Next
}

func (p *Policy) decide(ctx context.Context, state *flow.State) flow.Step {
	// Visualization already ran; it always precedes consolidation exactly
	// once per need.
	if state.HasVisuals() {
		return flow.StepConsolidate
	}

	if len(state.Ledger) > 0 {
		if p.wantsVisualization(state) {
			return flow.StepVisualize
		}
		return flow.StepConsolidate
	}

	return p.classify(ctx, state)
}

// wantsVisualization applies the keyword/data-precondition table to the most
// recent user message.
func (p *Policy) wantsVisualization(state *flow.State) bool {
	msg, ok := state.LastUserMessage()
	if !ok {
		return false
	}
	text := strings.ToLower(msg.Content)

	for _, kw := range visualKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, pre := range visualPreconditions {
		if !state.LedgerHasTool(pre.tool) {
			continue
		}
		for _, kw := range pre.keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}

// classify delegates a fresh query to the external routing collaborator with
// one bounded retry. Anything unrecognized, including a failed call, defaults
// to finish.
func (p *Policy) classify(ctx context.Context, state *flow.State) flow.Step {
	conversation := transcript(state.Messages)
	key := routeCacheKey(conversation)

	if p.routes != nil {
		if cached, found, err := p.routes.Get(ctx, key); err == nil && found {
			return flow.ParseStep(string(cached))
		}
	}

	var decided flow.Step
	err := resilience.Retry(ctx, 2, 0, func() error {
		step, err := p.classifier.Classify(ctx, conversation)
		if err != nil {
			return err
		}
		decided = step
		return nil
	})
	if err != nil {
		p.log.WarnContext(ctx, "classification failed, defaulting to finish",
			"run_id", state.RunID, "error", err)
		return flow.StepFinish
	}

	step := flow.ParseStep(string(decided))
	if p.routes != nil {
		_ = p.routes.Set(ctx, key, []byte(step), p.routeTTL)
	}
	return step
}

// transcript flattens the message history for the classification prompt.
func transcript(messages []flow.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

func routeCacheKey(conversation string) string {
	sum := sha256.Sum256([]byte(conversation))
	return "route:" + hex.EncodeToString(sum[:])
}
