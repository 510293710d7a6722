package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fundsage/FundSage/internal/domain/chart"
	"github.com/fundsage/FundSage/internal/domain/flow"
)

func newTestPolicy(classifier *mockClassifier) *Policy {
	return NewPolicy(classifier, nil, time.Minute, testLogger())
}

func workerRanState(t *testing.T, query, tool string) *flow.State {
	t.Helper()
	state := flow.NewState("run-1", "member-1", query)
	state.Ledger = append(state.Ledger, flow.LedgerEntry{
		ID:     "e1",
		Worker: flow.StepProjection,
		Tool:   tool,
		Output: []byte(`{}`),
	})
	return state
}

func TestPolicyVisualsPresentConsolidates(t *testing.T) {
	classifier := &mockClassifier{steps: []flow.Step{flow.StepRisk}}
	p := newTestPolicy(classifier)

	state := workerRanState(t, "show me a chart of my risk", "analyze_risk_profile")
	state.Charts["risk"] = chart.Bar("Risk score", "Risk Score", 4.5, "Score")

	if got := p.Decide(context.Background(), state); got != flow.StepConsolidate {
		t.Errorf("visuals present must consolidate, got %s", got)
	}
	if classifier.calls != 0 {
		t.Error("classifier must not run once a worker has produced data")
	}
}

func TestPolicyKeywordRoutesToVisualize(t *testing.T) {
	for _, query := range []string{
		"Show me a chart of my risk profile",
		"Can you graph this?",
		"give me a visual breakdown",
		"plot my savings",
		"show me the numbers",
		"display my progress",
	} {
		t.Run(query, func(t *testing.T) {
			p := newTestPolicy(&mockClassifier{})
			state := workerRanState(t, query, "analyze_risk_profile")
			if got := p.Decide(context.Background(), state); got != flow.StepVisualize {
				t.Errorf("expected visualize for %q, got %s", query, got)
			}
		})
	}
}

func TestPolicyDataPreconditionRoutesToVisualize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		tool  string
	}{
		{"projection data with retirement mention", "What will my pension growth look like?", "project_pension"},
		{"risk data with risk mention", "How bad is my risk?", "analyze_risk_profile"},
		{"fraud data with fraud mention", "Was that transaction fraud?", "detect_fraud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPolicy(&mockClassifier{})
			state := workerRanState(t, tt.query, tt.tool)
			if got := p.Decide(context.Background(), state); got != flow.StepVisualize {
				t.Errorf("expected visualize, got %s", got)
			}
		})
	}
}

func TestPolicyNoKeywordConsolidates(t *testing.T) {
	p := newTestPolicy(&mockClassifier{})
	// Projection data but the text has no visualization or data keyword.
	state := workerRanState(t, "How much money will I have?", "project_pension")
	if got := p.Decide(context.Background(), state); got != flow.StepConsolidate {
		t.Errorf("expected consolidate, got %s", got)
	}
}

func TestPolicyDataPreconditionNeedsMatchingTool(t *testing.T) {
	p := newTestPolicy(&mockClassifier{})
	// "risk" in the text but only projection data in the ledger.
	state := workerRanState(t, "Is my risk okay?", "project_pension")
	if got := p.Decide(context.Background(), state); got != flow.StepConsolidate {
		t.Errorf("keyword without matching ledger data must consolidate, got %s", got)
	}
}

func TestPolicyFreshQueryClassifies(t *testing.T) {
	classifier := &mockClassifier{steps: []flow.Step{flow.StepRisk}}
	p := newTestPolicy(classifier)

	state := flow.NewState("run-1", "member-1", "How risky is my portfolio?")
	if got := p.Decide(context.Background(), state); got != flow.StepRisk {
		t.Errorf("expected risk, got %s", got)
	}
	if classifier.calls != 1 {
		t.Errorf("expected 1 classifier call, got %d", classifier.calls)
	}
}

func TestPolicyClassifierFailureDefaultsToFinish(t *testing.T) {
	boom := errors.New("llm down")
	classifier := &mockClassifier{errs: []error{boom, boom}}
	p := newTestPolicy(classifier)

	state := flow.NewState("run-1", "member-1", "hello")
	if got := p.Decide(context.Background(), state); got != flow.StepFinish {
		t.Errorf("expected finish on classifier failure, got %s", got)
	}
	// One bounded retry.
	if classifier.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", classifier.calls)
	}
}

func TestPolicyClassifierRetryRecovers(t *testing.T) {
	classifier := &mockClassifier{
		steps: []flow.Step{flow.StepProjection, flow.StepProjection},
		errs:  []error{errors.New("transient"), nil},
	}
	p := newTestPolicy(classifier)

	state := flow.NewState("run-1", "member-1", "project my pension")
	if got := p.Decide(context.Background(), state); got != flow.StepProjection {
		t.Errorf("expected projection after retry, got %s", got)
	}
}

func TestPolicyUnknownClassificationCoercedToFinish(t *testing.T) {
	classifier := &mockClassifier{steps: []flow.Step{flow.Step("weather_report")}}
	p := newTestPolicy(classifier)

	state := flow.NewState("run-1", "member-1", "what's the weather?")
	if got := p.Decide(context.Background(), state); got != flow.StepFinish {
		t.Errorf("unknown step must coerce to finish, got %s", got)
	}
}

// kvCache is a trivial in-memory cache.Cache for memoization tests.
type kvCache struct{ m map[string][]byte }

func (c *kvCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.m[key]
	return v, ok, nil
}
func (c *kvCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.m[key] = value
	return nil
}
func (c *kvCache) Delete(_ context.Context, key string) error {
	delete(c.m, key)
	return nil
}

func TestPolicyMemoizesClassification(t *testing.T) {
	classifier := &mockClassifier{steps: []flow.Step{flow.StepFraud}}
	p := NewPolicy(classifier, &kvCache{m: map[string][]byte{}}, time.Minute, testLogger())

	state := flow.NewState("run-1", "member-1", "check this transaction for fraud")
	if got := p.Decide(context.Background(), state); got != flow.StepFraud {
		t.Fatalf("expected fraud, got %s", got)
	}

	// Same conversation again: served from cache, classifier untouched.
	state2 := flow.NewState("run-2", "member-1", "check this transaction for fraud")
	if got := p.Decide(context.Background(), state2); got != flow.StepFraud {
		t.Fatalf("expected fraud from cache, got %s", got)
	}
	if classifier.calls != 1 {
		t.Errorf("expected 1 classifier call, got %d", classifier.calls)
	}
}

func TestPolicyRecordsDecisionOnState(t *testing.T) {
	cases := []struct {
		name  string
		state *flow.State
		want  flow.Step
	}{
		{
			name:  "fresh query records classified step",
			state: flow.NewState("run-1", "member-1", "Am I at risk?"),
			want:  flow.StepRisk,
		},
		{
			name:  "worker ran records consolidate",
			state: workerRanState(t, "How is my pension?", "project_pension"),
			want:  flow.StepConsolidate,
		},
		{
			name:  "visual keyword records visualize",
			state: workerRanState(t, "show me a chart", "project_pension"),
			want:  flow.StepVisualize,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPolicy(&mockClassifier{steps: []flow.Step{flow.StepRisk}})
			got := p.Decide(context.Background(), tc.state)
			if got != tc.want {
				t.Fatalf("Decide = %s, want %s", got, tc.want)
			}
			if tc.state.Next != got {
				t.Errorf("state.Next = %s, decision was %s", tc.state.Next, got)
			}
		})
	}
}
