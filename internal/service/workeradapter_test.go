package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/port/worker"
)

func newTestAdapter(t *testing.T, workers ...worker.Worker) *WorkerAdapter {
	t.Helper()
	reg := worker.NewRegistry()
	for _, w := range workers {
		reg.Register(w)
	}
	return NewWorkerAdapter(reg, 200, testLogger())
}

func TestWorkerAdapterInvoke(t *testing.T) {
	w := &mockWorker{step: flow.StepProjection, res: projectionResult(t)}
	a := newTestAdapter(t, w)

	state := flow.NewState("run-1", "member-1", "What will my pension be?")
	delta := a.Invoke(context.Background(), flow.StepProjection, state)

	if len(delta.Entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(delta.Entries))
	}
	entry := delta.Entries[0]
	if entry.Tool != "project_pension" || entry.Worker != flow.StepProjection {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.ID == "" {
		t.Error("ledger entry must carry an ID")
	}
	// Observation is preserved byte-for-byte.
	if !bytes.Equal(entry.Output, w.res.Trace[0].Observation) {
		t.Error("ledger output must be the exact observation bytes")
	}

	// Worker text plus one preview per trace.
	if len(delta.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(delta.Messages))
	}
	if delta.Messages[0].Role != flow.RoleWorker {
		t.Errorf("expected worker role, got %s", delta.Messages[0].Role)
	}
	if !strings.HasPrefix(delta.Messages[1].Content, "[project_pension]") {
		t.Errorf("preview message should name the tool, got %q", delta.Messages[1].Content)
	}
}

func TestWorkerAdapterPassesSubjectID(t *testing.T) {
	var gotReq worker.Request
	w := &captureWorker{step: flow.StepRisk, onRun: func(req worker.Request) { gotReq = req }}
	a := newTestAdapter(t, w)

	state := flow.NewState("run-1", "member-42", "risk please")
	a.Invoke(context.Background(), flow.StepRisk, state)

	if gotReq.SubjectID != "member-42" {
		t.Errorf("subject ID must be threaded per run, got %q", gotReq.SubjectID)
	}
	if gotReq.Query != "risk please" {
		t.Errorf("expected latest user query, got %q", gotReq.Query)
	}
}

type captureWorker struct {
	step  flow.Step
	onRun func(worker.Request)
}

func (c *captureWorker) Step() flow.Step { return c.step }
func (c *captureWorker) Run(_ context.Context, req worker.Request) (*worker.Result, error) {
	c.onRun(req)
	return &worker.Result{Text: "done"}, nil
}

func TestWorkerAdapterNoUserMessage(t *testing.T) {
	w := &mockWorker{step: flow.StepRisk, res: riskResult(t)}
	a := newTestAdapter(t, w)

	state := flow.NewState("run-1", "member-1", "query")
	state.Messages = nil // degenerate: transcript lost

	delta := a.Invoke(context.Background(), flow.StepRisk, state)
	if len(delta.Entries) != 0 {
		t.Error("degenerate case must not write ledger entries")
	}
	if len(delta.Messages) != 1 || delta.Messages[0].Role != flow.RoleSystem {
		t.Fatalf("expected one diagnostic message, got %+v", delta.Messages)
	}
	if w.calls != 0 {
		t.Error("worker must not run without a user message")
	}
}

func TestWorkerAdapterRetriesOnce(t *testing.T) {
	w := &flakyWorker{step: flow.StepFraud, failures: 1, res: fraudResult(t)}
	a := newTestAdapter(t, w)

	state := flow.NewState("run-1", "member-1", "check fraud")
	delta := a.Invoke(context.Background(), flow.StepFraud, state)

	if w.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", w.calls)
	}
	if len(delta.Entries) != 1 {
		t.Errorf("retry success should still produce the ledger entry, got %d", len(delta.Entries))
	}
}

func TestWorkerAdapterFailureDegradesToDiagnostic(t *testing.T) {
	w := &mockWorker{step: flow.StepFraud, err: errors.New("db down")}
	a := newTestAdapter(t, w)

	state := flow.NewState("run-1", "member-1", "check fraud")
	delta := a.Invoke(context.Background(), flow.StepFraud, state)

	if w.calls != 2 {
		t.Errorf("expected 2 attempts before degrading, got %d", w.calls)
	}
	if len(delta.Entries) != 0 {
		t.Error("failed worker must not write ledger entries")
	}
	if len(delta.Messages) != 1 || delta.Messages[0].Role != flow.RoleSystem {
		t.Fatalf("expected one diagnostic message, got %+v", delta.Messages)
	}
}

type flakyWorker struct {
	step     flow.Step
	failures int
	res      *worker.Result
	calls    int
}

func (f *flakyWorker) Step() flow.Step { return f.step }
func (f *flakyWorker) Run(context.Context, worker.Request) (*worker.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient")
	}
	return f.res, nil
}

func TestWorkerAdapterUnknownStep(t *testing.T) {
	a := newTestAdapter(t) // empty registry

	state := flow.NewState("run-1", "member-1", "anything")
	delta := a.Invoke(context.Background(), flow.StepRisk, state)

	if len(delta.Messages) != 1 || delta.Messages[0].Role != flow.RoleSystem {
		t.Fatalf("expected diagnostic for unregistered step, got %+v", delta.Messages)
	}
}

func TestWorkerAdapterTruncatesPreviewOnly(t *testing.T) {
	long := strings.Repeat("x", 500)
	w := &mockWorker{step: flow.StepRisk, res: structuredResult(t, "analyze_risk_profile",
		`{"summary":"`+long+`"}`, "text")}

	reg := worker.NewRegistry()
	reg.Register(w)
	a := NewWorkerAdapter(reg, 50, testLogger())

	state := flow.NewState("run-1", "member-1", "risk")
	delta := a.Invoke(context.Background(), flow.StepRisk, state)

	preview := delta.Messages[1].Content
	if len(preview) > len("[analyze_risk_profile] ")+50+len("...") {
		t.Errorf("preview not truncated: %d chars", len(preview))
	}
	// Full payload survives in the ledger untouched.
	if len(delta.Entries[0].Output) <= 500 {
		t.Error("ledger output must keep the full observation")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("short string unchanged, got %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("expected hello..., got %q", got)
	}
	if got := truncate("unbounded", 0); got != "unbounded" {
		t.Errorf("zero max means unbounded, got %q", got)
	}
}
