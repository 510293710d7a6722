package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/fundsage/FundSage/internal/domain"
	"github.com/fundsage/FundSage/internal/domain/chart"
	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/database"
	"github.com/fundsage/FundSage/internal/port/messagequeue"
	"github.com/fundsage/FundSage/internal/port/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// mockClassifier returns scripted steps in order, then repeats the last one.
type mockClassifier struct {
	steps []flow.Step
	errs  []error
	calls int
}

func (m *mockClassifier) Classify(context.Context, string) (flow.Step, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if len(m.steps) == 0 {
		return flow.StepFinish, nil
	}
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	return m.steps[i], nil
}

type mockSynthesizer struct {
	text  string
	err   error
	calls int
}

func (m *mockSynthesizer) Synthesize(context.Context, []flow.Message) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// mockWorker runs a canned result under a fixed step.
type mockWorker struct {
	step  flow.Step
	res   *worker.Result
	err   error
	calls int
}

func (m *mockWorker) Step() flow.Step { return m.step }

func (m *mockWorker) Run(context.Context, worker.Request) (*worker.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.res, nil
}

type panicWorker struct{ step flow.Step }

func (p *panicWorker) Step() flow.Step { return p.step }
func (p *panicWorker) Run(context.Context, worker.Request) (*worker.Result, error) {
	panic("worker state corrupted")
}

type mockRenderer struct {
	png []byte
	err error
}

func (m *mockRenderer) Rasterize(context.Context, chart.Spec) ([]byte, error) {
	return m.png, m.err
}

// memStore is an in-memory database.Store for archive tests.
type memStore struct {
	runs map[string]*database.RunRecord
}

func newMemStore() *memStore {
	return &memStore{runs: map[string]*database.RunRecord{}}
}

func (s *memStore) GetPensionRecord(context.Context, string) (*pension.Record, error) {
	return nil, domain.ErrNotFound
}
func (s *memStore) UpsertPensionRecord(context.Context, *pension.Record) error { return nil }
func (s *memStore) SaveRun(_ context.Context, rec *database.RunRecord) error {
	s.runs[rec.ID] = rec
	return nil
}
func (s *memStore) GetRun(_ context.Context, id string) (*database.RunRecord, error) {
	rec, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}
func (s *memStore) ListRunsBySubject(_ context.Context, subjectID string, limit int) ([]database.RunRecord, error) {
	var out []database.RunRecord
	for _, rec := range s.runs {
		if rec.SubjectID == subjectID {
			out = append(out, *rec)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// projectionResult builds a worker result shaped like the projection worker's.
func projectionResult(t *testing.T) *worker.Result {
	t.Helper()
	return structuredResult(t, "project_pension",
		`{"starting_balance":"$250,000","projected_balance":"$1,419,282","retirement_goal":"$1,600,000","progress_to_goal":"15.6%","status":"Needs Attention","projection_period_years":25,"target_retirement_age":65,"savings_rate":"15%","assumed_annual_return":5}`,
		"Projected balance at age 65 is $1,419,282.")
}

func riskResult(t *testing.T) *worker.Result {
	t.Helper()
	return structuredResult(t, "analyze_risk_profile",
		`{"risk_level":"Medium","risk_score":4.5,"positive_factors":[],"risks_identified":["concentration"],"summary":"Overall risk level is Medium."}`,
		"Overall risk level is Medium.")
}

func fraudResult(t *testing.T) *worker.Result {
	t.Helper()
	return structuredResult(t, "detect_fraud",
		`{"is_fraudulent":true,"confidence_score":0.9,"rules_triggered":["suspicious flag"],"recommended_action":"Flag for Manual Review"}`,
		"1 fraud indicator(s) triggered.")
}

func structuredResult(t *testing.T, tool, observation, text string) *worker.Result {
	t.Helper()
	return &worker.Result{
		Text: text,
		Trace: []worker.ToolTrace{{
			Tool:        tool,
			Input:       []byte(`{"subject_id":"member-1"}`),
			Observation: []byte(observation),
		}},
	}
}

// mockQueue records every published message in order.
type mockQueue struct {
	published []publishedMsg
}

type publishedMsg struct {
	Subject string
	Data    []byte
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.published = append(q.published, publishedMsg{Subject: subject, Data: data})
	return nil
}

func (q *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) bySubject(subject string) [][]byte {
	var out [][]byte
	for _, m := range q.published {
		if m.Subject == subject {
			out = append(out, m.Data)
		}
	}
	return out
}
