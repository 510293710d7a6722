package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/fundsage/FundSage/internal/domain"
	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/database"
	"github.com/fundsage/FundSage/internal/port/worker"
)

type stubStore struct {
	rec *pension.Record
	err error
}

func (s *stubStore) GetPensionRecord(_ context.Context, subjectID string) (*pension.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.rec == nil || s.rec.SubjectID != subjectID {
		return nil, domain.ErrNotFound
	}
	return s.rec, nil
}

func (s *stubStore) UpsertPensionRecord(context.Context, *pension.Record) error { return nil }
func (s *stubStore) SaveRun(context.Context, *database.RunRecord) error         { return nil }
func (s *stubStore) GetRun(context.Context, string) (*database.RunRecord, error) {
	return nil, domain.ErrNotFound
}
func (s *stubStore) ListRunsBySubject(context.Context, string, int) ([]database.RunRecord, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func healthyRecord() *pension.Record {
	return &pension.Record{
		SubjectID:          "member-1",
		Age:                40,
		Country:            "Germany",
		AnnualIncome:       80000,
		CurrentSavings:     250000,
		RiskTolerance:      "Medium",
		TotalAnnualContrib: 12000,
		AnnualReturnRate:   5,
		Volatility:         2.0,
		TransactionAmount:  1200,
		AnomalyScore:       0.10,
		GeoLocation:        "Berlin, Germany",
		HealthStatus:       "Good",
		DebtLevel:          10000,
		PortfolioDiversity: 0.8,
	}
}

func TestRiskWorkerLowRisk(t *testing.T) {
	w := NewRisk(&stubStore{rec: healthyRecord()}, testLogger())

	if w.Step() != flow.StepRisk {
		t.Fatalf("expected step %s, got %s", flow.StepRisk, w.Step())
	}

	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Trace) != 1 || res.Trace[0].Tool != ToolRiskProfile {
		t.Fatalf("expected one %s trace, got %+v", ToolRiskProfile, res.Trace)
	}

	var got pension.RiskAssessment
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	if got.RiskLevel != "Low" {
		t.Errorf("expected Low risk, got %s (score %v)", got.RiskLevel, got.RiskScore)
	}
	if got.RiskScore != 0 {
		t.Errorf("expected score 0, got %v", got.RiskScore)
	}
	if len(got.PositiveFactors) != 4 {
		t.Errorf("expected 4 positive factors, got %d", len(got.PositiveFactors))
	}
	if len(got.RisksIdentified) != 0 {
		t.Errorf("expected no risks, got %v", got.RisksIdentified)
	}
}

func TestRiskWorkerAllFactorsTriggered(t *testing.T) {
	rec := healthyRecord()
	rec.RiskTolerance = "Low"
	rec.Volatility = 4.2
	rec.PortfolioDiversity = 0.3
	rec.DebtLevel = 50000
	rec.HealthStatus = "Poor"

	w := NewRisk(&stubStore{rec: rec}, testLogger())
	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}

	var got pension.RiskAssessment
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	if got.RiskLevel != "High" {
		t.Errorf("expected High risk, got %s", got.RiskLevel)
	}
	if got.RiskScore != 10 {
		t.Errorf("expected score 10, got %v", got.RiskScore)
	}
	if len(got.RisksIdentified) != 4 {
		t.Errorf("expected 4 risks, got %v", got.RisksIdentified)
	}
}

func TestRiskWorkerMediumRisk(t *testing.T) {
	rec := healthyRecord()
	rec.PortfolioDiversity = 0.3 // 2.5 points

	w := NewRisk(&stubStore{rec: rec}, testLogger())
	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}

	var got pension.RiskAssessment
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	if got.RiskLevel != "Low" {
		t.Errorf("one 2.5-point factor should stay Low, got %s", got.RiskLevel)
	}

	rec.HealthStatus = "Poor" // +2.0 => 4.5 total
	res, err = w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	if got.RiskLevel != "Medium" {
		t.Errorf("expected Medium at score 4.5, got %s", got.RiskLevel)
	}
}

func TestRiskWorkerRecordMissing(t *testing.T) {
	w := NewRisk(&stubStore{}, testLogger())
	_, err := w.Run(context.Background(), worker.Request{SubjectID: "nobody"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFraudWorkerClean(t *testing.T) {
	w := NewFraud(&stubStore{rec: healthyRecord()}, testLogger())

	if w.Step() != flow.StepFraud {
		t.Fatalf("expected step %s, got %s", flow.StepFraud, w.Step())
	}

	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}

	var got pension.FraudAssessment
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	if got.IsFraudulent {
		t.Error("clean record should not be fraudulent")
	}
	if got.RecommendedAction != ActionAutoApprove {
		t.Errorf("expected %s, got %s", ActionAutoApprove, got.RecommendedAction)
	}
	if len(got.RulesTriggered) != 0 {
		t.Errorf("expected no rules, got %v", got.RulesTriggered)
	}
}

func TestFraudWorkerRules(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*pension.Record)
		confidence float64
	}{
		{
			name:       "high anomaly score",
			modify:     func(r *pension.Record) { r.AnomalyScore = 0.97 },
			confidence: 0.97,
		},
		{
			name:       "suspicious flag",
			modify:     func(r *pension.Record) { r.SuspiciousFlag = true },
			confidence: 0.90,
		},
		{
			name:       "large transaction",
			modify:     func(r *pension.Record) { r.TransactionAmount = 9000 },
			confidence: 0.70,
		},
		{
			name:       "geo mismatch",
			modify:     func(r *pension.Record) { r.GeoLocation = "Lagos, Nigeria" },
			confidence: 0.60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := healthyRecord()
			tt.modify(rec)

			w := NewFraud(&stubStore{rec: rec}, testLogger())
			res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
			if err != nil {
				t.Fatal(err)
			}

			var got pension.FraudAssessment
			if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
				t.Fatal(err)
			}
			if !got.IsFraudulent {
				t.Error("expected fraudulent")
			}
			if got.RecommendedAction != ActionManualReview {
				t.Errorf("expected %s, got %s", ActionManualReview, got.RecommendedAction)
			}
			if len(got.RulesTriggered) != 1 {
				t.Errorf("expected 1 rule, got %v", got.RulesTriggered)
			}
			if got.ConfidenceScore != tt.confidence {
				t.Errorf("expected confidence %v, got %v", tt.confidence, got.ConfidenceScore)
			}
		})
	}
}

func TestFraudWorkerGeoContainsCountry(t *testing.T) {
	rec := healthyRecord()
	rec.GeoLocation = "Munich, Germany"

	w := NewFraud(&stubStore{rec: rec}, testLogger())
	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}

	var got pension.FraudAssessment
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	if got.IsFraudulent {
		t.Errorf("geo naming the home country should not mismatch, rules: %v", got.RulesTriggered)
	}
}

func TestProjectionWorker(t *testing.T) {
	w := NewProjection(&stubStore{rec: healthyRecord()}, testLogger())

	if w.Step() != flow.StepProjection {
		t.Fatalf("expected step %s, got %s", flow.StepProjection, w.Step())
	}

	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trace) != 1 || res.Trace[0].Tool != ToolProjectPension {
		t.Fatalf("expected one %s trace, got %+v", ToolProjectPension, res.Trace)
	}

	var got pension.ProjectionOverview
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}

	// 80k income: goal = 80000*0.8*25 = 1.6M; savings 250k => 15.6%.
	if got.RetirementGoal != "$1,600,000" {
		t.Errorf("expected goal $1,600,000, got %s", got.RetirementGoal)
	}
	if got.ProgressToGoal != "15.6%" {
		t.Errorf("expected progress 15.6%%, got %s", got.ProgressToGoal)
	}
	if got.Status != "Needs Attention" {
		t.Errorf("expected Needs Attention, got %s", got.Status)
	}
	if got.ProjectionPeriodYears != 25 {
		t.Errorf("expected 25 years to retirement, got %d", got.ProjectionPeriodYears)
	}
	if got.TargetRetirementAge != 65 {
		t.Errorf("expected target age 65, got %d", got.TargetRetirementAge)
	}
	if got.SavingsRate != "15%" {
		t.Errorf("expected savings rate 15%%, got %s", got.SavingsRate)
	}
	if got.AssumedAnnualReturn != 5 {
		t.Errorf("expected 5%% return, got %v", got.AssumedAnnualReturn)
	}

	// 250000*1.05^25 + 12000*((1.05^25-1)/0.05) ~= 1,419,282.
	projected, err := pension.ParseMoney(got.ProjectedBalance)
	if err != nil {
		t.Fatal(err)
	}
	if projected < 1_400_000 || projected > 1_440_000 {
		t.Errorf("projected balance out of expected range: %v", projected)
	}

	if !strings.Contains(res.Text, got.Status) {
		t.Errorf("worker text should mention status, got %q", res.Text)
	}
}

func TestProjectionWorkerAtRetirementAge(t *testing.T) {
	rec := healthyRecord()
	rec.Age = 67

	w := NewProjection(&stubStore{rec: rec}, testLogger())
	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}

	var got pension.ProjectionOverview
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "At Retirement Age" {
		t.Errorf("expected At Retirement Age, got %s", got.Status)
	}
	if got.ProjectionPeriodYears != 0 {
		t.Errorf("expected 0 years, got %d", got.ProjectionPeriodYears)
	}
	// Past the horizon the balance stays at current savings.
	if got.ProjectedBalance != got.CurrentSavings {
		t.Errorf("expected projected %s to equal savings %s", got.ProjectedBalance, got.CurrentSavings)
	}
}

func TestProjectionWorkerDefaults(t *testing.T) {
	rec := &pension.Record{SubjectID: "member-1"}

	w := NewProjection(&stubStore{rec: rec}, testLogger())
	res, err := w.Run(context.Background(), worker.Request{SubjectID: "member-1"})
	if err != nil {
		t.Fatal(err)
	}

	var got pension.ProjectionOverview
	if err := json.Unmarshal(res.Trace[0].Observation, &got); err != nil {
		t.Fatal(err)
	}
	// Defaults: age 35, income 50k, return 5%.
	if got.ProjectionPeriodYears != 30 {
		t.Errorf("expected default horizon 30 years, got %d", got.ProjectionPeriodYears)
	}
	if got.RetirementGoal != "$1,000,000" {
		t.Errorf("expected default goal $1,000,000, got %s", got.RetirementGoal)
	}
	if got.AssumedAnnualReturn != 5 {
		t.Errorf("expected default return 5%%, got %v", got.AssumedAnnualReturn)
	}
}
