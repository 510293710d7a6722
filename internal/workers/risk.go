// Package workers contains the specialist analysis workers the supervisor
// dispatches to. Each worker pulls the member's pension record, applies a
// deterministic rule set, and reports both a narrative answer and a
// structured tool trace.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/database"
	"github.com/fundsage/FundSage/internal/port/worker"
)

// ToolRiskProfile is the trace name recorded by the risk worker.
const ToolRiskProfile = "analyze_risk_profile"

// Rule weights sum to 10 so the risk score reads as out-of-ten.
const (
	weightMarketMismatch = 3.0
	weightConcentration  = 2.5
	weightDebtToIncome   = 2.5
	weightHealth         = 2.0
)

// Risk evaluates a member's exposure against fixed financial risk factors.
type Risk struct {
	store database.Store
	log   *slog.Logger
}

// NewRisk creates the risk worker.
func NewRisk(store database.Store, log *slog.Logger) *Risk {
	return &Risk{store: store, log: log.With("worker", "risk")}
}

// Step reports the routing step this worker serves.
func (r *Risk) Step() flow.Step { return flow.StepRisk }

// Run fetches the member's record and scores it against the four risk
// factors: market risk mismatch, concentration risk, debt-to-income, and
// health-related longevity risk.
func (r *Risk) Run(ctx context.Context, req worker.Request) (*worker.Result, error) {
	rec, err := r.store.GetPensionRecord(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("risk worker: fetch record: %w", err)
	}

	assessment := assessRisk(rec)

	r.log.InfoContext(ctx, "risk assessment complete",
		"subject_id", req.SubjectID,
		"risk_level", assessment.RiskLevel,
		"risk_score", assessment.RiskScore)

	return traceResult(assessment.Summary, ToolRiskProfile, req.SubjectID, assessment)
}

func assessRisk(rec *pension.Record) pension.RiskAssessment {
	var (
		score     float64
		risks     []string
		positives []string
	)

	if strings.EqualFold(rec.RiskTolerance, "Low") && rec.Volatility > 3.5 {
		score += weightMarketMismatch
		risks = append(risks, fmt.Sprintf(
			"Market risk mismatch: risk tolerance is Low but portfolio volatility is %.1f", rec.Volatility))
	} else {
		positives = append(positives, "Portfolio volatility is consistent with the stated risk tolerance")
	}

	if rec.PortfolioDiversity < 0.5 {
		score += weightConcentration
		risks = append(risks, fmt.Sprintf(
			"Concentration risk: portfolio diversity score %.2f is below 0.5", rec.PortfolioDiversity))
	} else {
		positives = append(positives, "Portfolio is well diversified")
	}

	if rec.AnnualIncome > 0 && rec.DebtLevel > 0.5*rec.AnnualIncome {
		score += weightDebtToIncome
		risks = append(risks, fmt.Sprintf(
			"High debt-to-income ratio: debt %s exceeds half of annual income %s",
			pension.FormatMoney(rec.DebtLevel), pension.FormatMoney(rec.AnnualIncome)))
	} else {
		positives = append(positives, "Debt level is manageable relative to income")
	}

	if strings.EqualFold(rec.HealthStatus, "Poor") {
		score += weightHealth
		risks = append(risks, "Longevity and health risk: reported health status is Poor")
	} else {
		positives = append(positives, "No health-related longevity concerns identified")
	}

	level := "Low"
	switch {
	case score >= 6:
		level = "High"
	case score >= 3:
		level = "Medium"
	}

	summary := fmt.Sprintf("Overall risk level is %s (score %.1f/10). %d of 4 risk factors triggered.",
		level, score, len(risks))

	return pension.RiskAssessment{
		RiskLevel:       level,
		RiskScore:       score,
		PositiveFactors: positives,
		RisksIdentified: risks,
		Summary:         summary,
	}
}

// traceResult packages a worker answer with a single recorded tool call.
func traceResult(text, tool, subjectID string, observation any) (*worker.Result, error) {
	input, err := json.Marshal(map[string]string{"subject_id": subjectID})
	if err != nil {
		return nil, fmt.Errorf("marshal tool input: %w", err)
	}
	obs, err := json.Marshal(observation)
	if err != nil {
		return nil, fmt.Errorf("marshal tool observation: %w", err)
	}
	return &worker.Result{
		Text: text,
		Trace: []worker.ToolTrace{{
			Tool:        tool,
			Input:       input,
			Observation: obs,
		}},
	}, nil
}
