package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/database"
	"github.com/fundsage/FundSage/internal/port/worker"
)

// ToolDetectFraud is the trace name recorded by the fraud worker.
const ToolDetectFraud = "detect_fraud"

// ActionAutoApprove and ActionManualReview are the two recommended actions
// the fraud worker can emit.
const (
	ActionAutoApprove  = "Auto-Approve"
	ActionManualReview = "Flag for Manual Review"
)

// Confidence assigned per triggered rule; the overall confidence is the
// strongest signal, floored at the raw anomaly score.
const (
	confidenceAnomaly    = 0.95
	confidenceSuspicious = 0.90
	confidenceAmount     = 0.70
	confidenceGeo        = 0.60
)

// Fraud screens a member's latest transaction against fixed detection rules.
type Fraud struct {
	store database.Store
	log   *slog.Logger
}

// NewFraud creates the fraud worker.
func NewFraud(store database.Store, log *slog.Logger) *Fraud {
	return &Fraud{store: store, log: log.With("worker", "fraud")}
}

// Step reports the routing step this worker serves.
func (f *Fraud) Step() flow.Step { return flow.StepFraud }

// Run fetches the member's record and checks the four detection rules:
// high anomaly score, explicit suspicious flag, unusual transaction amount,
// and a geo location outside the member's home country.
func (f *Fraud) Run(ctx context.Context, req worker.Request) (*worker.Result, error) {
	rec, err := f.store.GetPensionRecord(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("fraud worker: fetch record: %w", err)
	}

	assessment := detectFraud(rec)

	f.log.InfoContext(ctx, "fraud screening complete",
		"subject_id", req.SubjectID,
		"is_fraudulent", assessment.IsFraudulent,
		"confidence", assessment.ConfidenceScore)

	text := fmt.Sprintf("No fraud indicators found; transaction recommended for %s (confidence %.2f).",
		assessment.RecommendedAction, assessment.ConfidenceScore)
	if assessment.IsFraudulent {
		text = fmt.Sprintf("%d fraud indicator(s) triggered: %s. Recommended action: %s (confidence %.2f).",
			len(assessment.RulesTriggered),
			strings.Join(assessment.RulesTriggered, "; "),
			assessment.RecommendedAction,
			assessment.ConfidenceScore)
	}

	return traceResult(text, ToolDetectFraud, req.SubjectID, assessment)
}

func detectFraud(rec *pension.Record) pension.FraudAssessment {
	var triggered []string
	confidence := rec.AnomalyScore

	if rec.AnomalyScore > 0.90 {
		confidence = maxFloat(confidence, confidenceAnomaly)
		triggered = append(triggered, fmt.Sprintf("High anomaly score (%.2f)", rec.AnomalyScore))
	}
	if rec.SuspiciousFlag {
		confidence = maxFloat(confidence, confidenceSuspicious)
		triggered = append(triggered, "Transaction carries an explicit suspicious flag")
	}
	if rec.TransactionAmount > 5000 {
		confidence = maxFloat(confidence, confidenceAmount)
		triggered = append(triggered, fmt.Sprintf(
			"Unusual transaction amount (%s)", pension.FormatMoney(rec.TransactionAmount)))
	}
	if geoMismatch(rec.GeoLocation, rec.Country) {
		confidence = maxFloat(confidence, confidenceGeo)
		triggered = append(triggered, fmt.Sprintf(
			"Transaction location %q does not match home country %q", rec.GeoLocation, rec.Country))
	}

	action := ActionAutoApprove
	if len(triggered) > 0 {
		action = ActionManualReview
	}

	return pension.FraudAssessment{
		IsFraudulent:      len(triggered) > 0,
		ConfidenceScore:   confidence,
		RulesTriggered:    triggered,
		RecommendedAction: action,
	}
}

// geoMismatch reports whether the transaction geo location names a place
// outside the member's home country. Empty values never mismatch.
func geoMismatch(geo, country string) bool {
	if geo == "" || country == "" {
		return false
	}
	g, c := strings.ToLower(strings.TrimSpace(geo)), strings.ToLower(strings.TrimSpace(country))
	return g != c && !strings.Contains(g, c)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
