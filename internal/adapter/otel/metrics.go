package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fundsage"

// Metrics holds all FundSage metric instruments.
type Metrics struct {
	RunsStarted   metric.Int64Counter
	RunsCompleted metric.Int64Counter
	RunsFailed    metric.Int64Counter
	Turns         metric.Int64Counter
	GuardrailHits metric.Int64Counter
	RunDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("fundsage.runs.started",
		metric.WithDescription("Number of analysis runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("fundsage.runs.completed",
		metric.WithDescription("Number of analysis runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("fundsage.runs.failed",
		metric.WithDescription("Number of analysis runs failed"))
	if err != nil {
		return nil, err
	}

	m.Turns, err = meter.Int64Counter("fundsage.runs.turns",
		metric.WithDescription("Supervisor turns executed"))
	if err != nil {
		return nil, err
	}

	m.GuardrailHits, err = meter.Int64Counter("fundsage.guardrail.hits",
		metric.WithDescription("Consolidated narratives blocked by the content guardrail"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("fundsage.run.duration_seconds",
		metric.WithDescription("Run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
