package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fundsage/FundSage/internal/domain/flow"
)

const tracerName = "fundsage"

// StartRunSpan starts a span for one orchestrated analysis run.
func StartRunSpan(ctx context.Context, runID, subjectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("subject.id", subjectID),
		),
	)
}

// StartStepSpan starts a span for one dispatcher step within a run.
func StartStepSpan(ctx context.Context, runID string, turn int, step flow.Step) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "step."+string(step),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.turn", turn),
			attribute.String("step", string(step)),
		),
	)
}
