// Package service implements the orchestration core: the supervisor loop that
// routes a financial query across specialist workers, the visualization and
// consolidation steps, and the run archive.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fundsage/FundSage/internal/adapter/otel"
	"github.com/fundsage/FundSage/internal/adapter/ws"
	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/logger"
	"github.com/fundsage/FundSage/internal/port/broadcast"
	"github.com/fundsage/FundSage/internal/port/messagequeue"
)

// EventSink receives one event per dispatcher state transition. Used by the
// streaming run variant; may be nil.
type EventSink func(flow.Event)

// Engine is the dispatcher: a sequential state machine that asks the routing
// policy for a destination each turn, executes that step, and terminates
// through consolidation. One Engine serves many concurrent runs; all per-run
// state lives in the flow.State owned by each Run call.
type Engine struct {
	policy       *Policy
	adapter      *WorkerAdapter
	visualizer   *Visualizer
	consolidator *Consolidator

	// Optional collaborators; each may be nil.
	archive *Archive
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	metrics *otel.Metrics

	maxTurns int
	log      *slog.Logger
}

// EngineDeps bundles the engine's collaborators. Hub, Queue, Archive and
// Metrics are optional.
type EngineDeps struct {
	Policy       *Policy
	Adapter      *WorkerAdapter
	Visualizer   *Visualizer
	Consolidator *Consolidator
	Archive      *Archive
	Hub          broadcast.Broadcaster
	Queue        messagequeue.Queue
	Metrics      *otel.Metrics
	MaxTurns     int
	Log          *slog.Logger
}

// NewEngine creates the dispatcher.
func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		policy:       deps.Policy,
		adapter:      deps.Adapter,
		visualizer:   deps.Visualizer,
		consolidator: deps.Consolidator,
		archive:      deps.Archive,
		hub:          deps.Hub,
		queue:        deps.Queue,
		metrics:      deps.Metrics,
		maxTurns:     deps.MaxTurns,
		log:          deps.Log.With("service", "orchestrator"),
	}
}

// Run executes one orchestrated analysis to completion.
func (e *Engine) Run(ctx context.Context, req flow.RunRequest) (*flow.FinalResult, error) {
	return e.RunStream(ctx, req, nil)
}

// RunStream executes one run, calling sink after every state transition.
func (e *Engine) RunStream(ctx context.Context, req flow.RunRequest, sink EventSink) (*flow.FinalResult, error) {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := otel.StartRunSpan(ctx, runID, req.SubjectID)
	defer span.End()

	state := flow.NewState(runID, req.SubjectID, req.Query)
	started := time.Now()

	e.log.InfoContext(ctx, "run started", "run_id", runID, "subject_id", req.SubjectID)
	if e.metrics != nil {
		e.metrics.RunsStarted.Add(ctx, 1)
	}
	e.announceStart(ctx, state, req)

	for state.TurnCount < e.maxTurns && !state.Terminal() {
		state.TurnCount++

		step, err := e.turn(ctx, state, sink)
		if err != nil {
			e.finishFailed(ctx, state, started, err)
			return nil, err
		}
		if step == flow.StepFinish && !state.Terminal() {
			// finish without a result still owes the caller an answer.
			e.consolidator.Consolidate(ctx, state)
		}
	}

	// Turn cap reached without consolidation: fail closed into a
	// best-effort summary rather than an error.
	if !state.Terminal() {
		e.log.WarnContext(ctx, "turn cap reached, forcing consolidation",
			"run_id", runID, "turns", state.TurnCount)
		e.consolidator.Consolidate(ctx, state)
		e.emit(sink, state, flow.StepConsolidate, "turn cap reached")
	}

	e.finishCompleted(ctx, state, started)
	return state.Final, nil
}

// turn executes a single supervisor decision cycle. Panics inside a step are
// converted into an OrchestrationError carrying the partial ledger.
func (e *Engine) turn(ctx context.Context, state *flow.State, sink EventSink) (step flow.Step, err error) {
	step = e.policy.Decide(ctx, state)

	defer func() {
		if r := recover(); r != nil {
			err = &flow.OrchestrationError{
				RunID:  state.RunID,
				Step:   step,
				Ledger: state.Ledger,
				Err:    fmt.Errorf("panic: %v", r),
			}
		}
	}()

	stepCtx, span := otel.StartStepSpan(ctx, state.RunID, state.TurnCount, step)
	defer span.End()

	e.log.InfoContext(stepCtx, "step routed",
		"run_id", state.RunID, "turn", state.TurnCount, "step", step)
	if e.metrics != nil {
		e.metrics.Turns.Add(stepCtx, 1)
	}

	switch {
	case step.IsWorker():
		delta := e.adapter.Invoke(stepCtx, step, state)
		state.Apply(delta)
	case step == flow.StepVisualize:
		e.visualizer.Visualize(stepCtx, state)
	case step == flow.StepConsolidate:
		e.consolidator.Consolidate(stepCtx, state)
	case step == flow.StepFinish:
		// handled by the caller
	}

	e.emit(sink, state, step, "")
	return step, nil
}

// emit pushes one transition event to the stream sink, the WebSocket hub and
// the message queue.
func (e *Engine) emit(sink EventSink, state *flow.State, step flow.Step, detail string) {
	ev := flow.Event{
		RunID:    state.RunID,
		Turn:     state.TurnCount,
		Step:     step,
		Detail:   detail,
		Messages: len(state.Messages),
		Entries:  len(state.Ledger),
	}
	if sink != nil {
		sink(ev)
	}

	ctx := context.Background()
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventRunStep, ws.StepEvent(ev))
	}
	if e.queue != nil {
		e.publish(ctx, messagequeue.SubjectRunStep, messagequeue.RunStepPayload{
			RunID:   ev.RunID,
			Turn:    ev.Turn,
			Step:    string(ev.Step),
			Detail:  ev.Detail,
			Entries: ev.Entries,
		})
	}
}

func (e *Engine) announceStart(ctx context.Context, state *flow.State, req flow.RunRequest) {
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventRunStarted, ws.RunStartedEvent{
			RunID:     state.RunID,
			SubjectID: req.SubjectID,
			Query:     req.Query,
		})
	}
	if e.queue != nil {
		e.publish(ctx, messagequeue.SubjectRunStarted, messagequeue.RunStartedPayload{
			RunID:     state.RunID,
			SubjectID: req.SubjectID,
			Query:     req.Query,
		})
	}
}

func (e *Engine) finishCompleted(ctx context.Context, state *flow.State, started time.Time) {
	if e.metrics != nil {
		e.metrics.RunsCompleted.Add(ctx, 1)
		e.metrics.RunDuration.Record(ctx, time.Since(started).Seconds())
		if state.Final != nil && len(state.Final.Guardrail) > 0 {
			e.metrics.GuardrailHits.Add(ctx, 1)
		}
	}

	summary := ""
	if state.Final != nil {
		summary = state.Final.Summary
	}
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventRunCompleted, ws.RunCompletedEvent{
			RunID:   state.RunID,
			Turns:   state.TurnCount,
			Status:  "completed",
			Summary: summary,
		})
	}
	if e.queue != nil {
		e.publish(ctx, messagequeue.SubjectRunCompleted, messagequeue.RunCompletedPayload{
			RunID:   state.RunID,
			Turns:   state.TurnCount,
			Status:  "completed",
			Summary: summary,
		})
	}

	if e.archive != nil {
		if err := e.archive.Save(ctx, state); err != nil {
			e.log.WarnContext(ctx, "run archive failed", "run_id", state.RunID, "error", err)
		}
	}

	e.log.InfoContext(ctx, "run completed",
		"run_id", state.RunID,
		"turns", state.TurnCount,
		"duration", time.Since(started))
}

func (e *Engine) finishFailed(ctx context.Context, state *flow.State, started time.Time, runErr error) {
	if e.metrics != nil {
		e.metrics.RunsFailed.Add(ctx, 1)
		e.metrics.RunDuration.Record(ctx, time.Since(started).Seconds())
	}
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventRunCompleted, ws.RunCompletedEvent{
			RunID:  state.RunID,
			Turns:  state.TurnCount,
			Status: "failed",
			Error:  runErr.Error(),
		})
	}
	if e.queue != nil {
		e.publish(ctx, messagequeue.SubjectRunCompleted, messagequeue.RunCompletedPayload{
			RunID:  state.RunID,
			Turns:  state.TurnCount,
			Status: "failed",
			Error:  runErr.Error(),
		})
	}
	e.log.ErrorContext(ctx, "run failed",
		"run_id", state.RunID, "turns", state.TurnCount, "error", runErr)
}

// publish marshals and sends one queue payload, logging rather than failing
// on error: eventing is observability, not control flow.
func (e *Engine) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := e.queue.Publish(ctx, subject, data); err != nil {
		e.log.Warn("publish queue event", "subject", subject, "error", err)
	}
}
