package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fundsage/FundSage/internal/domain/flow"
)

// Event type constants for WebSocket messages.
const (
	EventRunStarted   = "run.started"
	EventRunStep      = "run.step"
	EventRunCompleted = "run.completed"
)

// RunStartedEvent is broadcast when an analysis run begins.
type RunStartedEvent struct {
	RunID     string `json:"run_id"`
	SubjectID string `json:"subject_id"`
	Query     string `json:"query"`
}

// RunStepEvent is broadcast on every dispatcher state transition.
type RunStepEvent struct {
	RunID    string    `json:"run_id"`
	Turn     int       `json:"turn"`
	Step     flow.Step `json:"step"`
	Detail   string    `json:"detail,omitempty"`
	Messages int       `json:"messages"`
	Entries  int       `json:"ledger_entries"`
}

// RunCompletedEvent is broadcast when a run reaches its terminal state.
type RunCompletedEvent struct {
	RunID   string `json:"run_id"`
	Turns   int    `json:"turns"`
	Status  string `json:"status"` // "completed" or "failed"
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// StepEvent converts a domain flow event into its wire shape.
func StepEvent(ev flow.Event) RunStepEvent {
	return RunStepEvent{
		RunID:    ev.RunID,
		Turn:     ev.Turn,
		Step:     ev.Step,
		Detail:   ev.Detail,
		Messages: ev.Messages,
		Entries:  ev.Entries,
	}
}
