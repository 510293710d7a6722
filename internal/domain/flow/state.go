package flow

import (
	"encoding/json"
	"time"

	"github.com/fundsage/FundSage/internal/domain/chart"
)

// Role tags the author of a conversation message.
type Role string

const (
	RoleUser   Role = "user"
	RoleWorker Role = "worker"
	RoleSystem Role = "system" // diagnostic notes emitted by the core itself
)

// Message is one role-tagged entry in the conversation transcript.
// The transcript is append-only; insertion order is conversation order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// LedgerEntry records one worker tool invocation and its result. Input and
// Output are stored as raw JSON so a later step reads back exactly the bytes
// the worker produced.
type LedgerEntry struct {
	ID     string          `json:"id"`
	Worker Step            `json:"worker"`
	Tool   string          `json:"tool"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// StateDelta is the normalized outcome of one worker invocation.
type StateDelta struct {
	Messages []Message
	Entries  []LedgerEntry
}

// FinalResult is the structured answer returned to the caller.
type FinalResult struct {
	RunID     string                        `json:"run_id"`
	Summary   string                        `json:"summary"`
	Charts    map[string]chart.Spec         `json:"charts,omitempty"`
	Images    map[string]string             `json:"images,omitempty"` // chart id -> data URI
	Figures   map[string]chart.PlotlyFigure `json:"figures,omitempty"`
	Flags     map[string]bool               `json:"flags,omitempty"` // auxiliary indicators, e.g. fraud
	Guardrail []string                      `json:"guardrail_categories,omitempty"`
	Turns     int                           `json:"turns"`
	CreatedAt time.Time                     `json:"created_at"`
}

// State is the mutable aggregate owned by exactly one run of the dispatcher.
// It is never shared across concurrent runs and needs no internal locking.
type State struct {
	RunID     string
	SubjectID string // whose data the workers query; threaded per run, never ambient
	Messages  []Message
	Next      Step
	Ledger    []LedgerEntry
	TurnCount int
	Charts    map[string]chart.Spec
	Images    map[string]string
	Figures   map[string]chart.PlotlyFigure
	Flags     map[string]bool
	Final     *FinalResult
}

// NewState seeds a fresh state with the single user query.
func NewState(runID, subjectID, query string) *State {
	return &State{
		RunID:     runID,
		SubjectID: subjectID,
		Messages:  []Message{{Role: RoleUser, Content: query}},
		Next:      StepFinish,
		Charts:    map[string]chart.Spec{},
		Images:    map[string]string{},
		Figures:   map[string]chart.PlotlyFigure{},
		Flags:     map[string]bool{},
	}
}

// Terminal reports whether a final result has been set. Once terminal, the
// state must not be mutated further.
func (s *State) Terminal() bool {
	return s.Final != nil
}

// Apply appends a worker delta to the transcript and ledger. No-op on a
// terminal state.
func (s *State) Apply(d StateDelta) {
	if s.Terminal() {
		return
	}
	s.Messages = append(s.Messages, d.Messages...)
	s.Ledger = append(s.Ledger, d.Entries...)
}

// Append adds a single message to the transcript. No-op on a terminal state.
func (s *State) Append(role Role, content string) {
	if s.Terminal() {
		return
	}
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// LastUserMessage scans backward for the most recent user-authored message.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// HasVisuals reports whether the visualization step has produced anything
// this run. The routing policy treats this as the signal to consolidate.
func (s *State) HasVisuals() bool {
	return len(s.Charts) > 0 || len(s.Images) > 0 || len(s.Figures) > 0
}

// LedgerHasTool reports whether any ledger entry was produced by the named tool.
func (s *State) LedgerHasTool(tool string) bool {
	for i := range s.Ledger {
		if s.Ledger[i].Tool == tool {
			return true
		}
	}
	return false
}

// SetFinal marks the state terminal. The first result wins; later calls are
// ignored so a terminal state stays immutable.
func (s *State) SetFinal(res *FinalResult) {
	if s.Final == nil {
		s.Final = res
	}
}
