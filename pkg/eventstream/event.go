package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/drift/pkg/conversation"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRecorded is emitted after a turn is committed to the conversation.
	EventTypeTurnRecorded = "drift.turn.recorded"

	// EventTypeDecisionApplied is emitted after a decide or reset call.
	EventTypeDecisionApplied = "drift.decision.applied"
)

// TurnRecordedEvent is a transport-neutral event payload for a committed turn.
type TurnRecordedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	RequestMeta   TurnRequestMeta   `json:"request_meta"`
	Anchor        string            `json:"anchor"`
	Level         string            `json:"level"`
	Turn          conversation.Turn `json:"turn"`
}

// EventSource identifies the services that produced the turn.
type EventSource struct {
	Completer string `json:"completer"`
	Model     string `json:"model,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Fragments   int       `json:"fragments"`
}

// DecisionAppliedEvent records a user decision about the conversation anchor.
type DecisionAppliedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Iteration     int       `json:"iteration"`

	// Anchor is the anchor after the decision, nil once reset.
	Anchor *string `json:"anchor"`
}

// NewTurnRecordedEvent builds a TurnRecordedEvent with a fresh ID and timestamp.
func NewTurnRecordedEvent(source EventSource, meta TurnRequestMeta, anchor, level string, turn conversation.Turn) *TurnRecordedEvent {
	return &TurnRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Anchor:        anchor,
		Level:         level,
		Turn:          turn,
	}
}

// NewDecisionAppliedEvent builds a DecisionAppliedEvent with a fresh ID and timestamp.
func NewDecisionAppliedEvent(action, status string, iteration int, anchor *string) *DecisionAppliedEvent {
	return &DecisionAppliedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeDecisionApplied,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Action:        action,
		Status:        status,
		Iteration:     iteration,
		Anchor:        anchor,
	}
}
