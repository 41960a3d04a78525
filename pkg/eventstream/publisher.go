// Package eventstream defines the write-only journal of conversation events.
//
// Events describe what happened to the in-memory conversation. They are
// never read back into it.
package eventstream

import "context"

// Publisher publishes conversation events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnRecordedEvent) error
	PublishDecision(ctx context.Context, event *DecisionAppliedEvent) error
	Close() error
}
