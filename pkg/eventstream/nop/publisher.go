// Package nop provides the publisher used when the journal is disabled.
package nop

import (
	"context"

	"github.com/papercomputeco/drift/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn validates input and otherwise does nothing.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	return nil
}

// PublishDecision validates input and otherwise does nothing.
func (p *Publisher) PublishDecision(_ context.Context, event *eventstream.DecisionAppliedEvent) error {
	if event == nil {
		return eventstream.ErrNilDecisionEvent
	}
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
