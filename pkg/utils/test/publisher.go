package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/drift/pkg/eventstream"
)

// MockPublisher records published events in memory.
type MockPublisher struct {
	mu sync.Mutex

	turns     []*eventstream.TurnRecordedEvent
	decisions []*eventstream.DecisionAppliedEvent

	// Fail makes every publish return an error.
	Fail bool

	closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishTurn(_ context.Context, event *eventstream.TurnRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("mock publish failure")
	}
	m.turns = append(m.turns, event)
	return nil
}

func (m *MockPublisher) PublishDecision(_ context.Context, event *eventstream.DecisionAppliedEvent) error {
	if event == nil {
		return eventstream.ErrNilDecisionEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("mock publish failure")
	}
	m.decisions = append(m.decisions, event)
	return nil
}

// Turns returns the turn events published so far.
func (m *MockPublisher) Turns() []*eventstream.TurnRecordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.TurnRecordedEvent(nil), m.turns...)
}

// Decisions returns the decision events published so far.
func (m *MockPublisher) Decisions() []*eventstream.DecisionAppliedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.DecisionAppliedEvent(nil), m.decisions...)
}

func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
