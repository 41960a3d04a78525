// Package conversation owns the turn history, anchor intent and iteration
// counter of the tracked conversation. All transitions go through State,
// which serializes them behind a mutex.
package conversation

import (
	"sync"
	"time"

	"github.com/papercomputeco/drift/pkg/drift"
)

// State is the conversation state machine. The zero value is an empty
// conversation ready for use.
type State struct {
	mu sync.Mutex

	history   []Turn
	anchor    *string
	iteration int

	// epoch is bumped by every reset so exchanges that began before it can
	// be recognised at commit time.
	epoch uint64

	// now is swapped in tests.
	now func() time.Time
}

// New returns an empty conversation.
func New() *State {
	return &State{now: time.Now}
}

// Begin captures what an exchange for intent needs: the anchor to measure
// against, the prior turns for the prompt and the iteration it will occupy.
// Begin does not mutate the state; nothing is recorded until Commit.
func (s *State) Begin(intent string) Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := intent
	if s.anchor != nil {
		anchor = *s.anchor
	}

	return Exchange{
		Intent:    intent,
		Anchor:    anchor,
		History:   s.copyHistory(),
		Iteration: s.iteration + 1,
		epoch:     s.epoch,
	}
}

// Commit records the answer for ex with its drift scores. The iteration
// increment and the append happen together, so a failed or abandoned
// exchange leaves no trace. On the first turn the exchange's anchor becomes
// the conversation anchor.
func (s *State) Commit(ex Exchange, ai string, scores drift.Scores) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ex.epoch != s.epoch {
		return Turn{}, ErrConversationReset
	}
	if ex.Iteration != s.iteration+1 {
		return Turn{}, ErrStaleExchange
	}

	if s.anchor == nil {
		anchor := ex.Anchor
		s.anchor = &anchor
	}

	s.incrementIteration()

	turn := Turn{
		User:              ex.Intent,
		AI:                ai,
		StrictDrift:       scores.Strict,
		ProgressiveDrift:  scores.Progressive,
		HybridDrift:       scores.Hybrid,
		Iteration:         s.iteration,
		StrictWeight:      scores.StrictWeight,
		ProgressiveWeight: scores.ProgressiveWeight,
		CreatedAt:         s.clock(),
	}
	if err := s.appendTurn(turn); err != nil {
		s.iteration--
		return Turn{}, err
	}

	return turn, nil
}

// Reset clears the history and anchor and zeroes the iteration counter.
// Exchanges in flight at the time will fail to commit.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Realign points the anchor back at the first user intent of the
// conversation. It is a no-op on an empty conversation.
func (s *State) Realign() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realign()
}

// Accept makes the latest answer the new anchor. It is a no-op on an empty
// conversation.
func (s *State) Accept() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accept()
}

// Decide applies a named action. Unknown actions are reported with
// StatusUnknown and leave the state untouched.
func (s *State) Decide(action string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	var d Decision
	switch action {
	case ActionReject:
		s.reset()
		d = Decision{Status: StatusReset, Changed: true}
	case ActionRealign:
		d = Decision{Status: StatusRealigned, Changed: s.realign()}
	case ActionAccept:
		d = Decision{Status: StatusAccepted, Changed: s.accept()}
	default:
		d = Decision{Status: StatusUnknown}
	}
	d.Iteration = s.iteration

	return d
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Iteration: s.iteration,
		History:   s.copyHistory(),
	}
	if s.anchor != nil {
		anchor := *s.anchor
		snap.Anchor = &anchor
	}
	return snap
}

// Anchor returns the current anchor, if any.
func (s *State) Anchor() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.anchor == nil {
		return "", false
	}
	return *s.anchor, true
}

// Iteration returns the number of completed exchanges.
func (s *State) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// The helpers below expect s.mu to be held.

func (s *State) incrementIteration() {
	s.iteration++
}

func (s *State) appendTurn(t Turn) error {
	if s.anchor == nil {
		return ErrNoAnchor
	}
	s.history = append(s.history, t)
	return nil
}

func (s *State) reset() {
	s.history = nil
	s.anchor = nil
	s.iteration = 0
	s.epoch++
}

func (s *State) realign() bool {
	if len(s.history) == 0 {
		return false
	}
	anchor := s.history[0].User
	s.anchor = &anchor
	return true
}

func (s *State) accept() bool {
	if len(s.history) == 0 {
		return false
	}
	anchor := s.history[len(s.history)-1].AI
	s.anchor = &anchor
	return true
}

func (s *State) copyHistory() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *State) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
