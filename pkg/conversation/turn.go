package conversation

import "time"

// Turn is one completed user intent / model answer exchange together with the
// drift values computed for it. Turns are never modified once appended.
type Turn struct {
	User              string    `json:"user"`
	AI                string    `json:"ai"`
	StrictDrift       float64   `json:"strict_drift"`
	ProgressiveDrift  float64   `json:"progressive_drift"`
	HybridDrift       float64   `json:"hybrid_drift"`
	Iteration         int       `json:"iteration"`
	StrictWeight      float64   `json:"strict_weight"`
	ProgressiveWeight float64   `json:"progressive_weight"`
	CreatedAt         time.Time `json:"created_at"`
}

// Exchange is the view of the conversation an in-flight exchange works
// against. It is captured by State.Begin and handed back to State.Commit.
type Exchange struct {
	// Intent is the user text being submitted.
	Intent string

	// Anchor is the text strict drift is measured against. It is the
	// conversation anchor at Begin time, or Intent when no anchor exists yet.
	Anchor string

	// History is a copy of the turns that precede this exchange.
	History []Turn

	// Iteration is the 1-indexed iteration this exchange will occupy once
	// committed.
	Iteration int

	epoch uint64
}

// First reports whether this exchange opens the conversation.
func (e Exchange) First() bool {
	return len(e.History) == 0
}

// Previous returns the most recent answer before this exchange.
// ok is false on the first turn.
func (e Exchange) Previous() (ai string, ok bool) {
	if len(e.History) == 0 {
		return "", false
	}
	return e.History[len(e.History)-1].AI, true
}

// Snapshot is a read-only copy of the conversation state.
type Snapshot struct {
	Anchor    *string `json:"anchor"`
	Iteration int     `json:"iteration"`
	History   []Turn  `json:"turns"`
}
