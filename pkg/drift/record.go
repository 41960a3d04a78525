package drift

// Level buckets a hybrid drift score for display.
type Level string

const (
	LevelStable   Level = "stable"
	LevelDrifting Level = "drifting"
	LevelCritical Level = "critical"
)

const (
	stableBelow   = 30
	driftingBelow = 60
)

// Classify maps a hybrid drift score onto a Level: below 30 is stable,
// below 60 is drifting and anything else is critical.
func Classify(hybrid float64) Level {
	switch {
	case hybrid < stableBelow:
		return LevelStable
	case hybrid < driftingBelow:
		return LevelDrifting
	default:
		return LevelCritical
	}
}

// Record is the structured result emitted after each completed exchange.
type Record struct {
	StrictDrift       float64 `json:"strict_drift"`
	ProgressiveDrift  float64 `json:"progressive_drift"`
	HybridDrift       float64 `json:"hybrid_drift"`
	Iteration         int     `json:"iteration"`
	StrictWeight      float64 `json:"strict_weight"`
	ProgressiveWeight float64 `json:"progressive_weight"`
	Level             Level   `json:"level"`
}

// NewRecord builds a Record from the scores of iteration n.
func NewRecord(s Scores, n int) *Record {
	return &Record{
		StrictDrift:       s.Strict,
		ProgressiveDrift:  s.Progressive,
		HybridDrift:       s.Hybrid,
		Iteration:         n,
		StrictWeight:      s.StrictWeight,
		ProgressiveWeight: s.ProgressiveWeight,
		Level:             Classify(s.Hybrid),
	}
}
