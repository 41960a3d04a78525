package drift

import (
	"fmt"
	"math"
)

const (
	// DefaultStrictFloor is the minimum influence strict drift keeps no matter
	// how long the conversation runs.
	DefaultStrictFloor = 0.4

	// DefaultDecayRate is how much strict weight is handed to progressive
	// drift per iteration.
	DefaultDecayRate = 0.1

	// weightPlaces removes float noise from 1 - n*rate so weights land on the
	// decimal values they are meant to represent.
	weightPlaces = 10
)

// Weights controls how strict and progressive drift are blended as a
// conversation grows. Strict weight starts near 1 and decays linearly by
// DecayRate per iteration until it reaches Floor.
type Weights struct {
	Floor     float64
	DecayRate float64
}

// Scores holds the three drift values for one turn and the weights that
// produced the hybrid value.
type Scores struct {
	Strict            float64
	Progressive       float64
	Hybrid            float64
	StrictWeight      float64
	ProgressiveWeight float64
}

// DefaultWeights returns the stock floor of 0.4 and decay of 0.1 per turn.
func DefaultWeights() Weights {
	return Weights{
		Floor:     DefaultStrictFloor,
		DecayRate: DefaultDecayRate,
	}
}

// Validate reports whether w describes a usable weighting.
func (w Weights) Validate() error {
	if math.IsNaN(w.Floor) || w.Floor < 0 || w.Floor > 1 {
		return fmt.Errorf("%w: floor %v must be within [0, 1]", ErrInvalidWeights, w.Floor)
	}
	if math.IsNaN(w.DecayRate) || w.DecayRate < 0 {
		return fmt.Errorf("%w: decay rate %v must not be negative", ErrInvalidWeights, w.DecayRate)
	}
	return nil
}

// For returns the strict and progressive weights for iteration n, where n is
// 1-indexed and already counts the turn being scored.
// strict = max(Floor, 1 - n*DecayRate); progressive = 1 - strict.
func (w Weights) For(n int) (strict, progressive float64) {
	strict = math.Max(w.Floor, 1-float64(n)*w.DecayRate)
	strict = math.Min(1, strict)
	strict = Round(strict, weightPlaces)
	progressive = Round(1-strict, weightPlaces)
	return strict, progressive
}

// Aggregate blends strict and progressive drift for iteration n.
func (w Weights) Aggregate(strict, progressive float64, n int) Scores {
	sw, pw := w.For(n)
	return Scores{
		Strict:            strict,
		Progressive:       progressive,
		Hybrid:            Round(sw*strict+pw*progressive, 2),
		StrictWeight:      sw,
		ProgressiveWeight: pw,
	}
}
