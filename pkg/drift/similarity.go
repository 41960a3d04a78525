// Package drift scores how far a model's answer has moved away from a
// reference text. Similarity and Drift compare two embeddings; Weights blends
// strict drift (against the anchor intent) and progressive drift (against the
// previous answer) into a single hybrid score.
package drift

import (
	"fmt"
	"math"
)

// Similarity returns the cosine similarity of a and b in [-1, 1].
// Accumulation happens in float64 regardless of the float32 inputs.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Clamp float error so identical vectors never report negative drift.
	return math.Max(-1, math.Min(1, sim)), nil
}

// Drift converts the cosine similarity of a and b into a percentage:
// 0 for identical direction, 100 for orthogonal and up to 200 for opposed
// vectors. The result is rounded to two decimal places.
func Drift(a, b []float32) (float64, error) {
	sim, err := Similarity(a, b)
	if err != nil {
		return 0, err
	}
	return Round((1-sim)*100, 2), nil
}

// Round rounds x to the given number of decimal places, half away from zero.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
