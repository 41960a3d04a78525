package drift

import "errors"

var (
	// ErrZeroVector is returned when a vector has zero magnitude, which leaves
	// cosine similarity undefined. Empty texts embed to such vectors with some
	// models.
	ErrZeroVector = errors.New("zero magnitude vector")

	// ErrDimensionMismatch is returned when two vectors of different lengths
	// are compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidWeights is returned by Weights.Validate.
	ErrInvalidWeights = errors.New("invalid drift weights")
)
