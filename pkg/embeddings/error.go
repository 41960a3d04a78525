package embeddings

import "errors"

var (
	// ErrEmbedding is returned when the embedding service fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmptyText is returned when asked to embed empty or blank text.
	ErrEmptyText = errors.New("cannot embed empty text")
)
