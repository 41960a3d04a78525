// Package embeddings defines the text embedding interface used to score drift.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding. Implementations must be
	// deterministic: the same text always yields the same vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
