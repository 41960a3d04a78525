// Package cache wraps an embeddings.Embedder with an in-memory LRU keyed by
// the embedded text.
//
// The anchor and the previous answer are embedded again on every turn, so a
// small cache removes most repeated embedding calls. Only successful results
// are cached.
package cache

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/papercomputeco/drift/pkg/embeddings"
)

// DefaultSize is the number of embeddings kept when no size is configured.
const DefaultSize = 256

// Embedder is a caching embeddings.Embedder decorator.
type Embedder struct {
	next  embeddings.Embedder
	cache *lru.Cache[string, []float32]
}

// New wraps next with an LRU cache holding up to size vectors.
// A size <= 0 uses DefaultSize.
func New(next embeddings.Embedder, size int) (*Embedder, error) {
	if size <= 0 {
		size = DefaultSize
	}

	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	return &Embedder{next: next, cache: c}, nil
}

// Embed returns the cached vector for text or delegates to the wrapped
// embedder. Callers get their own copy of the vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return slices.Clone(v), nil
	}

	v, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Add(text, slices.Clone(v))
	return v, nil
}

// Len reports how many vectors are cached.
func (e *Embedder) Len() int {
	return e.cache.Len()
}

// Close purges the cache and closes the wrapped embedder.
func (e *Embedder) Close() error {
	e.cache.Purge()
	return e.next.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
