// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/drift/pkg/embeddings"
	"github.com/papercomputeco/drift/pkg/embeddings/cache"
	"github.com/papercomputeco/drift/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string

	// CacheSize enables an LRU cache in front of the embedder when > 0.
	CacheSize int
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case "ollama":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.CacheSize <= 0 {
		return e, nil
	}
	return cache.New(e, o.CacheSize)
}
