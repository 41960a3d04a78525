package config

import (
	"github.com/papercomputeco/drift/pkg/drift"
	"github.com/papercomputeco/drift/pkg/embeddings/cache"
	embedollama "github.com/papercomputeco/drift/pkg/embeddings/ollama"
	"github.com/papercomputeco/drift/pkg/eventstream/kafka"
	eventstreamutils "github.com/papercomputeco/drift/pkg/eventstream/utils"
	"github.com/papercomputeco/drift/pkg/llm/provider"
	"github.com/papercomputeco/drift/pkg/llm/provider/ollama"
)

const (
	defaultListen       = ":8080"
	defaultClientTarget = "http://localhost:8080"

	defaultOllamaTarget = ollama.DefaultBaseURL
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
		Completion: CompletionConfig{
			Provider: provider.Ollama,
			Target:   defaultOllamaTarget,
			Model:    ollama.DefaultModel,
		},
		Embedding: EmbeddingConfig{
			Provider:  provider.Ollama,
			Target:    defaultOllamaTarget,
			Model:     embedollama.DefaultEmbeddingModel,
			CacheSize: cache.DefaultSize,
		},
		Drift: DriftConfig{
			StrictFloor: drift.DefaultStrictFloor,
			DecayRate:   drift.DefaultDecayRate,
		},
		Journal: JournalConfig{
			Provider: eventstreamutils.ProviderNone,
			Topic:    kafka.DefaultTopic,
		},
	}
}

// Weights converts the drift section into the weighting used by the tracker.
func (c *Config) Weights() drift.Weights {
	return drift.Weights{
		Floor:     c.Drift.StrictFloor,
		DecayRate: c.Drift.DecayRate,
	}
}
