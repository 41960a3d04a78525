// Package provider builds llm.Completer clients for the supported upstream
// completion services.
package provider

import (
	"fmt"

	"github.com/papercomputeco/drift/pkg/llm"
	"github.com/papercomputeco/drift/pkg/llm/provider/ollama"
	"github.com/papercomputeco/drift/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Ollama = "ollama"
	OpenAI = "openai"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Ollama, OpenAI}
}

// Config selects and configures a completion provider.
type Config struct {
	ProviderType string
	TargetURL    string
	Model        string

	// APIKey is sent as a bearer token by providers that need one.
	APIKey string
}

// New creates a Completer for the configured provider type.
// Returns an error if the provider type is not recognized.
func New(c Config) (llm.Completer, error) {
	switch c.ProviderType {
	case Ollama:
		return ollama.NewCompleter(ollama.CompleterConfig{
			BaseURL: c.TargetURL,
			Model:   c.Model,
		})
	case OpenAI:
		return openai.NewCompleter(openai.CompleterConfig{
			BaseURL: c.TargetURL,
			Model:   c.Model,
			APIKey:  c.APIKey,
		})
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", c.ProviderType, SupportedProviders())
	}
}
