// Package llm defines the provider-agnostic completion types the drift
// tracker consumes: a prompt goes in, a lazily consumed stream of text
// fragments comes out.
package llm

import "context"

// CompletionRequest is a provider-agnostic text completion request.
type CompletionRequest struct {
	// Model name (e.g., "llama3.1:8b")
	Model string `json:"model"`

	// Prompt is the full text the model continues from.
	Prompt string `json:"prompt"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Completer is a text completion service. Complete starts a generation and
// returns its stream; the caller must Close the stream.
type Completer interface {
	// Name returns the canonical provider name (e.g., "ollama", "openai").
	Name() string

	// Complete sends req upstream and returns the response stream once the
	// upstream has accepted the request. Transport errors and non-200
	// responses are returned here, wrapped in ErrCompletion.
	Complete(ctx context.Context, req *CompletionRequest) (Stream, error)
}
