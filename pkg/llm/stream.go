package llm

import (
	"strings"
	"time"
)

// StreamChunk represents a single fragment of a streaming completion.
type StreamChunk struct {
	// Model that generated the chunk
	Model string `json:"model,omitempty"`

	// Chunk timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// Text is the generated fragment. It may be empty on the final chunk.
	Text string `json:"text"`

	// Whether this is the final chunk
	Done bool `json:"done"`

	// Stop reason (only present on final chunk)
	StopReason string `json:"stop_reason,omitempty"`

	// Usage metrics (typically only present on final chunk)
	Usage *Usage `json:"usage,omitempty"`
}

// Stream is a lazy, finite, non-restartable sequence of completion chunks.
//
// Next blocks until the next chunk is available. It returns nil, nil once the
// stream has ended cleanly and a non-nil error if the transport or the
// payload failed; in both cases no further chunks follow.
type Stream interface {
	Next() (*StreamChunk, error)
	Close() error
}

// Collect drains s, invoking fn (when non-nil) for every non-empty fragment,
// and returns the concatenated text. It stops at the first error from the
// stream or from fn. Collect does not close s.
func Collect(s Stream, fn func(text string) error) (string, error) {
	var full strings.Builder
	for {
		chunk, err := s.Next()
		if err != nil {
			return full.String(), err
		}
		if chunk == nil {
			return full.String(), nil
		}

		if chunk.Text != "" {
			full.WriteString(chunk.Text)
			if fn != nil {
				if err := fn(chunk.Text); err != nil {
					return full.String(), err
				}
			}
		}

		if chunk.Done {
			return full.String(), nil
		}
	}
}
