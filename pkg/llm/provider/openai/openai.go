// Package openai implements llm.Completer against OpenAI-compatible
// /v1/completions servers (vLLM, llama.cpp server, LM Studio) using SSE
// streaming.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/drift/pkg/llm"
	"github.com/papercomputeco/drift/pkg/sse"
)

const (
	// DefaultBaseURL is the default OpenAI-compatible API URL.
	DefaultBaseURL = "https://api.openai.com"

	doneSentinel = "[DONE]"
)

// Completer streams completions from an OpenAI-compatible server.
type Completer struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// CompleterConfig holds configuration for the OpenAI completer.
type CompleterConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// NewCompleter creates a new OpenAI-compatible completer. A model is
// required since there is no sensible default across servers.
func NewCompleter(cfg CompleterConfig) (*Completer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai completer: model is required")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Completer{
		baseURL:    baseURL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: client,
	}, nil
}

func (c *Completer) Name() string {
	return "openai"
}

// Complete starts a streaming completion for req.Prompt.
func (c *Completer) Complete(ctx context.Context, req *llm.CompletionRequest) (llm.Stream, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	jsonBody, err := json.Marshal(completionRequest{
		Model:         model,
		Prompt:        req.Prompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stop:          req.Stop,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrCompletion, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrCompletion, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", llm.ErrCompletion, err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: server returned status %d: %s", llm.ErrCompletion, resp.StatusCode, string(respBody))
	}

	return &stream{body: resp.Body, events: sse.NewReader(resp.Body)}, nil
}

type stream struct {
	body   io.ReadCloser
	events *sse.Reader

	// finishReason is held back until [DONE] or the trailing usage chunk
	// arrives so the final chunk can carry both.
	finishReason string
	usage        *llm.Usage
	model        string
	done         bool
}

func (s *stream) Next() (*llm.StreamChunk, error) {
	if s.done {
		return nil, nil
	}

	for {
		ev, err := s.events.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: reading stream: %v", llm.ErrCompletion, err)
		}
		if ev == nil {
			if s.finishReason != "" {
				return s.final(), nil
			}
			return nil, fmt.Errorf("%w: stream ended before completion", llm.ErrCompletion)
		}

		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		if data == doneSentinel {
			return s.final(), nil
		}

		var envelope errorEnvelope
		if err := json.Unmarshal([]byte(data), &envelope); err == nil && envelope.Error != nil {
			return nil, fmt.Errorf("%w: %s", llm.ErrCompletion, envelope.Error.Message)
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("%w: decoding chunk: %v", llm.ErrCompletion, err)
		}

		if chunk.Model != "" {
			s.model = chunk.Model
		}
		if chunk.Usage != nil {
			s.usage = &llm.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}

		var text string
		for _, choice := range chunk.Choices {
			text += choice.Text
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				s.finishReason = *choice.FinishReason
			}
		}

		if text == "" {
			continue
		}

		out := &llm.StreamChunk{
			Model: s.model,
			Text:  text,
		}
		if chunk.Created > 0 {
			out.CreatedAt = time.Unix(chunk.Created, 0).UTC()
		}
		return out, nil
	}
}

func (s *stream) final() *llm.StreamChunk {
	s.done = true
	return &llm.StreamChunk{
		Model:      s.model,
		Done:       true,
		StopReason: s.finishReason,
		Usage:      s.usage,
	}
}

func (s *stream) Close() error {
	return s.body.Close()
}

var _ llm.Completer = (*Completer)(nil)
