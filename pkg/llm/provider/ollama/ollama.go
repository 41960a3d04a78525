// Package ollama implements llm.Completer against Ollama's streaming
// /api/generate endpoint.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/papercomputeco/drift/pkg/llm"
)

const (
	// DefaultModel is the default model used for completions.
	DefaultModel = "llama3.1:8b"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Completer streams completions from Ollama.
type Completer struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// CompleterConfig holds configuration for the Ollama completer.
type CompleterConfig struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the generation model. Defaults to DefaultModel if empty.
	Model string

	// HTTPClient overrides the client used for requests. Generations are
	// long-lived, so the default client has no overall timeout and relies on
	// the request context instead.
	HTTPClient *http.Client
}

// NewCompleter creates a new Ollama completer.
func NewCompleter(cfg CompleterConfig) (*Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Completer{
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
	}, nil
}

func (c *Completer) Name() string {
	return "ollama"
}

// Complete starts a streaming generation for req.Prompt.
func (c *Completer) Complete(ctx context.Context, req *llm.CompletionRequest) (llm.Stream, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := generateRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: true,
	}
	if req.Temperature != nil || req.MaxTokens != nil || len(req.Stop) > 0 {
		body.Options = &generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			Stop:        req.Stop,
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrCompletion, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrCompletion, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", llm.ErrCompletion, err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", llm.ErrCompletion, resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &stream{body: resp.Body, scanner: scanner}, nil
}

// stream reads Ollama's newline-delimited JSON chunks.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *stream) Next() (*llm.StreamChunk, error) {
	if s.done {
		return nil, nil
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("%w: decoding chunk: %v", llm.ErrCompletion, err)
		}
		if chunk.Error != "" {
			return nil, fmt.Errorf("%w: %s", llm.ErrCompletion, chunk.Error)
		}

		out := &llm.StreamChunk{
			Model:     chunk.Model,
			CreatedAt: chunk.CreatedAt,
			Text:      chunk.Response,
			Done:      chunk.Done,
		}
		if chunk.Done {
			s.done = true
			out.StopReason = chunk.DoneReason
			out.Usage = &llm.Usage{
				PromptTokens:     chunk.PromptEvalCount,
				CompletionTokens: chunk.EvalCount,
				TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
				TotalDurationNs:  chunk.TotalDuration,
				PromptDurationNs: chunk.PromptEvalDuration,
			}
		}
		return out, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading stream: %v", llm.ErrCompletion, err)
	}

	return nil, fmt.Errorf("%w: stream ended before completion", llm.ErrCompletion)
}

func (s *stream) Close() error {
	return s.body.Close()
}

var _ llm.Completer = (*Completer)(nil)
