package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/drift/pkg/llm"
)

// MockCompleter replays scripted responses as fragment streams.
type MockCompleter struct {
	mu sync.Mutex

	// Responses are consumed one per Complete call. When exhausted the last
	// response is repeated.
	Responses [][]string

	// FailOpen makes Complete itself fail, as an unreachable upstream would.
	FailOpen bool

	// FailAfter makes the stream fail once that many fragments have been
	// delivered. Negative disables it.
	FailAfter int

	// Block makes every stream wait for this channel to close (or the
	// request context to end) before its first fragment.
	Block chan struct{}

	prompts []string
}

func NewMockCompleter(responses ...[]string) *MockCompleter {
	return &MockCompleter{
		Responses: responses,
		FailAfter: -1,
	}
}

func (m *MockCompleter) Name() string {
	return "mock"
}

func (m *MockCompleter) Complete(ctx context.Context, req *llm.CompletionRequest) (llm.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, req.Prompt)

	if m.FailOpen {
		return nil, fmt.Errorf("%w: mock upstream unreachable", llm.ErrCompletion)
	}

	var fragments []string
	if len(m.Responses) > 0 {
		fragments = m.Responses[0]
		if len(m.Responses) > 1 {
			m.Responses = m.Responses[1:]
		}
	}

	return &mockStream{
		ctx:       ctx,
		fragments: append([]string(nil), fragments...),
		failAfter: m.FailAfter,
		block:     m.Block,
	}, nil
}

// Prompts returns every prompt sent to Complete, in order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

type mockStream struct {
	ctx       context.Context
	fragments []string
	sent      int
	failAfter int
	block     chan struct{}
	done      bool
	closed    bool
}

func (s *mockStream) Next() (*llm.StreamChunk, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-s.ctx.Done():
			return nil, fmt.Errorf("%w: %v", llm.ErrCompletion, s.ctx.Err())
		}
		s.block = nil
	}

	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrCompletion, err)
	}
	if s.done {
		return nil, nil
	}
	if s.failAfter >= 0 && s.sent >= s.failAfter {
		return nil, fmt.Errorf("%w: mock stream broke", llm.ErrCompletion)
	}

	if s.sent < len(s.fragments) {
		text := s.fragments[s.sent]
		s.sent++
		return &llm.StreamChunk{Model: "mock", Text: text}, nil
	}

	s.done = true
	return &llm.StreamChunk{Model: "mock", Done: true, StopReason: "stop"}, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}
