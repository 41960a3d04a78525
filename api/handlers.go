package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/drift"
	"github.com/papercomputeco/drift/pkg/embeddings"
	"github.com/papercomputeco/drift/pkg/llm"
	"github.com/papercomputeco/drift/tracker"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Intent string `json:"intent"`
}

// StreamLine is one NDJSON line of a /generate response. Fragments come
// first, followed by exactly one line with Done set carrying either the
// drift record or an error.
type StreamLine struct {
	Fragment string        `json:"fragment,omitempty"`
	Done     bool          `json:"done,omitempty"`
	Drift    *drift.Record `json:"drift,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// DecisionRequest is the body of POST /decision.
type DecisionRequest struct {
	Action string `json:"action"`
}

// ResetResponse is the body returned by POST /reset.
type ResetResponse struct {
	Status conversation.Status `json:"status"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGenerate runs an exchange and streams it back as NDJSON.
//
// The handler holds the response until the first fragment arrives so a
// failure before any output can still be reported with a proper status.
func (s *Server) handleGenerate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Intent) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: tracker.ErrEmptyIntent.Error()})
	}

	ctx, cancel := context.WithCancel(s.ctx)

	pr, pw := io.Pipe()
	lw := newLineWriter(pw)
	finished := make(chan exchangeResult, 1)

	go func() {
		defer cancel()
		record, err := s.tracker.Generate(ctx, req.Intent, lw)
		if !lw.began() {
			finished <- exchangeResult{record: record, err: err}
			pw.Close()
			return
		}
		s.finishStream(lw, pw, record, err)
	}()

	select {
	case <-lw.started:
		c.Set(fiber.HeaderContentType, "application/x-ndjson")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Status(fiber.StatusOK)
		c.Context().Response.SetBodyStream(pr, -1)
		return nil

	case res := <-finished:
		pr.Close()
		if res.err != nil {
			status := statusFor(res.err)
			s.logger.Warn("exchange failed before streaming",
				zap.Int("status", status),
				zap.Error(res.err),
			)
			return c.Status(status).JSON(ErrorResponse{Error: res.err.Error()})
		}

		// no fragments at all, reply with the terminal line only
		c.Set(fiber.HeaderContentType, "application/x-ndjson")
		body, err := json.Marshal(StreamLine{Done: true, Drift: res.record})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to encode drift record"})
		}
		return c.Send(append(body, '\n'))
	}
}

type exchangeResult struct {
	record *drift.Record
	err    error
}

// finishStream writes the terminal line after the last fragment and closes
// the pipe.
func (s *Server) finishStream(lw *lineWriter, pw *io.PipeWriter, record *drift.Record, err error) {
	line := StreamLine{Done: true, Drift: record}
	if err != nil {
		s.logger.Warn("exchange failed mid-stream", zap.Error(err))
		line = StreamLine{Done: true, Error: err.Error()}
	}

	if werr := lw.writeLine(line); werr != nil {
		s.logger.Debug("client gone before final line", zap.Error(werr))
		pw.CloseWithError(werr)
		return
	}
	pw.Close()
}

// statusFor maps an exchange error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracker.ErrEmptyIntent):
		return fiber.StatusBadRequest
	case errors.Is(err, conversation.ErrConversationReset), errors.Is(err, conversation.ErrStaleExchange):
		return fiber.StatusConflict
	case errors.Is(err, llm.ErrCompletion), errors.Is(err, embeddings.ErrEmbedding), errors.Is(err, embeddings.ErrEmptyText):
		return fiber.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// lineWriter turns each fragment Write into one NDJSON line and signals
// started before the first line is written.
type lineWriter struct {
	w       io.Writer
	started chan struct{}
	once    sync.Once
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: w, started: make(chan struct{})}
}

func (l *lineWriter) Write(p []byte) (int, error) {
	if err := l.writeLine(StreamLine{Fragment: string(p)}); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (l *lineWriter) writeLine(line StreamLine) error {
	l.once.Do(func() { close(l.started) })

	b, err := json.Marshal(line)
	if err != nil {
		return err
	}
	_, err = l.w.Write(append(b, '\n'))
	return err
}

func (l *lineWriter) began() bool {
	select {
	case <-l.started:
		return true
	default:
		return false
	}
}

// handleDecision applies a reject, realign or accept action.
func (s *Server) handleDecision(c *fiber.Ctx) error {
	var req DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	return c.JSON(s.tracker.Decide(req.Action))
}

// handleReset clears the conversation.
func (s *Server) handleReset(c *fiber.Ctx) error {
	d := s.tracker.Reset()
	return c.JSON(ResetResponse{Status: d.Status})
}

// handleHistory returns the anchor, iteration and turns.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(s.tracker.History())
}
