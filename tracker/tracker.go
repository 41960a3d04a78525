// Package tracker runs drift-scored exchanges against the shared conversation.
//
// A Tracker streams a completion for each submitted intent, scores the
// finished answer against the anchor and the previous answer, and commits the
// turn. Only one exchange runs at a time; decisions and history reads are
// never blocked by it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/drift"
	"github.com/papercomputeco/drift/pkg/embeddings"
	"github.com/papercomputeco/drift/pkg/eventstream"
	"github.com/papercomputeco/drift/pkg/llm"
	"github.com/papercomputeco/drift/pkg/metrics"
	"github.com/papercomputeco/drift/pkg/utils"
	"github.com/papercomputeco/drift/tracker/worker"
)

// Journal accepts events for asynchronous publishing. *worker.Pool implements it.
type Journal interface {
	Enqueue(job worker.Job) bool
}

// Config is the Tracker's dependencies.
type Config struct {
	// Completer produces the streamed answers. Required.
	Completer llm.Completer

	// Embedder embeds answers and anchors for scoring. Required.
	Embedder embeddings.Embedder

	// State is the conversation to track. A fresh one is created when nil.
	State *conversation.State

	// Weights controls the strict/progressive blend. Zero value means
	// drift.DefaultWeights.
	Weights drift.Weights

	// Model is passed to the completer. Empty uses the completer's default.
	Model string

	// Journal receives turn and decision events. Optional.
	Journal Journal

	// Metrics records exchange and decision metrics. Optional.
	Metrics *metrics.Metrics

	Logger *zap.Logger
}

// Tracker orchestrates exchanges against a single conversation.
type Tracker struct {
	completer llm.Completer
	embedder  embeddings.Embedder
	state     *conversation.State
	weights   drift.Weights
	model     string
	journal   Journal
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// slot admits one exchange at a time.
	slot *semaphore.Weighted
}

// New validates c and builds a Tracker.
func New(c Config) (*Tracker, error) {
	if c.Completer == nil {
		return nil, errors.New("tracker requires a completer")
	}
	if c.Embedder == nil {
		return nil, errors.New("tracker requires an embedder")
	}

	weights := c.Weights
	if weights == (drift.Weights{}) {
		weights = drift.DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	state := c.State
	if state == nil {
		state = conversation.New()
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tracker{
		completer: c.Completer,
		embedder:  c.Embedder,
		state:     state,
		weights:   weights,
		model:     c.Model,
		journal:   c.Journal,
		metrics:   c.Metrics,
		logger:    logger,
		slot:      semaphore.NewWeighted(1),
	}, nil
}

// Generate runs one exchange for intent. Each fragment of the answer is
// written to w as a separate Write call as soon as it arrives. Once the
// stream ends the answer is scored and committed, and its drift record is
// returned.
//
// If anything fails (the completion, a write to w, embedding, or a reset
// while the exchange was running) the conversation is left as it was before
// the call.
func (t *Tracker) Generate(ctx context.Context, intent string, w io.Writer) (*drift.Record, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, ErrEmptyIntent
	}

	if err := t.slot.Acquire(ctx, 1); err != nil {
		t.metrics.ObserveFailure(metrics.OutcomeCancelled)
		return nil, fmt.Errorf("waiting for exchange slot: %w", err)
	}
	defer t.slot.Release(1)

	started := time.Now()
	ex := t.state.Begin(intent)

	t.logger.Debug("exchange started",
		zap.Int("iteration", ex.Iteration),
		zap.String("intent", utils.Truncate(intent, 80)),
		zap.Bool("first", ex.First()),
	)

	answer, fragments, err := t.stream(ctx, ex, w)
	if err != nil {
		t.fail(err, ex)
		return nil, err
	}

	scores, err := t.score(ctx, ex, answer)
	if err != nil {
		t.fail(err, ex)
		return nil, err
	}

	turn, err := t.state.Commit(ex, answer, scores)
	if err != nil {
		t.fail(err, ex)
		return nil, err
	}

	record := drift.NewRecord(scores, turn.Iteration)
	took := time.Since(started)

	t.logger.Info("turn recorded",
		zap.Int("iteration", record.Iteration),
		zap.Float64("strict_drift", record.StrictDrift),
		zap.Float64("progressive_drift", record.ProgressiveDrift),
		zap.Float64("hybrid_drift", record.HybridDrift),
		zap.String("level", string(record.Level)),
		zap.Duration("took", took),
	)

	t.metrics.ObserveTurn(record.StrictDrift, record.ProgressiveDrift, record.HybridDrift, string(record.Level), record.Iteration, took)
	t.enqueue(worker.Job{Turn: eventstream.NewTurnRecordedEvent(
		eventstream.EventSource{Completer: t.completer.Name(), Model: t.model},
		eventstream.TurnRequestMeta{
			StartedAt:   started.UTC(),
			CompletedAt: started.Add(took).UTC(),
			DurationMs:  took.Milliseconds(),
			Fragments:   fragments,
		},
		ex.Anchor,
		string(record.Level),
		turn,
	)})

	return record, nil
}

// stream opens the completion for ex and forwards fragments to w while
// accumulating the full answer.
func (t *Tracker) stream(ctx context.Context, ex conversation.Exchange, w io.Writer) (string, int, error) {
	s, err := t.completer.Complete(ctx, &llm.CompletionRequest{
		Model:  t.model,
		Prompt: BuildPrompt(ex.History, ex.Intent),
	})
	if err != nil {
		return "", 0, fmt.Errorf("starting completion: %w", err)
	}
	defer s.Close()

	var fragments int
	answer, err := llm.Collect(s, func(text string) error {
		fragments++
		if _, err := io.WriteString(w, text); err != nil {
			return fmt.Errorf("%w: %w", errClientWrite, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errClientWrite) {
			return "", fragments, err
		}
		return "", fragments, fmt.Errorf("streaming completion: %w", err)
	}

	return answer, fragments, nil
}

var errClientWrite = errors.New("writing fragment")

// score embeds the answer, the captured anchor and the previous answer
// concurrently and aggregates their drift for ex's iteration.
func (t *Tracker) score(ctx context.Context, ex conversation.Exchange, answer string) (drift.Scores, error) {
	var (
		answerVec, anchorVec, previousVec []float32
	)

	previous, hasPrevious := ex.Previous()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		answerVec, err = t.embed(gctx, "answer", answer)
		return err
	})
	g.Go(func() (err error) {
		anchorVec, err = t.embed(gctx, "anchor", ex.Anchor)
		return err
	})
	if hasPrevious {
		g.Go(func() (err error) {
			previousVec, err = t.embed(gctx, "previous answer", previous)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return drift.Scores{}, err
	}

	strict, err := drift.Drift(anchorVec, answerVec)
	if err != nil {
		return drift.Scores{}, fmt.Errorf("scoring strict drift: %w", err)
	}

	progressive := strict
	if hasPrevious {
		progressive, err = drift.Drift(previousVec, answerVec)
		if err != nil {
			return drift.Scores{}, fmt.Errorf("scoring progressive drift: %w", err)
		}
	}

	return t.weights.Aggregate(strict, progressive, ex.Iteration), nil
}

func (t *Tracker) embed(ctx context.Context, what, text string) ([]float32, error) {
	v, err := t.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", what, err)
	}
	return v, nil
}

// fail logs and counts an exchange that ended without a commit.
func (t *Tracker) fail(err error, ex conversation.Exchange) {
	outcome := outcomeFor(err)
	t.metrics.ObserveFailure(outcome)

	fields := []zap.Field{
		zap.Int("iteration", ex.Iteration),
		zap.String("outcome", outcome),
		zap.Error(err),
	}
	if outcome == metrics.OutcomeCancelled || outcome == metrics.OutcomeReset {
		t.logger.Info("exchange abandoned", fields...)
		return
	}
	t.logger.Error("exchange failed", fields...)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, conversation.ErrConversationReset), errors.Is(err, conversation.ErrStaleExchange):
		return metrics.OutcomeReset
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, errClientWrite):
		return metrics.OutcomeCancelled
	case errors.Is(err, llm.ErrCompletion):
		return metrics.OutcomeUpstream
	case errors.Is(err, embeddings.ErrEmbedding), errors.Is(err, embeddings.ErrEmptyText), errors.Is(err, drift.ErrZeroVector), errors.Is(err, drift.ErrDimensionMismatch):
		return metrics.OutcomeEmbedding
	default:
		return metrics.OutcomeError
	}
}

// Decide applies a reject, realign or accept action. Unknown actions report
// conversation.StatusUnknown and change nothing.
func (t *Tracker) Decide(action string) conversation.Decision {
	d := t.state.Decide(action)
	t.decided(action, d)
	return d
}

// Reset clears the conversation.
func (t *Tracker) Reset() conversation.Decision {
	t.state.Reset()
	d := conversation.Decision{Status: conversation.StatusReset, Iteration: 0, Changed: true}
	t.decided("reset", d)
	return d
}

// History returns a copy of the conversation.
func (t *Tracker) History() conversation.Snapshot {
	return t.state.Snapshot()
}

func (t *Tracker) decided(action string, d conversation.Decision) {
	t.logger.Info("decision applied",
		zap.String("action", utils.Truncate(action, 32)),
		zap.String("status", string(d.Status)),
		zap.Int("iteration", d.Iteration),
		zap.Bool("changed", d.Changed),
	)

	t.metrics.ObserveDecision(string(d.Status), d.Iteration)

	if d.Status == conversation.StatusUnknown {
		return
	}

	var anchor *string
	if a, ok := t.state.Anchor(); ok {
		anchor = &a
	}
	t.enqueue(worker.Job{Decision: eventstream.NewDecisionAppliedEvent(action, string(d.Status), d.Iteration, anchor)})
}

func (t *Tracker) enqueue(job worker.Job) {
	if t.journal == nil {
		return
	}
	if !t.journal.Enqueue(job) {
		t.metrics.JournalDropped()
	}
}
