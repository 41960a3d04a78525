// Package worker provides an asynchronous worker pool that publishes
// conversation events to the configured eventstream.Publisher.
//
// The pool decouples journal writes from the request path so that a slow or
// unavailable journal never delays an exchange.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/drift/pkg/eventstream"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Job is a unit of work for the worker pool. Exactly one of Turn or Decision
// is set.
type Job struct {
	Turn     *eventstream.TurnRecordedEvent
	Decision *eventstream.DecisionAppliedEvent
}

func (j Job) eventType() string {
	switch {
	case j.Turn != nil:
		return j.Turn.EventType
	case j.Decision != nil:
		return j.Decision.EventType
	default:
		return ""
	}
}

func (j Job) eventID() string {
	switch {
	case j.Turn != nil:
		return j.Turn.EventID
	case j.Decision != nil:
		return j.Decision.EventID
	default:
		return ""
	}
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every job's event.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single publish call (defaults to 10s).
	PublishTimeout time.Duration

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool publishes journal events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed",
			zap.String("event_type", job.eventType()),
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("event_type", job.eventType()),
			zap.String("event_id", job.eventID()),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("event_type", job.eventType()),
			zap.String("event_id", job.eventID()),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("journal worker stopped", zap.Uint("worker_id", id))
}

// processJob publishes a Job's event. Errors are logged and the job is dropped.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	var err error
	switch {
	case job.Turn != nil:
		err = p.config.Publisher.PublishTurn(ctx, job.Turn)
	case job.Decision != nil:
		err = p.config.Publisher.PublishDecision(ctx, job.Decision)
	default:
		p.logger.Warn("skipping empty journal job")
		return
	}

	if err != nil {
		p.logger.Error("journal publish failed",
			zap.String("event_type", job.eventType()),
			zap.String("event_id", job.eventID()),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("journal event published",
		zap.String("event_type", job.eventType()),
		zap.String("event_id", job.eventID()),
	)
}
