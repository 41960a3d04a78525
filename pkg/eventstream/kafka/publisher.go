// Package kafka publishes conversation events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/drift/pkg/eventstream"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "drift.events"

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic receives every event. Defaults to DefaultTopic.
	Topic string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

// Publisher writes JSON-encoded events keyed by event ID.
type Publisher struct {
	writer messageWriter

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates a Kafka publisher for cfg.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher: at least one broker is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return newPublisher(&kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}), nil
}

func newPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// PublishTurn writes a turn.recorded event.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	return p.write(ctx, event.EventID, event.EventType, event.SchemaVersion, event)
}

// PublishDecision writes a decision.applied event.
func (p *Publisher) PublishDecision(ctx context.Context, event *eventstream.DecisionAppliedEvent) error {
	if event == nil {
		return eventstream.ErrNilDecisionEvent
	}
	return p.write(ctx, event.EventID, event.EventType, event.SchemaVersion, event)
}

func (p *Publisher) write(ctx context.Context, id, eventType string, version int, payload any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return eventstream.ErrPublisherClosed
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	msg := kafkago.Message{
		Key:   []byte(id),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(version))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s event to kafka: %w", eventType, err)
	}
	return nil
}

// Close flushes and closes the underlying writer. It is safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
