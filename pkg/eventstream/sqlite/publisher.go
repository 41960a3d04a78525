// Package sqlite appends conversation events to a local SQLite journal.
//
// The journal is write-only: nothing in drift reads it back, so a restarted
// process still begins with an empty conversation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/drift/pkg/eventstream"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id       TEXT PRIMARY KEY,
	event_type     TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	emitted_at     TEXT NOT NULL,
	iteration      INTEGER NOT NULL,
	payload        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_emitted_at ON events (emitted_at);
`

const insertEvent = `INSERT INTO events (event_id, event_type, schema_version, emitted_at, iteration, payload) VALUES (?, ?, ?, ?, ?, ?)`

// Publisher writes events as rows in an events table.
type Publisher struct {
	db *sql.DB
}

// NewPublisher opens (creating if needed) the journal at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewPublisher(dbPath string) (*Publisher, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Publisher{db: db}, nil
}

// PublishTurn appends a turn.recorded event.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	return p.insert(ctx, event.EventID, event.EventType, event.SchemaVersion, event.EmittedAt, event.Turn.Iteration, event)
}

// PublishDecision appends a decision.applied event.
func (p *Publisher) PublishDecision(ctx context.Context, event *eventstream.DecisionAppliedEvent) error {
	if event == nil {
		return eventstream.ErrNilDecisionEvent
	}
	return p.insert(ctx, event.EventID, event.EventType, event.SchemaVersion, event.EmittedAt, event.Iteration, event)
}

func (p *Publisher) insert(ctx context.Context, id, eventType string, version int, emittedAt time.Time, iteration int, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	_, err = p.db.ExecContext(ctx, insertEvent,
		id,
		eventType,
		version,
		emittedAt.UTC().Format(time.RFC3339Nano),
		iteration,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("inserting %s event: %w", eventType, err)
	}
	return nil
}

// Close closes the database.
func (p *Publisher) Close() error {
	return p.db.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
