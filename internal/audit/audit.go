// Package audit records who changed what in the content repository.
// Git keeps the file history; the audit log keeps the session-level view
// of it: which admin, through which session, attempted which operation,
// and whether it succeeded.
package audit

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Event is one recorded admin action.
type Event struct {
	ID        string            `json:"id"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	Target    string            `json:"target"`
	Outcome   string            `json:"outcome"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Outcomes for recorded events.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Log writes events to Postgres.
type Log struct {
	db *sql.DB
}

// Open connects to Postgres and makes sure the events table exists.
func Open(ctx context.Context, databaseURL string) (*Log, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log := &Log{db: db}
	if err := log.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return log, nil
}

// NewWithDB wraps an existing connection, for tests.
func NewWithDB(db *sql.DB) *Log {
	return &Log{db: db}
}

func (l *Log) ensureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id         TEXT PRIMARY KEY,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			target     TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL,
			details    JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS audit_events_created_at_idx
			ON audit_events (created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// newEventID returns a random event id with the "evt_" prefix.
func newEventID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "evt_" + hex.EncodeToString(buf)
}

// Record inserts an event. The ID and timestamp are assigned here.
func (l *Log) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = newEventID()
	}
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor, action, target, outcome, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.Actor, event.Action, event.Target, event.Outcome, details)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first.
func (l *Log) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, actor, action, target, outcome, details, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var details []byte
		if err := rows.Scan(&event.ID, &event.Actor, &event.Action, &event.Target, &event.Outcome, &details, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal event details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Ping checks if the database is reachable.
func (l *Log) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (l *Log) Close() error {
	return l.db.Close()
}
