// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const createAuditTable = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	context_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	actor TEXT,
	data JSONB
);
CREATE INDEX IF NOT EXISTS idx_audit_events_context ON audit_events (context_id, created_at);
`

// PostgresTrail is a durable audit trail backed by Postgres. The table has
// no UPDATE or DELETE path; the trail only ever appends.
type PostgresTrail struct {
	db *sql.DB
}

var _ Trail = (*PostgresTrail)(nil)

// NewPostgresTrail opens a trail over an existing database handle and
// ensures the schema exists.
func NewPostgresTrail(db *sql.DB) (*PostgresTrail, error) {
	if _, err := db.Exec(createAuditTable); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &PostgresTrail{db: db}, nil
}

// OpenPostgresTrail connects to databaseURL and ensures the schema exists.
func OpenPostgresTrail(databaseURL string) (*PostgresTrail, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	return NewPostgresTrail(db)
}

// Record appends an event.
func (t *PostgresTrail) Record(ctx context.Context, event Event) error {
	event = normalize(event)

	var data []byte
	if event.Data != nil {
		var err error
		data, err = json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("marshaling event data: %w", err)
		}
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, created_at, context_id, event_type, actor, data) VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Timestamp, event.ContextID, string(event.Type), event.Actor, data,
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// List returns the events for a context id in append order.
func (t *PostgresTrail) List(ctx context.Context, contextID string) ([]Event, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, created_at, context_id, event_type, actor, data FROM audit_events WHERE context_id = $1 ORDER BY created_at`,
		contextID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e         Event
			eventType string
			actor     sql.NullString
			data      []byte
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.ContextID, &eventType, &actor, &data); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.Timestamp = createdAt
		e.Type = EventType(eventType)
		e.Actor = actor.String
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("unmarshaling event data: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (t *PostgresTrail) Close() error {
	return t.db.Close()
}
