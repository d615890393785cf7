// Package eventsdb persists the append-only processed-event ledger used
// to deduplicate inbound events.
package eventsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ProcessedEvent is one row of the dedup ledger. Rows are created exactly
// once per distinct EventID and are never updated or deleted.
type ProcessedEvent struct {
	ID              uuid.UUID
	EventID         string
	EventType       string
	Microservice    string
	PayloadSnapshot string
	ProcessedAt     time.Time
}

// ErrDuplicateEvent signals an insert for an event_id that is already in
// the ledger. Callers rely on "insert succeeded means first time seen",
// so this is never silently absorbed.
var ErrDuplicateEvent = errors.New("event already processed")

// Store persists processed events in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store backed by Postgres.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewStoreWithSchema initializes the schema then returns the store.
func NewStoreWithSchema(ctx context.Context, db *sql.DB) (*Store, error) {
	store := NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the processed_events table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS processed_events (
			id UUID PRIMARY KEY,
			event_id TEXT UNIQUE NOT NULL,
			event_type TEXT NOT NULL,
			microservice TEXT NOT NULL,
			payload_snapshot TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Exists reports whether an event_id has already been recorded.
func (s *Store) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// MarkProcessed inserts the event into the ledger. A uniqueness violation
// on event_id surfaces as ErrDuplicateEvent.
func (s *Store) MarkProcessed(ctx context.Context, event ProcessedEvent) error {
	return InsertProcessed(ctx, s.db, event)
}

// Execer is the single-statement surface shared by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertProcessed appends an event to the ledger through q, so callers
// that must commit the insert together with their own writes can pass a
// transaction. A uniqueness violation on event_id surfaces as
// ErrDuplicateEvent.
func InsertProcessed(ctx context.Context, q Execer, event ProcessedEvent) error {
	id := event.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO processed_events (id, event_id, event_type, microservice, payload_snapshot)
		VALUES ($1, $2, $3, $4, $5)`,
		id, event.EventID, event.EventType, event.Microservice, event.PayloadSnapshot,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, event.EventID)
		}
		return err
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
