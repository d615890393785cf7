package eventsdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	}

	return db, mock, cleanup
}

func TestStore_InitSchema(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS processed_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	store := NewStore(db)
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
}

func TestStore_ExistsFalseThenTrue(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectClose()

	store := NewStore(db)

	exists, err := store.Exists(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("expected event to be unseen")
	}

	exists, err = store.Exists(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatalf("expected event to be seen")
	}
}

func TestStore_MarkProcessed(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO processed_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	store := NewStore(db)
	err := store.MarkProcessed(context.Background(), ProcessedEvent{
		EventID:         "evt-1",
		EventType:       "order_created",
		Microservice:    "order",
		PayloadSnapshot: `{"order_id":"o-1"}`,
	})
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
}

func TestStore_MarkProcessedDuplicatePropagates(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO processed_events").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "processed_events_event_id_key"})
	mock.ExpectClose()

	store := NewStore(db)
	err := store.MarkProcessed(context.Background(), ProcessedEvent{EventID: "evt-1"})
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
}

func TestStore_MarkProcessedOtherErrorsPassThrough(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	dbErr := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO processed_events").WillReturnError(dbErr)
	mock.ExpectClose()

	store := NewStore(db)
	err := store.MarkProcessed(context.Background(), ProcessedEvent{EventID: "evt-1"})
	if errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("unexpected duplicate classification: %v", err)
	}
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected driver error, got %v", err)
	}
}
