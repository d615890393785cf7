// Package visitsdb persists seller visits in Postgres.
package visitsdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/visits"
)

// ErrVisitNotFound is returned when a visit id has no row.
var ErrVisitNotFound = errors.New("visit not found")

// Store persists visits with their denormalized client snapshot.
type Store struct {
	db *sql.DB
}

// NewStore constructs a visit store backed by Postgres.
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

// InitSchema creates the visits table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS visits (
			id UUID PRIMARY KEY,
			seller_id UUID NOT NULL,
			client_id UUID NOT NULL,
			fecha_visita TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'programada',
			notas_visita TEXT,
			client_nombre_institucion TEXT NOT NULL,
			client_direccion TEXT NOT NULL,
			client_ciudad TEXT NOT NULL,
			client_pais TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

const visitColumns = `id, seller_id, client_id, fecha_visita, status, notas_visita,
	client_nombre_institucion, client_direccion, client_ciudad, client_pais,
	created_at, updated_at`

// Insert persists a new visit.
func (s *Store) Insert(ctx context.Context, v *visits.Visit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		v.ID, v.SellerID, v.ClientID, v.VisitDate, string(v.Status), v.Notes,
		v.ClientInstitutionName, v.ClientAddress, v.ClientCity, v.ClientCountry,
		v.CreatedAt, v.UpdatedAt,
	)
	return err
}

// FindByID returns the visit with the given id.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*visits.Visit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE id = $1`, id)
	visit, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	return visit, err
}

// FindConflicting returns a non-cancelled visit of sellerID within the
// conflict window around at, or nil when the slot is free.
func (s *Store) FindConflicting(ctx context.Context, sellerID uuid.UUID, at time.Time) (*visits.Visit, error) {
	minTime, maxTime := visits.ConflictWindowFor(at)

	row := s.db.QueryRowContext(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE seller_id = $1
		  AND fecha_visita BETWEEN $2 AND $3
		  AND status <> $4
		ORDER BY fecha_visita ASC
		LIMIT 1`,
		sellerID, minTime, maxTime, string(visits.StatusCancelled),
	)
	visit, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return visit, err
}

// UpdateStatus sets a visit's status.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status visits.Status, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE visits SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), updatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVisitNotFound
	}
	return nil
}

func scanVisit(row *sql.Row) (*visits.Visit, error) {
	var v visits.Visit
	var status string
	var notes sql.NullString
	err := row.Scan(
		&v.ID, &v.SellerID, &v.ClientID, &v.VisitDate, &status, &notes,
		&v.ClientInstitutionName, &v.ClientAddress, &v.ClientCity, &v.ClientCountry,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = visits.Status(status)
	v.Notes = notes.String
	return &v, nil
}
