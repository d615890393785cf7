// Package salesdb persists sales plans in Postgres.
package salesdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	eventsdb "medisupply/internal/db/events"
	"medisupply/internal/sales"
)

// ErrPlanNotFound is returned when no plan matches a seller and period.
var ErrPlanNotFound = errors.New("sales plan not found")

// Store persists sales plans.
type Store struct {
	db *sql.DB
}

// NewStore constructs a sales plan store backed by Postgres.
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

// InitSchema creates the sales_plans table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sales_plans (
			id UUID PRIMARY KEY,
			seller_id UUID NOT NULL,
			sales_period TEXT NOT NULL,
			goal NUMERIC(14,2) NOT NULL CHECK (goal > 0),
			accumulate NUMERIC(14,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (seller_id, sales_period)
		)
	`)
	return err
}

// Insert persists a new plan.
func (s *Store) Insert(ctx context.Context, p *sales.Plan) error {
	if err := sales.ValidatePeriod(p.Period); err != nil {
		return err
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales_plans (id, seller_id, sales_period, goal, accumulate)
		VALUES ($1, $2, $3, $4, $5)`,
		id, p.SellerID, p.Period, p.Goal, p.Accumulate,
	)
	return err
}

// FindBySellerAndPeriod returns the plan for a seller and period.
func (s *Store) FindBySellerAndPeriod(ctx context.Context, sellerID uuid.UUID, period string) (*sales.Plan, error) {
	var p sales.Plan
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seller_id, sales_period, goal, accumulate, created_at, updated_at
		FROM sales_plans
		WHERE seller_id = $1 AND sales_period = $2`,
		sellerID, period,
	).Scan(&p.ID, &p.SellerID, &p.Period, &p.Goal, &p.Accumulate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddToAccumulate atomically adds amount to the plan's accumulate. The
// increment happens in SQL so concurrent consumers never lose updates.
func (s *Store) AddToAccumulate(ctx context.Context, sellerID uuid.UUID, period string, amount float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales_plans
		SET accumulate = accumulate + $3, updated_at = NOW()
		WHERE seller_id = $1 AND sales_period = $2`,
		sellerID, period, amount,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// ApplyOrderCreated adds amount to the plan's accumulate and records the
// processed event in one transaction. When the event_id is already in the
// ledger both writes roll back and eventsdb.ErrDuplicateEvent surfaces,
// so a lost insert race never leaves a double-counted accumulate.
func (s *Store) ApplyOrderCreated(ctx context.Context, sellerID uuid.UUID, period string, amount float64, event eventsdb.ProcessedEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales_plans
		SET accumulate = accumulate + $3, updated_at = NOW()
		WHERE seller_id = $1 AND sales_period = $2`,
		sellerID, period, amount,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPlanNotFound
	}

	if err := eventsdb.InsertProcessed(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}
