// Package inventorydb persists reservation ledgers in Postgres.
package inventorydb

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/inventory"
)

// LedgerStore reads and mutates stock records. Reserve and Release rely
// on atomic single-row conditional updates, so concurrent sagas cannot
// oversell a batch even without a distributed lock.
type LedgerStore struct {
	db *sql.DB
}

// NewLedgerStore constructs a LedgerStore backed by Postgres.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// NewLedgerStoreWithSchema initializes the schema then returns the store.
func NewLedgerStoreWithSchema(ctx context.Context, db *sql.DB) (*LedgerStore, error) {
	store := NewLedgerStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the inventories table if it does not exist.
func (s *LedgerStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS inventories (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL,
			warehouse_id UUID NOT NULL,
			total_quantity INTEGER NOT NULL,
			reserved_quantity INTEGER NOT NULL DEFAULT 0,
			batch_number TEXT NOT NULL,
			expiration_date TIMESTAMPTZ NOT NULL,
			product_sku TEXT NOT NULL,
			product_name TEXT NOT NULL,
			product_price DOUBLE PRECISION NOT NULL,
			warehouse_name TEXT NOT NULL,
			warehouse_city TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (reserved_quantity >= 0),
			CHECK (reserved_quantity <= total_quantity)
		)
	`)
	return err
}

const ledgerColumns = `id, product_id, warehouse_id, total_quantity, reserved_quantity,
		batch_number, expiration_date, product_sku, product_name, product_price,
		warehouse_name, warehouse_city`

// Insert stores a new ledger record.
func (s *LedgerStore) Insert(ctx context.Context, l *inventory.Ledger) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventories (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.ProductID, l.WarehouseID, l.TotalQuantity, l.ReservedQuantity,
		l.BatchNumber, l.ExpirationDate, l.ProductSKU, l.ProductName, l.ProductPrice,
		l.WarehouseName, l.WarehouseCity,
	)
	return err
}

// FindAllocatable lists the ledgers for a product that still have stock
// and expire no earlier than minExpiration, first-expired-first-out.
func (s *LedgerStore) FindAllocatable(ctx context.Context, productID uuid.UUID, minExpiration time.Time) ([]inventory.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM inventories
		WHERE product_id = $1
		  AND expiration_date >= $2
		  AND reserved_quantity < total_quantity
		ORDER BY expiration_date ASC`,
		productID, minExpiration,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ledgers []inventory.Ledger
	for rows.Next() {
		var l inventory.Ledger
		if err := rows.Scan(
			&l.ID, &l.ProductID, &l.WarehouseID, &l.TotalQuantity, &l.ReservedQuantity,
			&l.BatchNumber, &l.ExpirationDate, &l.ProductSKU, &l.ProductName, &l.ProductPrice,
			&l.WarehouseName, &l.WarehouseCity,
		); err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}

	return ledgers, rows.Err()
}

// Reserve atomically reserves qty units on one ledger. The guard in the
// UPDATE enforces the ledger invariant; zero affected rows means the
// reservation would have oversold the batch.
func (s *LedgerStore) Reserve(ctx context.Context, inventoryID uuid.UUID, qty int) error {
	if qty <= 0 {
		return &inventory.InsufficientInventoryError{Requested: qty, Available: 0}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE inventories
		SET reserved_quantity = reserved_quantity + $2, updated_at = NOW()
		WHERE id = $1 AND reserved_quantity + $2 <= total_quantity`,
		inventoryID, qty,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		available, availErr := s.available(ctx, inventoryID)
		if availErr != nil {
			return availErr
		}
		return &inventory.InsufficientInventoryError{Requested: qty, Available: available}
	}

	return nil
}

// Release atomically returns qty reserved units to the available pool.
func (s *LedgerStore) Release(ctx context.Context, inventoryID uuid.UUID, qty int) error {
	if qty <= 0 {
		return &inventory.InvalidReleaseError{Requested: qty, Reserved: 0}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE inventories
		SET reserved_quantity = reserved_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND reserved_quantity >= $2`,
		inventoryID, qty,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		reserved, resErr := s.reserved(ctx, inventoryID)
		if resErr != nil {
			return resErr
		}
		return &inventory.InvalidReleaseError{Requested: qty, Reserved: reserved}
	}

	return nil
}

// Allocate reserves qty units of a product across its allocatable ledgers
// in FEFO order, splitting over batches when one cannot cover the whole
// quantity. Reservations made for earlier batches are kept even when the
// remainder cannot be satisfied.
func (s *LedgerStore) Allocate(ctx context.Context, productID uuid.UUID, qty int, minExpiration time.Time) ([]inventory.Allocation, error) {
	ledgers, err := s.FindAllocatable(ctx, productID, minExpiration)
	if err != nil {
		return nil, err
	}

	remaining := qty
	var allocations []inventory.Allocation
	for _, l := range ledgers {
		if remaining == 0 {
			break
		}

		take := l.Available()
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}

		if err := s.Reserve(ctx, l.ID, take); err != nil {
			return allocations, err
		}

		allocations = append(allocations, inventory.Allocation{
			InventoryID:    l.ID,
			ProductID:      l.ProductID,
			Quantity:       take,
			ProductPrice:   l.ProductPrice,
			ProductName:    l.ProductName,
			ProductSKU:     l.ProductSKU,
			WarehouseID:    l.WarehouseID,
			WarehouseName:  l.WarehouseName,
			WarehouseCity:  l.WarehouseCity,
			BatchNumber:    l.BatchNumber,
			ExpirationDate: l.ExpirationDate,
		})
		remaining -= take
	}

	if remaining > 0 {
		return allocations, &inventory.InsufficientInventoryError{
			Requested: qty,
			Available: qty - remaining,
		}
	}

	return allocations, nil
}

func (s *LedgerStore) available(ctx context.Context, inventoryID uuid.UUID) (int, error) {
	var available int
	err := s.db.QueryRowContext(ctx,
		`SELECT total_quantity - reserved_quantity FROM inventories WHERE id = $1`,
		inventoryID,
	).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return available, err
}

func (s *LedgerStore) reserved(ctx context.Context, inventoryID uuid.UUID) (int, error) {
	var reserved int
	err := s.db.QueryRowContext(ctx,
		`SELECT reserved_quantity FROM inventories WHERE id = $1`,
		inventoryID,
	).Scan(&reserved)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return reserved, err
}
