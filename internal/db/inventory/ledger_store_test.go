package inventorydb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"medisupply/internal/inventory"
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

func TestLedgerStore_ReserveSuccess(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	id := uuid.New()
	mock.ExpectExec("UPDATE inventories").
		WithArgs(id, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	store := NewLedgerStore(db)
	if err := store.Reserve(context.Background(), id, 5); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
}

func TestLedgerStore_ReserveInsufficient(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	id := uuid.New()
	mock.ExpectExec("UPDATE inventories").
		WithArgs(id, 50).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT total_quantity - reserved_quantity").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(20))
	mock.ExpectClose()

	store := NewLedgerStore(db)
	err := store.Reserve(context.Background(), id, 50)

	var insufficient *inventory.InsufficientInventoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientInventoryError, got %v", err)
	}
	if insufficient.Requested != 50 || insufficient.Available != 20 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
}

func TestLedgerStore_ReleaseInvalid(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	id := uuid.New()
	mock.ExpectExec("UPDATE inventories").
		WithArgs(id, 9).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT reserved_quantity").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"reserved"}).AddRow(3))
	mock.ExpectClose()

	store := NewLedgerStore(db)
	err := store.Release(context.Background(), id, 9)

	var invalid *inventory.InvalidReleaseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidReleaseError, got %v", err)
	}
	if invalid.Requested != 9 || invalid.Reserved != 3 {
		t.Fatalf("unexpected error detail: %+v", invalid)
	}
}

func ledgerRows(ledgers ...inventory.Ledger) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "product_id", "warehouse_id", "total_quantity", "reserved_quantity",
		"batch_number", "expiration_date", "product_sku", "product_name", "product_price",
		"warehouse_name", "warehouse_city",
	})
	for _, l := range ledgers {
		rows.AddRow(l.ID, l.ProductID, l.WarehouseID, l.TotalQuantity, l.ReservedQuantity,
			l.BatchNumber, l.ExpirationDate, l.ProductSKU, l.ProductName, l.ProductPrice,
			l.WarehouseName, l.WarehouseCity)
	}
	return rows
}

func TestLedgerStore_AllocateSplitsAcrossBatches(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	productID := uuid.New()
	expiring := inventory.Ledger{
		ID: uuid.New(), ProductID: productID, WarehouseID: uuid.New(),
		TotalQuantity: 10, ReservedQuantity: 4, BatchNumber: "B-1",
		ExpirationDate: time.Now().Add(20 * 24 * time.Hour),
		ProductSKU:     "SKU-1", ProductName: "Gauze", ProductPrice: 10,
		WarehouseName: "Central", WarehouseCity: "Bogota",
	}
	fresh := expiring
	fresh.ID = uuid.New()
	fresh.ReservedQuantity = 0
	fresh.BatchNumber = "B-2"
	fresh.ExpirationDate = time.Now().Add(60 * 24 * time.Hour)

	minExpiration := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM inventories").
		WithArgs(productID, minExpiration).
		WillReturnRows(ledgerRows(expiring, fresh))
	mock.ExpectExec("UPDATE inventories").
		WithArgs(expiring.ID, 6).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE inventories").
		WithArgs(fresh.ID, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	store := NewLedgerStore(db)
	allocations, err := store.Allocate(context.Background(), productID, 10, minExpiration)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].InventoryID != expiring.ID || allocations[0].Quantity != 6 {
		t.Fatalf("expected FEFO batch first, got %+v", allocations[0])
	}
	if allocations[1].InventoryID != fresh.ID || allocations[1].Quantity != 4 {
		t.Fatalf("unexpected second allocation: %+v", allocations[1])
	}
}

func TestLedgerStore_AllocateShortfallKeepsEarlierReservations(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	productID := uuid.New()
	only := inventory.Ledger{
		ID: uuid.New(), ProductID: productID, WarehouseID: uuid.New(),
		TotalQuantity: 5, ReservedQuantity: 0, BatchNumber: "B-1",
		ExpirationDate: time.Now().Add(30 * 24 * time.Hour),
		ProductSKU:     "SKU-1", ProductName: "Gauze", ProductPrice: 10,
		WarehouseName: "Central", WarehouseCity: "Bogota",
	}

	minExpiration := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM inventories").
		WithArgs(productID, minExpiration).
		WillReturnRows(ledgerRows(only))
	mock.ExpectExec("UPDATE inventories").
		WithArgs(only.ID, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	store := NewLedgerStore(db)
	allocations, err := store.Allocate(context.Background(), productID, 8, minExpiration)

	var insufficient *inventory.InsufficientInventoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientInventoryError, got %v", err)
	}
	// The partial reservation is not rolled back here; the caller decides.
	if len(allocations) != 1 || allocations[0].Quantity != 5 {
		t.Fatalf("expected the partial allocation to be reported, got %+v", allocations)
	}
}
