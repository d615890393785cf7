// Package inventory holds the stock reservation ledger and its invariants.
package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MarkupFactor is applied to the ledger's base price when an order
// line is priced.
const MarkupFactor = 1.30

// SafetyBufferDays is the minimum number of days between the order date
// and a batch's expiration for the batch to be allocatable.
const SafetyBufferDays = 10

// InsufficientInventoryError reports a reserve exceeding available stock.
type InsufficientInventoryError struct {
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory: requested %d, available %d", e.Requested, e.Available)
}

// InvalidReleaseError reports a release exceeding the reserved quantity.
type InvalidReleaseError struct {
	Requested int
	Reserved  int
}

func (e *InvalidReleaseError) Error() string {
	return fmt.Sprintf("invalid reservation release: requested %d, currently reserved %d", e.Requested, e.Reserved)
}

// Ledger is one stock record: a product batch held at a warehouse.
// Quantities are only mutated through Reserve, Release and Adjust, which
// keep 0 <= ReservedQuantity <= TotalQuantity.
type Ledger struct {
	ID               uuid.UUID
	ProductID        uuid.UUID
	WarehouseID      uuid.UUID
	TotalQuantity    int
	ReservedQuantity int
	BatchNumber      string
	ExpirationDate   time.Time

	// Denormalized for read performance, as stored upstream.
	ProductSKU    string
	ProductName   string
	ProductPrice  float64
	WarehouseName string
	WarehouseCity string
}

// Available returns the quantity not yet reserved.
func (l *Ledger) Available() int {
	return l.TotalQuantity - l.ReservedQuantity
}

// CanReserve reports whether qty can be reserved.
func (l *Ledger) CanReserve(qty int) bool {
	return qty > 0 && qty <= l.Available()
}

// Reserve marks qty units as reserved.
func (l *Ledger) Reserve(qty int) error {
	if !l.CanReserve(qty) {
		return &InsufficientInventoryError{Requested: qty, Available: l.Available()}
	}
	l.ReservedQuantity += qty
	return nil
}

// CanRelease reports whether qty reserved units can be released.
func (l *Ledger) CanRelease(qty int) bool {
	return qty > 0 && qty <= l.ReservedQuantity
}

// Release returns qty reserved units to the available pool.
func (l *Ledger) Release(qty int) error {
	if !l.CanRelease(qty) {
		return &InvalidReleaseError{Requested: qty, Reserved: l.ReservedQuantity}
	}
	l.ReservedQuantity -= qty
	return nil
}

// Adjust reserves on a positive delta, releases on a negative one, and is
// a no-op on zero.
func (l *Ledger) Adjust(delta int) error {
	switch {
	case delta > 0:
		return l.Reserve(delta)
	case delta < 0:
		return l.Release(-delta)
	default:
		return nil
	}
}

// Allocation is the slice of a ledger record promised to one order line.
// FEFO allocation may split a requested quantity across several batches,
// producing one Allocation per batch.
type Allocation struct {
	InventoryID    uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	ProductPrice   float64
	ProductName    string
	ProductSKU     string
	WarehouseID    uuid.UUID
	WarehouseName  string
	WarehouseCity  string
	BatchNumber    string
	ExpirationDate time.Time
}
