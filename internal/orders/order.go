// Package orders implements order creation: downstream validation,
// FEFO inventory allocation, pricing, persistence, and the
// order_created event.
package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/inventory"
)

// CreationMethod records how an order entered the system. Wire values
// are Spanish to match the services this worker talks to.
type CreationMethod string

const (
	CreationSellerVisit CreationMethod = "visita_vendedor"
	CreationClientApp   CreationMethod = "app_cliente"
	CreationSellerApp   CreationMethod = "app_vendedor"
)

// OrderItem is one priced allocation line. FEFO allocation may split a
// requested product across batches, producing one item per batch.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	InventoryID uuid.UUID
	Quantity    int
	UnitPrice   float64
	TotalPrice  float64

	ProductName    string
	ProductSKU     string
	WarehouseID    uuid.UUID
	WarehouseName  string
	WarehouseCity  string
	BatchNumber    string
	ExpirationDate time.Time
}

// Order is the order aggregate. Customer and seller fields are a
// denormalized snapshot taken at creation time. EstimatedDelivery and
// RouteID stay nil until the delivery service sets them via events.
type Order struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	SellerID   *uuid.UUID
	VisitID    *uuid.UUID
	RouteID    *uuid.UUID

	OrderDate         time.Time
	EstimatedDelivery *time.Time
	CreationMethod    CreationMethod

	DeliveryAddress string
	DeliveryCity    string
	DeliveryCountry string

	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	SellerName    string
	SellerEmail   string

	TotalAmount float64
	Items       []OrderItem
}

// AddItem appends an item and updates the running total.
func (o *Order) AddItem(item OrderItem) error {
	if item.OrderID != o.ID {
		return fmt.Errorf("item %s belongs to order %s, not %s", item.ID, item.OrderID, o.ID)
	}
	o.Items = append(o.Items, item)
	o.TotalAmount += item.TotalPrice
	return nil
}

// ItemFromAllocation prices an allocation for orderID: the ledger's base
// price with the standard markup applied.
func ItemFromAllocation(orderID uuid.UUID, alloc inventory.Allocation) OrderItem {
	unitPrice := alloc.ProductPrice * inventory.MarkupFactor
	return OrderItem{
		ID:             uuid.New(),
		OrderID:        orderID,
		ProductID:      alloc.ProductID,
		InventoryID:    alloc.InventoryID,
		Quantity:       alloc.Quantity,
		UnitPrice:      unitPrice,
		TotalPrice:     float64(alloc.Quantity) * unitPrice,
		ProductName:    alloc.ProductName,
		ProductSKU:     alloc.ProductSKU,
		WarehouseID:    alloc.WarehouseID,
		WarehouseName:  alloc.WarehouseName,
		WarehouseCity:  alloc.WarehouseCity,
		BatchNumber:    alloc.BatchNumber,
		ExpirationDate: alloc.ExpirationDate,
	}
}
