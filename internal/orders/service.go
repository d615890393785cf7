package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/clients"
	"medisupply/internal/events"
	"medisupply/internal/inventory"
	"medisupply/internal/saga"
)

// ErrNoItems rejects an order with an empty item list.
var ErrNoItems = errors.New("order requires at least one item")

// ErrVisitRequiresSeller rejects a visit reference without a seller.
var ErrVisitRequiresSeller = errors.New("visit_id requires seller_id")

// Store persists order aggregates.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
}

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput is the input to CreateOrder. SellerID and VisitID are
// optional depending on the creation method.
type CreateOrderInput struct {
	CustomerID     uuid.UUID
	CreationMethod CreationMethod
	Items          []ItemInput
	SellerID       *uuid.UUID
	VisitID        *uuid.UUID
}

// Service creates orders against the downstream services and the order
// store.
type Service struct {
	store     Store
	customers clients.CustomerService
	sellers   clients.SellerService
	inventory clients.InventoryService
	executor  *saga.Executor
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	store Store,
	customers clients.CustomerService,
	sellers clients.SellerService,
	inventorySvc clients.InventoryService,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		customers: customers,
		sellers:   sellers,
		inventory: inventorySvc,
		executor:  saga.NewExecutor(logger),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrder runs the order-creation saga: fetch the customer (and
// seller/visit when referenced), allocate every requested item FEFO
// against inventory, persist the aggregate. order_created is published
// best effort after the saga succeeds, outside the compensable chain.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrNoItems
	}
	if input.VisitID != nil && input.SellerID == nil {
		return nil, ErrVisitRequiresSeller
	}

	var customer clients.Customer
	var seller *clients.Seller
	var order *Order

	steps := []saga.Step{
		{
			Name: "fetch-references",
			Forward: func(ctx context.Context) error {
				got, err := s.customers.GetCustomer(ctx, input.CustomerID)
				if err != nil {
					return fmt.Errorf("fetch customer %s: %w", input.CustomerID, err)
				}
				customer = got

				if input.SellerID != nil {
					sel, err := s.sellers.GetSeller(ctx, *input.SellerID)
					if err != nil {
						return fmt.Errorf("fetch seller %s: %w", *input.SellerID, err)
					}
					seller = &sel
				}
				if input.VisitID != nil {
					if err := s.sellers.ValidateVisit(ctx, *input.VisitID, *input.SellerID); err != nil {
						return fmt.Errorf("validate visit %s: %w", *input.VisitID, err)
					}
				}
				return nil
			},
		},
		{
			Name: "allocate-inventory",
			// Allocations are not released when a later item fails: the
			// inventory service holds the earlier reservations until they
			// expire. There is no cross-item compensation.
			Forward: func(ctx context.Context) error {
				orderDate := s.now()
				minExpiration := orderDate.AddDate(0, 0, inventory.SafetyBufferDays)

				order = &Order{
					ID:              uuid.New(),
					CustomerID:      customer.ID,
					SellerID:        input.SellerID,
					VisitID:         input.VisitID,
					OrderDate:       orderDate,
					CreationMethod:  input.CreationMethod,
					DeliveryAddress: customer.Address,
					DeliveryCity:    customer.City,
					DeliveryCountry: customer.Country,
					CustomerName:    customer.Name,
					CustomerPhone:   customer.Phone,
					CustomerEmail:   customer.Email,
				}
				if seller != nil {
					order.SellerName = seller.Name
					order.SellerEmail = seller.Email
				}

				for _, item := range input.Items {
					allocations, err := s.inventory.Allocate(ctx, item.ProductID, item.Quantity, minExpiration)
					if err != nil {
						return fmt.Errorf("allocate %d of product %s: %w", item.Quantity, item.ProductID, err)
					}
					for _, alloc := range allocations {
						if err := order.AddItem(ItemFromAllocation(order.ID, alloc)); err != nil {
							return err
						}
					}
				}
				return nil
			},
		},
		{
			Name: "persist-order",
			Forward: func(ctx context.Context) error {
				if err := s.store.Insert(ctx, order); err != nil {
					return fmt.Errorf("save order %s: %w", order.ID, err)
				}
				return nil
			},
		},
	}

	result := s.executor.Execute(ctx, steps)
	if result.Status != saga.StatusSucceeded {
		return nil, result.Err()
	}

	s.publisher.Publish(ctx, "order_created", orderCreatedPayload(order))

	s.logger.Info("order created",
		"order_id", order.ID, "customer_id", order.CustomerID,
		"items", len(order.Items), "monto_total", order.TotalAmount)
	return order, nil
}

func orderCreatedPayload(o *Order) map[string]any {
	items := make([]map[string]any, len(o.Items))
	for i, item := range o.Items {
		items[i] = map[string]any{
			"producto_id":   item.ProductID.String(),
			"inventario_id": item.InventoryID.String(),
			"cantidad":      item.Quantity,
			"warehouse_id":  item.WarehouseID.String(),
		}
	}

	payload := map[string]any{
		"order_id":               o.ID.String(),
		"customer_id":            o.CustomerID.String(),
		"seller_id":              nil,
		"visit_id":               nil,
		"fecha_pedido":           o.OrderDate.UTC().Format(time.RFC3339),
		"fecha_entrega_estimada": nil,
		"monto_total":            o.TotalAmount,
		"metodo_creacion":        string(o.CreationMethod),
		"items":                  items,
	}
	if o.SellerID != nil {
		payload["seller_id"] = o.SellerID.String()
	}
	if o.VisitID != nil {
		payload["visit_id"] = o.VisitID.String()
	}
	if o.EstimatedDelivery != nil {
		payload["fecha_entrega_estimada"] = o.EstimatedDelivery.UTC().Format(time.RFC3339)
	}
	return payload
}
