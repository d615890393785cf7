// Package ordersdb persists order aggregates in Postgres.
package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"medisupply/internal/orders"
)

// ErrOrderNotFound is returned when an order id has no row.
var ErrOrderNotFound = errors.New("order not found")

// Store persists orders and their items in a single transaction.
type Store struct {
	db *sql.DB
}

// NewStore constructs an order store backed by Postgres.
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

// InitSchema creates the orders and order_items tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			customer_id UUID NOT NULL,
			seller_id UUID,
			visit_id UUID,
			route_id UUID,
			fecha_pedido TIMESTAMPTZ NOT NULL,
			fecha_entrega_estimada TIMESTAMPTZ,
			metodo_creacion TEXT NOT NULL,
			direccion_entrega TEXT NOT NULL,
			ciudad_entrega TEXT NOT NULL,
			pais_entrega TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_phone TEXT,
			customer_email TEXT,
			seller_name TEXT,
			seller_email TEXT,
			monto_total NUMERIC(14,2) NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			pedido_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			producto_id UUID NOT NULL,
			inventario_id UUID NOT NULL,
			cantidad INT NOT NULL CHECK (cantidad > 0),
			precio_unitario NUMERIC(14,2) NOT NULL,
			precio_total NUMERIC(14,2) NOT NULL,
			product_name TEXT NOT NULL,
			product_sku TEXT NOT NULL,
			warehouse_id UUID NOT NULL,
			warehouse_name TEXT NOT NULL,
			warehouse_city TEXT NOT NULL,
			batch_number TEXT NOT NULL,
			expiration_date DATE NOT NULL
		)
	`)
	return err
}

// Insert persists the order and all its items atomically.
func (s *Store) Insert(ctx context.Context, o *orders.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, seller_id, visit_id, route_id,
			fecha_pedido, fecha_entrega_estimada, metodo_creacion,
			direccion_entrega, ciudad_entrega, pais_entrega,
			customer_name, customer_phone, customer_email,
			seller_name, seller_email, monto_total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.CustomerID, o.SellerID, o.VisitID, o.RouteID,
		o.OrderDate, o.EstimatedDelivery, string(o.CreationMethod),
		o.DeliveryAddress, o.DeliveryCity, o.DeliveryCountry,
		o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.SellerName, o.SellerEmail, o.TotalAmount,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, pedido_id, producto_id, inventario_id, cantidad,
				precio_unitario, precio_total, product_name, product_sku,
				warehouse_id, warehouse_name, warehouse_city,
				batch_number, expiration_date
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			item.ID, item.OrderID, item.ProductID, item.InventoryID, item.Quantity,
			item.UnitPrice, item.TotalPrice, item.ProductName, item.ProductSKU,
			item.WarehouseID, item.WarehouseName, item.WarehouseCity,
			item.BatchNumber, item.ExpirationDate,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// FindByID loads an order and its items.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, seller_id, visit_id, route_id,
			fecha_pedido, fecha_entrega_estimada, metodo_creacion,
			direccion_entrega, ciudad_entrega, pais_entrega,
			customer_name, customer_phone, customer_email,
			seller_name, seller_email, monto_total
		FROM orders WHERE id = $1`, id)

	var o orders.Order
	var method string
	var phone, email, sellerName, sellerEmail sql.NullString
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.SellerID, &o.VisitID, &o.RouteID,
		&o.OrderDate, &o.EstimatedDelivery, &method,
		&o.DeliveryAddress, &o.DeliveryCity, &o.DeliveryCountry,
		&o.CustomerName, &phone, &email,
		&sellerName, &sellerEmail, &o.TotalAmount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.CreationMethod = orders.CreationMethod(method)
	o.CustomerPhone = phone.String
	o.CustomerEmail = email.String
	o.SellerName = sellerName.String
	o.SellerEmail = sellerEmail.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pedido_id, producto_id, inventario_id, cantidad,
			precio_unitario, precio_total, product_name, product_sku,
			warehouse_id, warehouse_name, warehouse_city,
			batch_number, expiration_date
		FROM order_items WHERE pedido_id = $1
		ORDER BY expiration_date ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item orders.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.InventoryID, &item.Quantity,
			&item.UnitPrice, &item.TotalPrice, &item.ProductName, &item.ProductSKU,
			&item.WarehouseID, &item.WarehouseName, &item.WarehouseCity,
			&item.BatchNumber, &item.ExpirationDate,
		)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}
