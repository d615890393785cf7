package ordersdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"medisupply/internal/orders"
)

// MemoryStore is an in-memory orders.Store for tests and local runs.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*orders.Order

	InsertErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*orders.Order)}
}

func (m *MemoryStore) Insert(_ context.Context, o *orders.Order) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *o
	clone.Items = append([]orders.OrderItem(nil), o.Items...)
	m.byID[o.ID] = &clone
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *o
	clone.Items = append([]orders.OrderItem(nil), o.Items...)
	return &clone, nil
}

// Count returns how many orders have been stored.
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
