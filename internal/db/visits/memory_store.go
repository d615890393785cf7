package visitsdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/visits"
)

// MemoryStore is an in-memory visits.Store for tests and local runs.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*visits.Visit
	stored []*visits.Visit

	InsertErr error
	FindErr   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*visits.Visit)}
}

func (m *MemoryStore) Insert(_ context.Context, v *visits.Visit) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *v
	m.byID[v.ID] = &clone
	m.stored = append(m.stored, &clone)
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*visits.Visit, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.byID[id]
	if !ok {
		return nil, ErrVisitNotFound
	}
	clone := *v
	return &clone, nil
}

func (m *MemoryStore) FindConflicting(_ context.Context, sellerID uuid.UUID, at time.Time) (*visits.Visit, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	minTime, maxTime := visits.ConflictWindowFor(at)
	for _, v := range m.stored {
		if v.SellerID != sellerID || v.Status == visits.StatusCancelled {
			continue
		}
		if !v.VisitDate.Before(minTime) && !v.VisitDate.After(maxTime) {
			clone := *v
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status visits.Status, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.byID[id]
	if !ok {
		return ErrVisitNotFound
	}
	v.Status = status
	v.UpdatedAt = updatedAt
	return nil
}

// Stored returns every inserted visit, in insertion order.
func (m *MemoryStore) Stored() []*visits.Visit {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*visits.Visit, len(m.stored))
	for i, v := range m.stored {
		clone := *v
		out[i] = &clone
	}
	return out
}
