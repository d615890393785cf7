package salesdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	eventsdb "medisupply/internal/db/events"
	"medisupply/internal/sales"
)

type planKey struct {
	sellerID uuid.UUID
	period   string
}

// MemoryStore is an in-memory sales.PlanStore for tests and local runs.
// Processed is the event ledger ApplyOrderCreated writes to; wire the
// same instance into the consumer's dedup probe.
type MemoryStore struct {
	mu    sync.Mutex
	plans map[planKey]*sales.Plan

	Processed *eventsdb.MemoryStore
	AddErr    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:     make(map[planKey]*sales.Plan),
		Processed: eventsdb.NewMemoryStore(),
	}
}

func (m *MemoryStore) Insert(_ context.Context, p *sales.Plan) error {
	if err := sales.ValidatePeriod(p.Period); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *p
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	m.plans[planKey{p.SellerID, p.Period}] = &clone
	return nil
}

func (m *MemoryStore) FindBySellerAndPeriod(_ context.Context, sellerID uuid.UUID, period string) (*sales.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[planKey{sellerID, period}]
	if !ok {
		return nil, ErrPlanNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MemoryStore) AddToAccumulate(_ context.Context, sellerID uuid.UUID, period string, amount float64) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[planKey{sellerID, period}]
	if !ok {
		return ErrPlanNotFound
	}
	p.Accumulate += amount
	p.UpdatedAt = time.Now()
	return nil
}

// ApplyOrderCreated mirrors the transactional store: the event is marked
// first, so a duplicate leaves the accumulate untouched.
func (m *MemoryStore) ApplyOrderCreated(ctx context.Context, sellerID uuid.UUID, period string, amount float64, event eventsdb.ProcessedEvent) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[planKey{sellerID, period}]
	if !ok {
		return ErrPlanNotFound
	}
	if err := m.Processed.MarkProcessed(ctx, event); err != nil {
		return err
	}
	p.Accumulate += amount
	p.UpdatedAt = time.Now()
	return nil
}
