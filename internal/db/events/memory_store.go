package eventsdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewMemoryStore constructs an in-memory EventStore for tests and local
// runs without Postgres. It enforces the same event_id uniqueness the
// database constraint does.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]ProcessedEvent)}
}

// MemoryStore is an EventStore in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]ProcessedEvent
}

func (m *MemoryStore) Exists(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkProcessed(ctx context.Context, event ProcessedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[event.EventID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, event.EventID)
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}
	m.events[event.EventID] = event
	return nil
}

// Recorded returns the stored event for an id, for inspection in tests.
func (m *MemoryStore) Recorded(eventID string) (ProcessedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	return ev, ok
}
