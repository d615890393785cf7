package eventsdb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventStore is the dedup ledger surface consumer handlers use.
type EventStore interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, event ProcessedEvent) error
}

// ProbeCache answers "seen before?" faster than the database can. It only
// caches positive answers; a miss always falls through to the store.
type ProbeCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// RedisProbe is a ProbeCache on Redis with a bounded key lifetime.
type RedisProbe struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProbe constructs a probe cache. A non-positive ttl defaults to
// 24 hours, comfortably past any broker redelivery window.
func NewRedisProbe(client *redis.Client, ttl time.Duration) *RedisProbe {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisProbe{client: client, ttl: ttl}
}

func probeKey(eventID string) string {
	return "processed_event:" + eventID
}

// Seen reports whether the event id is cached.
func (p *RedisProbe) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := p.client.Exists(ctx, probeKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remember caches the event id.
func (p *RedisProbe) Remember(ctx context.Context, eventID string) error {
	return p.client.Set(ctx, probeKey(eventID), 1, p.ttl).Err()
}

// CachedStore layers a ProbeCache over an EventStore. Cache failures
// degrade to the database: the ledger stays the source of truth and the
// uniqueness constraint stays the correctness guarantee.
type CachedStore struct {
	store  EventStore
	cache  ProbeCache
	logger *slog.Logger
}

// NewCachedStore constructs a read-through cached store.
func NewCachedStore(store EventStore, cache ProbeCache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{store: store, cache: cache, logger: logger}
}

// Exists consults the cache first and falls back to the store. A hit in
// the store backfills the cache.
func (c *CachedStore) Exists(ctx context.Context, eventID string) (bool, error) {
	seen, err := c.cache.Seen(ctx, eventID)
	if err != nil {
		c.logger.Debug("probe cache unavailable, falling back to store",
			"event_id", eventID, "error", err)
	} else if seen {
		return true, nil
	}

	exists, err := c.store.Exists(ctx, eventID)
	if err != nil {
		return false, err
	}
	if exists {
		if cacheErr := c.cache.Remember(ctx, eventID); cacheErr != nil {
			c.logger.Debug("probe cache backfill failed", "event_id", eventID, "error", cacheErr)
		}
	}
	return exists, nil
}

// MarkProcessed writes through to the store, then the cache.
func (c *CachedStore) MarkProcessed(ctx context.Context, event ProcessedEvent) error {
	if err := c.store.MarkProcessed(ctx, event); err != nil {
		return err
	}
	if cacheErr := c.cache.Remember(ctx, event.EventID); cacheErr != nil {
		c.logger.Debug("probe cache write failed", "event_id", event.EventID, "error", cacheErr)
	}
	return nil
}

// NewMemoryProbe constructs an in-memory ProbeCache for tests and local
// runs without Redis.
func NewMemoryProbe() *MemoryProbe {
	return &MemoryProbe{seen: make(map[string]bool)}
}

// MemoryProbe is a ProbeCache in process memory.
type MemoryProbe struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

// Fail makes every subsequent call return err, for degradation tests.
func (m *MemoryProbe) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryProbe) Seen(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.seen[eventID], nil
}

func (m *MemoryProbe) Remember(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.seen[eventID] = true
	return nil
}
