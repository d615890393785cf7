package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventsdb "medisupply/internal/db/events"
	salesdb "medisupply/internal/db/sales"
	"medisupply/internal/sales"
)

func orderCreatedEvent(sellerID any, amount float64) map[string]any {
	return map[string]any{
		"event_id":     uuid.NewString(),
		"event_type":   "order_created",
		"microservice": "order",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"order_id":     uuid.NewString(),
		"customer_id":  uuid.NewString(),
		"seller_id":    sellerID,
		"monto_total":  amount,
	}
}

func seedPlan(t *testing.T, store *salesdb.MemoryStore, sellerID uuid.UUID) {
	t.Helper()
	err := store.Insert(context.Background(), &sales.Plan{
		SellerID: sellerID,
		Period:   sales.PeriodFor(time.Now()),
		Goal:     100000,
	})
	require.NoError(t, err)
}

func TestOrderCreatedHandler_AccumulatesIntoCurrentPlan(t *testing.T) {
	plans := salesdb.NewMemoryStore()
	processed := plans.Processed
	handler := sales.NewOrderCreatedHandler(plans, processed, nil)

	sellerID := uuid.New()
	seedPlan(t, plans, sellerID)

	event := orderCreatedEvent(sellerID.String(), 1250.50)
	require.NoError(t, handler.Handle(context.Background(), event))

	plan, err := plans.FindBySellerAndPeriod(context.Background(), sellerID, sales.PeriodFor(time.Now()))
	require.NoError(t, err)
	assert.InDelta(t, 1250.50, plan.Accumulate, 1e-9)

	recorded, ok := processed.Recorded(event["event_id"].(string))
	require.True(t, ok, "event should be marked processed")
	assert.Equal(t, "order_created", recorded.EventType)
}

func TestOrderCreatedHandler_DuplicateEventAppliedOnce(t *testing.T) {
	plans := salesdb.NewMemoryStore()
	processed := plans.Processed
	handler := sales.NewOrderCreatedHandler(plans, processed, nil)

	sellerID := uuid.New()
	seedPlan(t, plans, sellerID)

	event := orderCreatedEvent(sellerID.String(), 200.0)
	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	plan, err := plans.FindBySellerAndPeriod(context.Background(), sellerID, sales.PeriodFor(time.Now()))
	require.NoError(t, err)
	assert.InDelta(t, 200.0, plan.Accumulate, 1e-9, "redelivery must not double-count")
}

// staleExistsStore misses its first lookups, standing in for a second
// consumer whose dedup check ran before the first one's insert committed.
type staleExistsStore struct {
	*eventsdb.MemoryStore
	misses int
}

func (s *staleExistsStore) Exists(ctx context.Context, eventID string) (bool, error) {
	if s.misses > 0 {
		s.misses--
		return false, nil
	}
	return s.MemoryStore.Exists(ctx, eventID)
}

func TestOrderCreatedHandler_LostInsertRaceRollsBackAccumulate(t *testing.T) {
	plans := salesdb.NewMemoryStore()
	stale := &staleExistsStore{MemoryStore: plans.Processed, misses: 2}
	handler := sales.NewOrderCreatedHandler(plans, stale, nil)

	sellerID := uuid.New()
	seedPlan(t, plans, sellerID)

	event := orderCreatedEvent(sellerID.String(), 300.0)
	require.NoError(t, handler.Handle(context.Background(), event))

	// The second delivery got past the dedup check, so only the atomic
	// apply can stop it: the increment must roll back with the rejected
	// insert and the error must surface for redelivery.
	err := handler.Handle(context.Background(), event)
	require.ErrorIs(t, err, eventsdb.ErrDuplicateEvent)

	plan, err := plans.FindBySellerAndPeriod(context.Background(), sellerID, sales.PeriodFor(time.Now()))
	require.NoError(t, err)
	assert.InDelta(t, 300.0, plan.Accumulate, 1e-9, "lost race must not double-count")
}

func TestOrderCreatedHandler_NoSellerStillMarkedProcessed(t *testing.T) {
	plans := salesdb.NewMemoryStore()
	processed := plans.Processed
	handler := sales.NewOrderCreatedHandler(plans, processed, nil)

	event := orderCreatedEvent(nil, 99.0)
	require.NoError(t, handler.Handle(context.Background(), event))

	_, ok := processed.Recorded(event["event_id"].(string))
	assert.True(t, ok, "sellerless orders are recorded so redeliveries drop out")
}

func TestOrderCreatedHandler_MissingPlanLeavesEventUnprocessed(t *testing.T) {
	plans := salesdb.NewMemoryStore()
	processed := plans.Processed
	handler := sales.NewOrderCreatedHandler(plans, processed, nil)

	event := orderCreatedEvent(uuid.NewString(), 50.0)
	err := handler.Handle(context.Background(), event)
	require.ErrorIs(t, err, salesdb.ErrPlanNotFound)

	_, ok := processed.Recorded(event["event_id"].(string))
	assert.False(t, ok, "failed events stay unrecorded so redelivery can retry")
}

func TestOrderCreatedHandler_MissingEventIDRejected(t *testing.T) {
	plans := salesdb.NewMemoryStore()
	handler := sales.NewOrderCreatedHandler(plans, plans.Processed, nil)

	err := handler.Handle(context.Background(), map[string]any{"order_id": uuid.NewString()})
	assert.Error(t, err)
}

func TestPeriodFor(t *testing.T) {
	assert.Equal(t, "Q1-2026", sales.PeriodFor(time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Q4-2025", sales.PeriodFor(time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)))
}

func TestValidatePeriod(t *testing.T) {
	assert.NoError(t, sales.ValidatePeriod("Q1-2025"))
	assert.Error(t, sales.ValidatePeriod("Q5-2025"))
	assert.Error(t, sales.ValidatePeriod("Q1-1999"))
	assert.Error(t, sales.ValidatePeriod("2025-Q1"))
}

func TestPlanStatus(t *testing.T) {
	now := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)

	current := &sales.Plan{Period: "Q3-2026", Goal: 100, Accumulate: 10}
	assert.Equal(t, sales.PlanStatusInProgress, current.Status(now))

	future := &sales.Plan{Period: "Q1-2027", Goal: 100}
	assert.Equal(t, sales.PlanStatusPlanned, future.Status(now))

	achieved := &sales.Plan{Period: "Q1-2026", Goal: 100, Accumulate: 120}
	assert.Equal(t, sales.PlanStatusAchieved, achieved.Status(now))

	missed := &sales.Plan{Period: "Q1-2026", Goal: 100, Accumulate: 40}
	assert.Equal(t, sales.PlanStatusMissed, missed.Status(now))
}
