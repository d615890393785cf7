package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	events []map[string]any
	err    error
}

func (h *countingHandler) Handle(ctx context.Context, event map[string]any) error {
	h.events = append(h.events, event)
	return h.err
}

// runUntilDrained polls the consumer until the queue is empty, then cancels.
func runUntilDrained(t *testing.T, consumer *Consumer, queue *MemoryQueue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for queue.PendingCount() > 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("queue never drained")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done
}

func newTestConsumer(queue *MemoryQueue, registry *Registry) *Consumer {
	return NewConsumer(queue, registry, ConsumerConfig{
		MaxMessages:  10,
		WaitTime:     time.Millisecond,
		ErrorBackoff: time.Millisecond,
	}, nil)
}

func TestConsumer_DispatchesAndDeletesOnSuccess(t *testing.T) {
	queue := NewMemoryQueue()
	queue.Enqueue([]byte(`{"event_type":"order_created","order_id":"o-1"}`))

	handler := &countingHandler{}
	registry := NewRegistry()
	registry.Register("order_created", handler)

	runUntilDrained(t, newTestConsumer(queue, registry), queue)

	require.Len(t, handler.events, 1)
	assert.Equal(t, "o-1", handler.events[0]["order_id"])
	assert.Equal(t, 0, queue.InflightCount())
}

func TestConsumer_InvalidJSONIsDeletedWithoutDispatch(t *testing.T) {
	queue := NewMemoryQueue()
	queue.Enqueue([]byte(`{not json`))

	handler := &countingHandler{}
	registry := NewRegistry()
	registry.Register("order_created", handler)

	runUntilDrained(t, newTestConsumer(queue, registry), queue)

	assert.Empty(t, handler.events)
	assert.Equal(t, 0, queue.InflightCount())
}

func TestConsumer_MissingEventTypeIsDeleted(t *testing.T) {
	queue := NewMemoryQueue()
	queue.Enqueue([]byte(`{"order_id":"o-1"}`))

	registry := NewRegistry()
	runUntilDrained(t, newTestConsumer(queue, registry), queue)

	assert.Equal(t, 0, queue.InflightCount())
}

func TestConsumer_UnregisteredEventTypeIsDeleted(t *testing.T) {
	queue := NewMemoryQueue()
	queue.Enqueue([]byte(`{"event_type":"route_assigned"}`))

	handler := &countingHandler{}
	registry := NewRegistry()
	registry.Register("order_created", handler)

	runUntilDrained(t, newTestConsumer(queue, registry), queue)

	assert.Empty(t, handler.events)
	assert.Equal(t, 0, queue.InflightCount())
}

func TestConsumer_HandlerErrorLeavesMessageForRedelivery(t *testing.T) {
	queue := NewMemoryQueue()
	queue.Enqueue([]byte(`{"event_type":"order_created","order_id":"o-1"}`))

	handler := &countingHandler{err: errors.New("db unavailable")}
	registry := NewRegistry()
	registry.Register("order_created", handler)

	runUntilDrained(t, newTestConsumer(queue, registry), queue)

	require.Len(t, handler.events, 1)
	// Undeleted: still in flight, eligible for redelivery.
	assert.Equal(t, 1, queue.InflightCount())

	queue.Requeue()
	assert.Equal(t, 1, queue.PendingCount())
}

func TestConsumer_StopsOnContextCancel(t *testing.T) {
	queue := NewMemoryQueue()
	consumer := newTestConsumer(queue, NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := consumer.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
