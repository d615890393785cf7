package events

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// NewMemoryQueue constructs an in-memory queue. It backs local development
// and tests when no broker is configured.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inflight: make(map[string][]byte)}
}

// MemoryQueue is a QueueClient holding messages in memory. Received
// messages move to an in-flight set; Delete removes them, Requeue puts
// them back, mimicking a visibility-timeout redelivery.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  [][]byte
	inflight map[string][]byte
	seq      int
}

// Enqueue adds a raw message body to the queue.
func (q *MemoryQueue) Enqueue(body []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, body)
}

// Receive pops up to maxMessages pending messages. It does not block on an
// empty queue; wait is accepted to satisfy the interface.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int32, wait time.Duration) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := int(maxMessages)
	if n > len(q.pending) {
		n = len(q.pending)
	}

	messages := make([]Message, 0, n)
	for _, body := range q.pending[:n] {
		q.seq++
		handle := "handle-" + strconv.Itoa(q.seq)
		q.inflight[handle] = body
		messages = append(messages, Message{
			ID:            "msg-" + strconv.Itoa(q.seq),
			ReceiptHandle: handle,
			Body:          body,
		})
	}
	q.pending = q.pending[n:]

	return messages, nil
}

// Delete removes an in-flight message for good.
func (q *MemoryQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, receiptHandle)
	return nil
}

// Requeue returns every in-flight message to the pending queue, as a
// broker would after the visibility timeout expires.
func (q *MemoryQueue) Requeue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for handle, body := range q.inflight {
		q.pending = append(q.pending, body)
		delete(q.inflight, handle)
	}
}

// InflightCount reports how many received messages await deletion.
func (q *MemoryQueue) InflightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// PendingCount reports how many messages await receipt.
func (q *MemoryQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// NewMemoryPublisher constructs an in-memory publisher.
func NewMemoryPublisher(microservice string) *MemoryPublisher {
	return &MemoryPublisher{microservice: microservice}
}

// MemoryPublisher records published envelopes for inspection. When a
// target queue is attached, published events are delivered to it, which
// lets one process exercise the full produce/consume pipeline.
type MemoryPublisher struct {
	mu           sync.Mutex
	microservice string
	published    []Envelope
	target       *MemoryQueue
}

// AttachQueue routes published events into q.
func (p *MemoryPublisher) AttachQueue(q *MemoryQueue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = q
}

// Publish enriches and records the event.
func (p *MemoryPublisher) Publish(ctx context.Context, eventType string, payload map[string]any) {
	envelope := NewEnvelope(eventType, p.microservice, payload)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, envelope)

	if p.target != nil {
		if body, err := envelope.MarshalJSON(); err == nil {
			p.target.Enqueue(body)
		}
	}
}

// Published returns the envelopes published so far.
func (p *MemoryPublisher) Published() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.published))
	copy(out, p.published)
	return out
}
