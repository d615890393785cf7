package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Message is one inbound broker message awaiting processing.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          []byte
}

// QueueClient is the broker surface the consumer needs: long-poll receive
// and per-message delete. Deleting is the only commit signal; a message
// left undeleted reappears after the broker's visibility timeout.
type QueueClient interface {
	Receive(ctx context.Context, maxMessages int32, wait time.Duration) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Handler processes one decoded event.
type Handler interface {
	Handle(ctx context.Context, event map[string]any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event map[string]any) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event map[string]any) error {
	return f(ctx, event)
}

// Registry maps event types to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry constructs an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to an event type, replacing any previous one.
func (r *Registry) Register(eventType string, handler Handler) {
	r.handlers[eventType] = handler
}

// Lookup returns the handler for an event type, if any.
func (r *Registry) Lookup(eventType string) (Handler, bool) {
	h, ok := r.handlers[eventType]
	return h, ok
}

// ConsumerConfig tunes the polling loop.
type ConsumerConfig struct {
	MaxMessages  int32
	WaitTime     time.Duration
	ErrorBackoff time.Duration
}

// Consumer long-polls a queue and dispatches messages to registered
// handlers. A message is deleted when its handler succeeds, or when it is
// malformed or of no interest to this service; handler failures leave the
// message on the queue for redelivery.
type Consumer struct {
	queue        QueueClient
	registry     *Registry
	logger       *slog.Logger
	maxMessages  int32
	waitTime     time.Duration
	errorBackoff time.Duration
}

// NewConsumer constructs a Consumer with sane polling defaults.
func NewConsumer(queue QueueClient, registry *Registry, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	maxMessages := cfg.MaxMessages
	if maxMessages < 1 {
		maxMessages = 10
	}
	waitTime := cfg.WaitTime
	if waitTime <= 0 {
		waitTime = 20 * time.Second
	}
	errorBackoff := cfg.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = 5 * time.Second
	}
	return &Consumer{
		queue:        queue,
		registry:     registry,
		logger:       logger,
		maxMessages:  maxMessages,
		waitTime:     waitTime,
		errorBackoff: errorBackoff,
	}
}

// Run polls until ctx is cancelled. Cancellation is observed at the top of
// each iteration, so in-flight message processing finishes before exit.
// Transport errors back the loop off and keep it alive.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("consumer stopped")
			return err
		}

		messages, err := c.queue.Receive(ctx, c.maxMessages, c.waitTime)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopped")
				return ctx.Err()
			}
			c.logger.Error("receive failed, backing off", "error", err)
			if sleepErr := sleep(ctx, c.errorBackoff); sleepErr != nil {
				c.logger.Info("consumer stopped")
				return sleepErr
			}
			continue
		}

		for _, msg := range messages {
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg Message) {
	var event map[string]any
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		// Poison message: it will never parse, so drop it for good.
		c.logger.Error("message body is not valid JSON, dropping",
			"message_id", msg.ID, "error", err)
		c.delete(ctx, msg)
		return
	}

	eventType, _ := event["event_type"].(string)
	if eventType == "" {
		c.logger.Error("message missing event_type, dropping", "message_id", msg.ID)
		c.delete(ctx, msg)
		return
	}

	handler, ok := c.registry.Lookup(eventType)
	if !ok {
		// Not interesting to this service; dropping is policy,
		// not an oversight.
		c.logger.Warn("no handler registered for event type, dropping",
			"event_type", eventType, "message_id", msg.ID)
		c.delete(ctx, msg)
		return
	}

	c.logger.Info("processing event", "event_type", eventType, "message_id", msg.ID)

	if err := handler.Handle(ctx, event); err != nil {
		// Leave the message undeleted; the broker redelivers it
		// after the visibility timeout.
		c.logger.Error("handler failed, message left for redelivery",
			"event_type", eventType, "message_id", msg.ID, "error", err)
		return
	}

	c.delete(ctx, msg)
}

func (c *Consumer) delete(ctx context.Context, msg Message) {
	if err := c.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		c.logger.Error("message delete failed", "message_id", msg.ID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
