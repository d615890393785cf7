package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	eventsdb "medisupply/internal/db/events"
)

// OrderCreatedHandler accumulates order totals into the seller's current
// sales plan. It is idempotent: each event_id is applied at most once,
// tracked through the processed-event ledger.
type OrderCreatedHandler struct {
	plans     PlanStore
	processed eventsdb.EventStore
	logger    *slog.Logger
}

func NewOrderCreatedHandler(plans PlanStore, processed eventsdb.EventStore, logger *slog.Logger) *OrderCreatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderCreatedHandler{plans: plans, processed: processed, logger: logger}
}

// Handle applies one order_created event. Orders without a seller are
// skipped but still recorded as processed. Errors are returned so the
// consumer leaves the message for redelivery.
func (h *OrderCreatedHandler) Handle(ctx context.Context, event map[string]any) error {
	eventID, ok := event["event_id"].(string)
	if !ok || eventID == "" {
		return errors.New("order_created event missing event_id")
	}
	orderID, _ := event["order_id"].(string)

	seen, err := h.processed.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check processed %s: %w", eventID, err)
	}
	if seen {
		h.logger.Info("event already processed, skipping",
			"event_id", eventID, "order_id", orderID)
		return nil
	}

	sellerID, hasSeller, err := sellerIDFrom(event)
	if err != nil {
		return err
	}

	record, err := processedEventFrom(eventID, event)
	if err != nil {
		return err
	}

	if hasSeller {
		amount, err := amountFrom(event)
		if err != nil {
			return err
		}
		period := PeriodFor(timestampOrNow(event))
		// One atomic write: if a concurrent delivery already recorded the
		// event, the increment rolls back with it. The duplicate error is
		// never absorbed; the redelivered message hits the Exists check
		// above and is skipped then.
		if err := h.plans.ApplyOrderCreated(ctx, sellerID, period, amount, record); err != nil {
			if errors.Is(err, eventsdb.ErrDuplicateEvent) {
				h.logger.Warn("concurrent processing of event detected",
					"event_id", eventID, "order_id", orderID)
			}
			return fmt.Errorf("accumulate %.2f for seller %s period %s: %w",
				amount, sellerID, period, err)
		}
		h.logger.Info("sales plan updated from order",
			"order_id", orderID, "seller_id", sellerID, "monto_total", amount, "period", period)
		return nil
	}

	h.logger.Info("order has no seller, skipping sales plan update",
		"order_id", orderID)
	return h.processed.MarkProcessed(ctx, record)
}

func processedEventFrom(eventID string, event map[string]any) (eventsdb.ProcessedEvent, error) {
	snapshot, err := json.Marshal(event)
	if err != nil {
		return eventsdb.ProcessedEvent{}, fmt.Errorf("snapshot event %s: %w", eventID, err)
	}
	eventType, _ := event["event_type"].(string)
	microservice, _ := event["microservice"].(string)

	return eventsdb.ProcessedEvent{
		EventID:         eventID,
		EventType:       eventType,
		Microservice:    microservice,
		PayloadSnapshot: string(snapshot),
	}, nil
}

func sellerIDFrom(event map[string]any) (uuid.UUID, bool, error) {
	raw, ok := event["seller_id"]
	if !ok || raw == nil {
		return uuid.Nil, false, nil
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid seller_id %q: %w", s, err)
	}
	return id, true, nil
}

// timestampOrNow picks the quarter from the event's own timestamp so a
// redelivered event lands in the period the order was placed in, not the
// period it happened to be processed in.
func timestampOrNow(event map[string]any) time.Time {
	raw, _ := event["timestamp"].(string)
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}

func amountFrom(event map[string]any) (float64, error) {
	switch v := event["monto_total"].(type) {
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("order_created event has no usable monto_total (%T)", v)
	}
}
