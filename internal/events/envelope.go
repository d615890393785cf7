// Package events implements the shared event pipeline: outbound envelope
// enrichment with fire-and-forget publishing, and an inbound polling
// consumer that dispatches messages by event type.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// timestampLayout is ISO-8601 UTC with millisecond precision and a "Z"
// suffix, matching what every service in the fleet emits.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Envelope is a domain payload enriched with routing and idempotency
// metadata. It is immutable once built: consumers rely on EventID for
// deduplication and on EventType/Microservice for routing.
type Envelope struct {
	EventType    string
	Microservice string
	Timestamp    string
	EventID      string

	payload map[string]any
}

// NewEnvelope enriches payload with event metadata. The payload map is
// copied so later caller mutations cannot leak into the envelope.
func NewEnvelope(eventType, microservice string, payload map[string]any) Envelope {
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}

	return Envelope{
		EventType:    eventType,
		Microservice: microservice,
		Timestamp:    time.Now().UTC().Format(timestampLayout),
		EventID:      uuid.NewString(),
		payload:      copied,
	}
}

// MarshalJSON flattens metadata and domain fields into one JSON object.
// Metadata keys win over clashing payload keys.
func (e Envelope) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(e.payload)+4)
	for k, v := range e.payload {
		merged[k] = v
	}
	merged["event_type"] = e.EventType
	merged["microservice"] = e.Microservice
	merged["timestamp"] = e.Timestamp
	merged["event_id"] = e.EventID

	return json.Marshal(merged)
}

// Field returns a domain field carried by the envelope, if present.
func (e Envelope) Field(key string) (any, bool) {
	v, ok := e.payload[key]
	return v, ok
}
