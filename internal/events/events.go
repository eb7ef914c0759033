package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the order lifecycle and reconciliation flows.
const (
	TypeOrderPlaced      = "order.placed"
	TypeOrderConfirmed   = "order.confirmed"
	TypeOrderRejected    = "order.rejected"
	TypeOrderPrepared    = "order.prepared"
	TypeOrderDispatched  = "order.dispatched"
	TypeOrderDelivered   = "order.delivered"
	TypeOrderCancelled   = "order.cancelled"
	TypeInvoiceGenerated = "invoice.generated"
	TypePaymentCompleted = "payment.completed"
)

// SchemaVersion is the current envelope schema carried by every event.
const SchemaVersion = 1

// ProducerService identifies this service in event envelopes.
const ProducerService = "orders-api"

// Envelope is the wire format shared by all published events.
type Envelope struct {
	EventID         string `json:"event_id"`
	EventType       string `json:"event_type"`
	SchemaVersion   int    `json:"schema_version"`
	ProducerService string `json:"producer_service"`
	OccurredAt      string `json:"occurred_at"`
	Payload         any    `json:"payload"`
}

// NewEnvelope builds an envelope for the given event type and payload.
func NewEnvelope(eventType string, occurredAt time.Time, payload any) Envelope {
	return Envelope{
		EventID:         uuid.NewString(),
		EventType:       eventType,
		SchemaVersion:   SchemaVersion,
		ProducerService: ProducerService,
		OccurredAt:      occurredAt.UTC().Format(time.RFC3339Nano),
		Payload:         payload,
	}
}

// Publisher delivers event envelopes to downstream consumers. Publish failures
// must not abort the business operation that triggered the event; callers log
// and continue.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) (string, error)
}

// NopPublisher discards every event and is used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(_ context.Context, envelope Envelope) (string, error) {
	return envelope.EventID, nil
}
