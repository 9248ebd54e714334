package webhookevent

import (
	"time"

	"github.com/stackbill/stackbill/internal/types"
)

// WebhookEvent is the persisted record of an inbound gateway webhook.
// The (gateway, event_id) pair is unique in the store: that constraint is
// what gives at-most-once logical processing even when the gateway retries
// a delivery or two deliveries race.
type WebhookEvent struct {
	// ID is the unique identifier for the event record
	ID string `db:"id" json:"id"`

	// Gateway is the source gateway
	Gateway types.PaymentGateway `db:"gateway" json:"gateway"`

	// EventID is the gateway's own identifier for the event
	EventID string `db:"event_id" json:"event_id"`

	// EventType is the canonical event type after normalization
	EventType string `db:"event_type" json:"event_type"`

	// Payload is the raw request body as received
	Payload []byte `db:"payload" json:"-"`

	// EventStatus is the processing state of the event
	EventStatus types.WebhookEventStatus `db:"event_status" json:"event_status"`

	// Attempts counts processing attempts
	Attempts int `db:"attempts" json:"attempts"`

	// LastError is the last processing failure, if any
	LastError string `db:"last_error" json:"last_error"`

	// OrderID/SubscriptionID link the event to the records it touched
	OrderID        string `db:"order_id" json:"order_id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	ReceivedAt  time.Time  `db:"received_at" json:"received_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at"`

	types.BaseModel
}
