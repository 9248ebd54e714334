package btcpay

import (
	"encoding/json"

	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/types"
)

// eventTypeMap translates BTCPay webhook types to canonical ones. BTCPay
// speaks in invoice state transitions; anything unlisted normalizes to
// "unknown" and is acknowledged without dispatch.
var eventTypeMap = map[string]string{
	"InvoiceSettled":    types.WebhookInvoicePaid,
	"InvoiceExpired":    types.WebhookInvoiceExpired,
	"InvoiceInvalid":    types.WebhookInvoiceFailed,
	"InvoiceProcessing": types.WebhookInvoiceProcessing,
	"InvoiceCreated":    types.WebhookInvoiceCreated,
}

type webhookEnvelope struct {
	DeliveryID         string         `json:"deliveryId"`
	OriginalDeliveryID string         `json:"originalDeliveryId"`
	Type               string         `json:"type"`
	StoreID            string         `json:"storeId"`
	InvoiceID          string         `json:"invoiceId"`
	Metadata           map[string]any `json:"metadata"`
	ManuallyMarked     bool           `json:"manuallyMarked"`
	OverPaid           bool           `json:"overPaid"`
}

// ParseWebhookEvent normalizes a BTCPay webhook payload. Total: malformed
// payloads come back as "unknown" rather than an error.
//
// Redeliveries reuse the original delivery ID so replays of the same event
// dedup to a single row.
func (g *Gateway) ParseWebhookEvent(payload []byte) gateway.CanonicalEvent {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type == "" {
		return gateway.CanonicalEvent{Type: types.WebhookUnknown}
	}

	eventID := envelope.OriginalDeliveryID
	if eventID == "" {
		eventID = envelope.DeliveryID
	}
	if eventID == "" {
		eventID = envelope.Type + ":" + envelope.InvoiceID
	}

	canonicalType, ok := eventTypeMap[envelope.Type]
	if !ok {
		return gateway.CanonicalEvent{
			Type: types.WebhookUnknown,
			ID:   eventID,
			Raw:  json.RawMessage(payload),
		}
	}

	event := gateway.CanonicalEvent{
		Type:     canonicalType,
		ID:       eventID,
		Status:   envelope.Type,
		Metadata: map[string]string{},
		Raw:      json.RawMessage(payload),
	}

	event.Metadata["invoice_id"] = envelope.InvoiceID
	event.Metadata["store_id"] = envelope.StoreID
	if envelope.ManuallyMarked {
		event.Metadata["manually_marked"] = "true"
	}
	if envelope.OverPaid {
		event.Metadata["over_paid"] = "true"
	}
	for k, v := range envelope.Metadata {
		if s, ok := v.(string); ok {
			event.Metadata[k] = s
		}
	}

	return event
}
