package stripe

import (
	"encoding/json"
	"strconv"

	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/types"
)

// eventTypeMap translates Stripe event types to canonical ones. Events not
// listed here normalize to "unknown" and are acknowledged without dispatch.
var eventTypeMap = map[string]string{
	"checkout.session.completed":    types.WebhookCheckoutCompleted,
	"invoice.paid":                  types.WebhookInvoicePaid,
	"invoice.payment_succeeded":     types.WebhookInvoicePaid,
	"invoice.payment_failed":        types.WebhookInvoiceFailed,
	"customer.subscription.updated": types.WebhookSubscriptionUpdated,
	"customer.subscription.deleted": types.WebhookSubscriptionDeleted,
	"payment_method.attached":       types.WebhookPaymentMethodAttached,
	"payment_method.detached":       types.WebhookPaymentMethodDetached,
	"charge.refunded":               types.WebhookPaymentRefunded,
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object map[string]any `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent normalizes a Stripe webhook payload. Total: malformed
// payloads come back as "unknown" rather than an error.
func (g *Gateway) ParseWebhookEvent(payload []byte) gateway.CanonicalEvent {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.ID == "" {
		return gateway.CanonicalEvent{Type: types.WebhookUnknown}
	}

	canonicalType, ok := eventTypeMap[envelope.Type]
	if !ok {
		return gateway.CanonicalEvent{
			Type: types.WebhookUnknown,
			ID:   envelope.ID,
			Raw:  json.RawMessage(payload),
		}
	}

	object := envelope.Data.Object
	event := gateway.CanonicalEvent{
		Type:     canonicalType,
		ID:       envelope.ID,
		Status:   objString(object, "status"),
		Metadata: map[string]string{},
		Raw:      json.RawMessage(payload),
	}

	// Pass through the application metadata the checkout flow attached.
	if meta, ok := object["metadata"].(map[string]any); ok {
		for k, v := range meta {
			if s, ok := v.(string); ok {
				event.Metadata[k] = s
			}
		}
	}

	switch canonicalType {
	case types.WebhookCheckoutCompleted:
		event.Metadata["session_id"] = objString(object, "id")
		event.Metadata["customer"] = objString(object, "customer")
		event.Metadata["payment_intent"] = objString(object, "payment_intent")
		event.Metadata["subscription"] = objString(object, "subscription")
		if s := objString(object, "payment_status"); s != "" {
			event.Status = s
		}

	case types.WebhookInvoicePaid, types.WebhookInvoiceFailed:
		event.Metadata["invoice_id"] = objString(object, "id")
		event.Metadata["subscription"] = invoiceSubscriptionID(object)
		event.Metadata["customer"] = objString(object, "customer")
		event.Metadata["payment_intent"] = objString(object, "payment_intent")
		event.Metadata["currency"] = objString(object, "currency")
		event.Metadata["amount_paid"] = objInt(object, "amount_paid")
		event.Metadata["amount_due"] = objInt(object, "amount_due")
		event.Metadata["period_start"] = objInt(object, "period_start")
		event.Metadata["period_end"] = objInt(object, "period_end")
		event.Metadata["billing_reason"] = objString(object, "billing_reason")

	case types.WebhookSubscriptionUpdated, types.WebhookSubscriptionDeleted:
		event.Metadata["subscription"] = objString(object, "id")
		event.Metadata["customer"] = objString(object, "customer")
		if v, ok := object["cancel_at_period_end"].(bool); ok {
			event.Metadata["cancel_at_period_end"] = strconv.FormatBool(v)
		}
		start, end := subscriptionPeriod(object)
		event.Metadata["period_start"] = start
		event.Metadata["period_end"] = end

	case types.WebhookPaymentMethodAttached, types.WebhookPaymentMethodDetached:
		event.Metadata["payment_method"] = objString(object, "id")
		event.Metadata["customer"] = objString(object, "customer")
		event.Metadata["method_type"] = objString(object, "type")
		if card, ok := object["card"].(map[string]any); ok {
			event.Metadata["brand"] = objString(card, "brand")
			event.Metadata["last4"] = objString(card, "last4")
			event.Metadata["exp_month"] = objInt(card, "exp_month")
			event.Metadata["exp_year"] = objInt(card, "exp_year")
		}

	case types.WebhookPaymentRefunded:
		event.Metadata["charge_id"] = objString(object, "id")
		event.Metadata["payment_intent"] = objString(object, "payment_intent")
		event.Metadata["amount_refunded"] = objInt(object, "amount_refunded")
		event.Metadata["currency"] = objString(object, "currency")
	}

	return event
}

// invoiceSubscriptionID handles both the flat subscription field and the
// nested parent.subscription_details shape newer API versions emit.
func invoiceSubscriptionID(object map[string]any) string {
	if s := objString(object, "subscription"); s != "" {
		return s
	}
	if parent, ok := object["parent"].(map[string]any); ok {
		if details, ok := parent["subscription_details"].(map[string]any); ok {
			return objString(details, "subscription")
		}
	}
	return ""
}

// subscriptionPeriod reads the current period from the first item, falling
// back to the top-level fields older API versions carry.
func subscriptionPeriod(object map[string]any) (string, string) {
	if items, ok := object["items"].(map[string]any); ok {
		if data, ok := items["data"].([]any); ok && len(data) > 0 {
			if item, ok := data[0].(map[string]any); ok {
				start := objInt(item, "current_period_start")
				end := objInt(item, "current_period_end")
				if start != "" && end != "" {
					return start, end
				}
			}
		}
	}
	return objInt(object, "current_period_start"), objInt(object, "current_period_end")
}

func objString(object map[string]any, key string) string {
	switch v := object[key].(type) {
	case string:
		return v
	case map[string]any:
		// Expandable references serialize as objects with an id.
		return objString(v, "id")
	}
	return ""
}

func objInt(object map[string]any, key string) string {
	if v, ok := object[key].(float64); ok {
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}
