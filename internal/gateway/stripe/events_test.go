package stripe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackbill/stackbill/internal/config"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/types"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := NewGateway(config.StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: "whsec_test",
	}, logger.NewNop())
	require.NoError(t, err)
	return gw
}

func TestParseWebhookEventCheckoutCompleted(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_42",
			"customer": "cus_9",
			"payment_intent": "pi_7",
			"subscription": "sub_gw_1",
			"payment_status": "paid",
			"metadata": {"order_id": "ord_local_1", "workspace_id": "ws_1"}
		}}
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, types.WebhookCheckoutCompleted, event.Type)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "paid", event.Status)
	assert.Equal(t, "cs_test_42", event.Metadata["session_id"])
	assert.Equal(t, "cus_9", event.Metadata["customer"])
	assert.Equal(t, "pi_7", event.Metadata["payment_intent"])
	assert.Equal(t, "sub_gw_1", event.Metadata["subscription"])
	assert.Equal(t, "ord_local_1", event.Metadata["order_id"])
	assert.Equal(t, "ws_1", event.Metadata["workspace_id"])
}

func TestParseWebhookEventInvoicePaid(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{
		"id": "evt_2",
		"type": "invoice.paid",
		"data": {"object": {
			"id": "in_55",
			"status": "paid",
			"subscription": "sub_gw_1",
			"customer": "cus_9",
			"payment_intent": "pi_8",
			"currency": "usd",
			"amount_paid": 2000,
			"amount_due": 2000,
			"billing_reason": "subscription_cycle"
		}}
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, types.WebhookInvoicePaid, event.Type)
	assert.Equal(t, "in_55", event.Metadata["invoice_id"])
	assert.Equal(t, "sub_gw_1", event.Metadata["subscription"])
	assert.Equal(t, "2000", event.Metadata["amount_paid"])
	assert.Equal(t, "subscription_cycle", event.Metadata["billing_reason"])
}

func TestParseWebhookEventNestedSubscriptionDetails(t *testing.T) {
	gw := newTestGateway(t)

	// Newer API versions move the subscription under parent.subscription_details.
	payload := []byte(`{
		"id": "evt_3",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_56",
			"parent": {"subscription_details": {"subscription": "sub_gw_2"}}
		}}
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, types.WebhookInvoicePaid, event.Type)
	assert.Equal(t, "sub_gw_2", event.Metadata["subscription"])
}

func TestParseWebhookEventExpandedReference(t *testing.T) {
	gw := newTestGateway(t)

	// Expanded references serialize as objects; the id is extracted.
	payload := []byte(`{
		"id": "evt_4",
		"type": "invoice.paid",
		"data": {"object": {
			"id": "in_57",
			"subscription": {"id": "sub_gw_3", "status": "active"}
		}}
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, "sub_gw_3", event.Metadata["subscription"])
}

func TestParseWebhookEventSubscriptionUpdated(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{
		"id": "evt_5",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_gw_1",
			"customer": "cus_9",
			"status": "past_due",
			"cancel_at_period_end": true,
			"items": {"data": [{"current_period_start": 1740000000, "current_period_end": 1742600000}]}
		}}
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, types.WebhookSubscriptionUpdated, event.Type)
	assert.Equal(t, "past_due", event.Status)
	assert.Equal(t, "true", event.Metadata["cancel_at_period_end"])
	assert.Equal(t, "1740000000", event.Metadata["period_start"])
	assert.Equal(t, "1742600000", event.Metadata["period_end"])
}

func TestParseWebhookEventPaymentMethodAttached(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{
		"id": "evt_6",
		"type": "payment_method.attached",
		"data": {"object": {
			"id": "pm_1",
			"customer": "cus_9",
			"type": "card",
			"card": {"brand": "visa", "last4": "4242", "exp_month": 12, "exp_year": 2030}
		}}
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, types.WebhookPaymentMethodAttached, event.Type)
	assert.Equal(t, "pm_1", event.Metadata["payment_method"])
	assert.Equal(t, "4242", event.Metadata["last4"])
	assert.Equal(t, "12", event.Metadata["exp_month"])
	assert.Equal(t, "2030", event.Metadata["exp_year"])
}

func TestParseWebhookEventIsTotal(t *testing.T) {
	gw := newTestGateway(t)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed json", payload: `{"id": "evt`},
		{name: "missing id", payload: `{"type": "invoice.paid"}`},
		{name: "empty payload", payload: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := gw.ParseWebhookEvent([]byte(tt.payload))
			assert.Equal(t, types.WebhookUnknown, event.Type)
			assert.Empty(t, event.ID)
		})
	}

	// Unrecognized event types keep their ID so the dedup row still lands.
	event := gw.ParseWebhookEvent([]byte(`{"id": "evt_7", "type": "customer.created"}`))
	assert.Equal(t, types.WebhookUnknown, event.Type)
	assert.Equal(t, "evt_7", event.ID)
}
