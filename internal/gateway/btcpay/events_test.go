package btcpay

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
	gw, err := NewGateway(config.BTCPayConfig{
		ServerURL:     "https://btcpay.example.com",
		StoreID:       "store_1",
		APIKey:        "token_test",
		WebhookSecret: "whsec_test",
	}, logger.NewNop())
	require.NoError(t, err)
	return gw
}

func TestParseWebhookEventInvoiceSettled(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{
		"deliveryId": "d_1",
		"type": "InvoiceSettled",
		"storeId": "store_1",
		"invoiceId": "inv_btc_9",
		"metadata": {"order_id": "ord_local_1", "workspace_id": "ws_1"}
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, types.WebhookInvoicePaid, event.Type)
	assert.Equal(t, "d_1", event.ID)
	assert.Equal(t, "InvoiceSettled", event.Status)
	assert.Equal(t, "inv_btc_9", event.Metadata["invoice_id"])
	assert.Equal(t, "ord_local_1", event.Metadata["order_id"])
	assert.Equal(t, "ws_1", event.Metadata["workspace_id"])
}

func TestParseWebhookEventRedeliveryKeepsOriginalID(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{
		"deliveryId": "d_2",
		"originalDeliveryId": "d_1",
		"type": "InvoiceSettled",
		"invoiceId": "inv_btc_9"
	}`)

	// Redeliveries dedup against the original delivery.
	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, "d_1", event.ID)
}

func TestParseWebhookEventFallbackID(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{"type": "InvoiceExpired", "invoiceId": "inv_btc_9"}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, types.WebhookInvoiceExpired, event.Type)
	assert.Equal(t, "InvoiceExpired:inv_btc_9", event.ID)
}

func TestParseWebhookEventStateMap(t *testing.T) {
	gw := newTestGateway(t)

	tests := []struct {
		btcpayType string
		want       string
	}{
		{btcpayType: "InvoiceSettled", want: types.WebhookInvoicePaid},
		{btcpayType: "InvoiceExpired", want: types.WebhookInvoiceExpired},
		{btcpayType: "InvoiceInvalid", want: types.WebhookInvoiceFailed},
		{btcpayType: "InvoiceProcessing", want: types.WebhookInvoiceProcessing},
		{btcpayType: "InvoiceCreated", want: types.WebhookInvoiceCreated},
		{btcpayType: "InvoicePaymentSettled", want: types.WebhookUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.btcpayType, func(t *testing.T) {
			event := gw.ParseWebhookEvent([]byte(`{"deliveryId": "d_3", "type": "` + tt.btcpayType + `"}`))
			assert.Equal(t, tt.want, event.Type)
		})
	}
}

func TestParseWebhookEventFlags(t *testing.T) {
	gw := newTestGateway(t)

	payload := []byte(`{
		"deliveryId": "d_4",
		"type": "InvoiceSettled",
		"invoiceId": "inv_btc_9",
		"manuallyMarked": true,
		"overPaid": true
	}`)

	event := gw.ParseWebhookEvent(payload)
	assert.Equal(t, "true", event.Metadata["manually_marked"])
	assert.Equal(t, "true", event.Metadata["over_paid"])
}

func TestParseWebhookEventMalformed(t *testing.T) {
	gw := newTestGateway(t)

	for _, payload := range []string{`{"deliveryId": `, ``, `{"invoiceId": "inv_1"}`} {
		event := gw.ParseWebhookEvent([]byte(payload))
		assert.Equal(t, types.WebhookUnknown, event.Type)
	}
}
