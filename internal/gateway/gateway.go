package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/types"
)

// CanonicalEvent is the gateway-agnostic shape every webhook payload is
// normalized to before dispatch. Parsing is total: malformed payloads come
// back as Type "unknown" with an empty Raw, never an error, so the HTTP
// layer can acknowledge them and stop the gateway's retry loop.
type CanonicalEvent struct {
	Type     string            `json:"type"`
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Raw      json.RawMessage   `json:"raw"`
}

// CheckoutParams describes a hosted checkout session to create.
type CheckoutParams struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CustomerID  string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is a hosted checkout session at the gateway.
type CheckoutSession struct {
	ID         string
	URL        string
	Status     string
	CustomerID string
	Metadata   map[string]string
}

// ChargeParams describes a direct charge.
type ChargeParams struct {
	Amount      decimal.Decimal
	Currency    string
	CustomerID  string
	Description string
	Metadata    map[string]string
}

// MethodChargeParams describes an off-session charge against a saved
// payment method.
type MethodChargeParams struct {
	Amount          decimal.Decimal
	Currency        string
	CustomerID      string
	PaymentMethodID string
	InvoiceID       string
	IdempotencyKey  string
	Metadata        map[string]string
}

// ChargeResult is the outcome of a charge.
type ChargeResult struct {
	GatewayPaymentID string
	Status           types.PaymentStatus
	Raw              string
}

// SubscriptionParams describes a recurring subscription to create or update.
type SubscriptionParams struct {
	CustomerID     string
	PriceID        string
	Amount         decimal.Decimal
	Currency       string
	BillingCycle   types.BillingCycle
	TrialEnd       *time.Time
	IdempotencyKey string
	Metadata       map[string]string
}

// GatewaySubscription mirrors the gateway's view of a subscription.
type GatewaySubscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// GatewayInvoice mirrors the gateway's view of an invoice.
type GatewayInvoice struct {
	ID             string
	SubscriptionID string
	Amount         decimal.Decimal
	AmountPaid     decimal.Decimal
	Currency       string
	Status         string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	HostedURL      string
}

// RefundParams describes a refund of a captured payment.
type RefundParams struct {
	GatewayPaymentID string
	Amount           decimal.Decimal
	Reason           string
}

// RefundResult is the outcome of a refund.
type RefundResult struct {
	RefundID string
	Status   string
}

// Gateway is the uniform contract over heterogeneous payment gateways.
// Implementations degrade gracefully where the underlying gateway lacks a
// concept: each method documents on the implementation whether it is
// native, emulated or a no-op.
type Gateway interface {
	Type() types.PaymentGateway

	// SupportsOffSessionCharge reports whether the gateway can charge a
	// saved payment method without the customer present. Crypto gateways
	// cannot; the dunning retry stage short-circuits on it.
	SupportsOffSessionCharge() bool

	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// CreateSetupSession starts a flow to save a payment method, returning
	// the URL to send the customer to.
	CreateSetupSession(ctx context.Context, customerID, returnURL string) (string, error)

	Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error)
	ChargePaymentMethod(ctx context.Context, params MethodChargeParams) (*ChargeResult, error)

	CreateSubscription(ctx context.Context, params SubscriptionParams) (*GatewaySubscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*GatewaySubscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, params SubscriptionParams) (*GatewaySubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error
	PauseSubscription(ctx context.Context, subscriptionID string) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error

	AttachPaymentMethod(ctx context.Context, customerID, methodID string) error
	DetachPaymentMethod(ctx context.Context, methodID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error

	Refund(ctx context.Context, params RefundParams) (*RefundResult, error)
	GetInvoice(ctx context.Context, invoiceID string) (*GatewayInvoice, error)

	// VerifyWebhookSignature checks the HMAC signature over the raw payload
	// bytes. Fails closed: no secret, empty signature or mismatch all
	// return false, never an error.
	VerifyWebhookSignature(payload []byte, signature string) bool

	// ParseWebhookEvent normalizes a raw payload into a CanonicalEvent.
	// Total: never returns an error.
	ParseWebhookEvent(payload []byte) CanonicalEvent
}
