package btcpay

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/config"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/types"
)

// Gateway is the BTCPay Server implementation of the gateway contract.
//
// BTCPay has no recurring billing, no customers and no saved payment
// methods, so subscriptions are emulated: each billing period produces a
// fresh crypto invoice the customer pays manually, and the subscription
// record lives entirely on our side. Methods that require a gateway-side
// concept BTCPay lacks either no-op or return an invalid-operation error,
// documented per method.
type Gateway struct {
	client *client
	cfg    config.BTCPayConfig
	logger *logger.Logger
}

// NewGateway creates a BTCPay gateway from configuration.
func NewGateway(cfg config.BTCPayConfig, logger *logger.Logger) (*Gateway, error) {
	if cfg.ServerURL == "" || cfg.StoreID == "" || cfg.APIKey == "" {
		return nil, ierr.NewError("btcpay not configured").
			WithHint("BTCPay server URL, store ID and API key are required").
			Mark(ierr.ErrConfiguration)
	}
	return &Gateway{
		client: newClient(cfg.ServerURL, cfg.StoreID, cfg.APIKey, logger),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (g *Gateway) Type() types.PaymentGateway {
	return types.PaymentGatewayBTCPay
}

// SupportsOffSessionCharge is false: a crypto payment always requires the
// customer to act.
func (g *Gateway) SupportsOffSessionCharge() bool {
	return false
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	metadata := map[string]any{
		"orderId":  params.OrderID,
		"itemDesc": params.Description,
	}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	inv, err := g.client.createInvoice(ctx, createInvoiceRequest{
		Amount:   params.Amount.String(),
		Currency: params.Currency,
		Metadata: metadata,
		Checkout: &checkoutOpts{
			RedirectURL:           params.SuccessURL,
			RedirectAutomatically: true,
		},
	})
	if err != nil {
		return nil, err
	}

	return &gateway.CheckoutSession{
		ID:       inv.ID,
		URL:      inv.CheckoutLink,
		Status:   inv.Status,
		Metadata: stringMetadata(inv.Metadata),
	}, nil
}

func (g *Gateway) GetCheckoutSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	inv, err := g.client.getInvoice(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &gateway.CheckoutSession{
		ID:       inv.ID,
		URL:      inv.CheckoutLink,
		Status:   inv.Status,
		Metadata: stringMetadata(inv.Metadata),
	}, nil
}

// CreateSetupSession is a no-op: BTCPay has no payment methods to save.
// The return URL is handed back unchanged so the caller's flow completes.
func (g *Gateway) CreateSetupSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return returnURL, nil
}

// Charge issues a fresh crypto invoice the customer has to pay. The result
// is always pending; settlement arrives later by webhook.
func (g *Gateway) Charge(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
	metadata := map[string]any{"itemDesc": params.Description}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	inv, err := g.client.createInvoice(ctx, createInvoiceRequest{
		Amount:   params.Amount.String(),
		Currency: params.Currency,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	return &gateway.ChargeResult{
		GatewayPaymentID: inv.ID,
		Status:           types.PaymentStatusPending,
	}, nil
}

// ChargePaymentMethod is impossible on BTCPay: there is no stored method
// to charge without the customer present.
func (g *Gateway) ChargePaymentMethod(ctx context.Context, params gateway.MethodChargeParams) (*gateway.ChargeResult, error) {
	return nil, ierr.NewError("off-session charge not supported").
		WithHint("Crypto payments cannot be charged automatically").
		Mark(ierr.ErrInvalidOperation)
}

// CreateSubscription emulates a subscription by issuing the first period's
// invoice. The returned subscription ID is that invoice's ID; renewal
// invoices are issued by the billing loop, not the gateway.
func (g *Gateway) CreateSubscription(ctx context.Context, params gateway.SubscriptionParams) (*gateway.GatewaySubscription, error) {
	metadata := map[string]any{}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	inv, err := g.client.createInvoice(ctx, createInvoiceRequest{
		Amount:   params.Amount.String(),
		Currency: params.Currency,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &gateway.GatewaySubscription{
		ID:                 inv.ID,
		CustomerID:         params.CustomerID,
		Status:             "incomplete",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   params.BillingCycle.NextPeriodEnd(now),
	}, nil
}

// GetSubscription reads the emulated subscription's backing invoice and
// maps its state. Settled within the period means active.
func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (*gateway.GatewaySubscription, error) {
	inv, err := g.client.getInvoice(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	status := "incomplete"
	switch inv.Status {
	case "Settled":
		status = "active"
	case "Processing":
		status = "active"
	case "Expired", "Invalid":
		status = "past_due"
	}

	return &gateway.GatewaySubscription{
		ID:     inv.ID,
		Status: status,
	}, nil
}

// UpdateSubscription is a no-op: the emulated subscription state lives on
// our side and the next renewal invoice simply uses the new price.
func (g *Gateway) UpdateSubscription(ctx context.Context, subscriptionID string, params gateway.SubscriptionParams) (*gateway.GatewaySubscription, error) {
	return &gateway.GatewaySubscription{
		ID:         subscriptionID,
		CustomerID: params.CustomerID,
		Status:     "active",
	}, nil
}

// CancelSubscription voids the pending renewal invoice if one exists.
// There is no gateway-side subscription to cancel.
func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		return nil
	}
	inv, err := g.client.getInvoice(ctx, subscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if inv.Status == "New" {
		return g.client.markInvoiceInvalid(ctx, subscriptionID)
	}
	return nil
}

// PauseSubscription is a no-op: pausing an emulated subscription just
// stops issuing renewal invoices, which is handled by the billing loop.
func (g *Gateway) PauseSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

// ResumeSubscription is a no-op for the same reason.
func (g *Gateway) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

// AttachPaymentMethod is impossible: BTCPay stores no payment methods.
func (g *Gateway) AttachPaymentMethod(ctx context.Context, customerID, methodID string) error {
	return ierr.NewError("payment methods not supported").
		WithHint("Crypto payments have no stored payment methods").
		Mark(ierr.ErrInvalidOperation)
}

func (g *Gateway) DetachPaymentMethod(ctx context.Context, methodID string) error {
	return ierr.NewError("payment methods not supported").
		WithHint("Crypto payments have no stored payment methods").
		Mark(ierr.ErrInvalidOperation)
}

func (g *Gateway) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error {
	return ierr.NewError("payment methods not supported").
		WithHint("Crypto payments have no stored payment methods").
		Mark(ierr.ErrInvalidOperation)
}

func (g *Gateway) Refund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	refund, err := g.client.refundInvoice(ctx, params.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	return &gateway.RefundResult{
		RefundID: refund.ID,
		Status:   "pending",
	}, nil
}

func (g *Gateway) GetInvoice(ctx context.Context, invoiceID string) (*gateway.GatewayInvoice, error) {
	inv, err := g.client.getInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(inv.Amount)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Gateway returned a malformed amount").
			Mark(ierr.ErrGateway)
	}

	out := &gateway.GatewayInvoice{
		ID:       inv.ID,
		Amount:   amount,
		Currency: inv.Currency,
		Status:   inv.Status,
	}
	if inv.Status == "Settled" {
		out.AmountPaid = amount
	}
	return out, nil
}

// VerifyWebhookSignature checks the BTCPay-Sig HMAC over the raw payload.
// Fails closed when unconfigured.
func (g *Gateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return gateway.VerifyHMACSignature(payload, signature, g.cfg.WebhookSecret)
}

func stringMetadata(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
