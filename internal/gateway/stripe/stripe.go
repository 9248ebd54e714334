package stripe

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/stackbill/stackbill/internal/config"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/types"
)

// Gateway is the Stripe implementation of the gateway contract. Stripe has
// native recurring billing and saved payment methods, so nothing here is
// emulated.
type Gateway struct {
	client *stripeapi.Client
	cfg    config.StripeConfig
	logger *logger.Logger
}

// NewGateway creates a Stripe gateway from configuration.
func NewGateway(cfg config.StripeConfig, logger *logger.Logger) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, ierr.NewError("stripe api key not configured").
			WithHint("Stripe API key is required").
			Mark(ierr.ErrConfiguration)
	}
	return &Gateway{
		client: stripeapi.NewClient(cfg.APIKey, nil),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (g *Gateway) Type() types.PaymentGateway {
	return types.PaymentGatewayStripe
}

// SupportsOffSessionCharge is true: Stripe can charge a saved card without
// the customer present.
func (g *Gateway) SupportsOffSessionCharge() bool {
	return true
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	metadata := map[string]string{"order_id": params.OrderID}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	createParams := &stripeapi.CheckoutSessionCreateParams{
		Mode:       stripeapi.String("payment"),
		SuccessURL: stripeapi.String(params.SuccessURL),
		CancelURL:  stripeapi.String(params.CancelURL),
		Metadata:   metadata,
		LineItems: []*stripeapi.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripeapi.Int64(1),
				PriceData: &stripeapi.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripeapi.String(params.Currency),
					UnitAmount: stripeapi.Int64(toMinorUnits(params.Amount)),
					ProductData: &stripeapi.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripeapi.String(params.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripeapi.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if params.CustomerID != "" {
		createParams.Customer = stripeapi.String(params.CustomerID)
	}

	session, err := g.client.V1CheckoutSessions.Create(ctx, createParams)
	if err != nil {
		return nil, g.translateError(err, "failed to create checkout session")
	}

	return &gateway.CheckoutSession{
		ID:       session.ID,
		URL:      session.URL,
		Status:   string(session.Status),
		Metadata: session.Metadata,
	}, nil
}

func (g *Gateway) GetCheckoutSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	session, err := g.client.V1CheckoutSessions.Retrieve(ctx, sessionID, nil)
	if err != nil {
		return nil, g.translateError(err, "failed to retrieve checkout session")
	}

	out := &gateway.CheckoutSession{
		ID:       session.ID,
		URL:      session.URL,
		Status:   string(session.Status),
		Metadata: session.Metadata,
	}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}
	return out, nil
}

func (g *Gateway) CreateSetupSession(ctx context.Context, customerID, returnURL string) (string, error) {
	createParams := &stripeapi.CheckoutSessionCreateParams{
		Mode:       stripeapi.String("setup"),
		SuccessURL: stripeapi.String(returnURL),
		CancelURL:  stripeapi.String(returnURL),
	}
	if customerID != "" {
		createParams.Customer = stripeapi.String(customerID)
	}

	session, err := g.client.V1CheckoutSessions.Create(ctx, createParams)
	if err != nil {
		return "", g.translateError(err, "failed to create setup session")
	}
	return session.URL, nil
}

func (g *Gateway) Charge(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
	createParams := &stripeapi.PaymentIntentCreateParams{
		Amount:   stripeapi.Int64(toMinorUnits(params.Amount)),
		Currency: stripeapi.String(params.Currency),
		Confirm:  stripeapi.Bool(true),
		Metadata: params.Metadata,
	}
	if params.CustomerID != "" {
		createParams.Customer = stripeapi.String(params.CustomerID)
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, createParams)
	if err != nil {
		return nil, g.translateError(err, "charge failed")
	}

	return &gateway.ChargeResult{
		GatewayPaymentID: intent.ID,
		Status:           paymentStatusFromIntent(intent.Status),
		Raw:              string(intent.LastResponse.RawJSON),
	}, nil
}

// ChargePaymentMethod charges a saved card off-session, the dunning retry
// path for card subscriptions.
func (g *Gateway) ChargePaymentMethod(ctx context.Context, params gateway.MethodChargeParams) (*gateway.ChargeResult, error) {
	createParams := &stripeapi.PaymentIntentCreateParams{
		Amount:        stripeapi.Int64(toMinorUnits(params.Amount)),
		Currency:      stripeapi.String(params.Currency),
		Customer:      stripeapi.String(params.CustomerID),
		PaymentMethod: stripeapi.String(params.PaymentMethodID),
		OffSession:    stripeapi.Bool(true),
		Confirm:       stripeapi.Bool(true),
		Metadata:      params.Metadata,
	}
	if params.IdempotencyKey != "" {
		createParams.IdempotencyKey = stripeapi.String(params.IdempotencyKey)
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, createParams)
	if err != nil {
		return nil, g.translateError(err, "off-session charge failed")
	}

	return &gateway.ChargeResult{
		GatewayPaymentID: intent.ID,
		Status:           paymentStatusFromIntent(intent.Status),
		Raw:              string(intent.LastResponse.RawJSON),
	}, nil
}

func (g *Gateway) CreateSubscription(ctx context.Context, params gateway.SubscriptionParams) (*gateway.GatewaySubscription, error) {
	createParams := &stripeapi.SubscriptionCreateParams{
		Customer: stripeapi.String(params.CustomerID),
		Items: []*stripeapi.SubscriptionCreateItemParams{
			{Price: stripeapi.String(params.PriceID)},
		},
		Metadata: params.Metadata,
	}
	if params.TrialEnd != nil {
		createParams.TrialEnd = stripeapi.Int64(params.TrialEnd.Unix())
	}
	if params.IdempotencyKey != "" {
		createParams.IdempotencyKey = stripeapi.String(params.IdempotencyKey)
	}

	sub, err := g.client.V1Subscriptions.Create(ctx, createParams)
	if err != nil {
		return nil, g.translateError(err, "failed to create subscription")
	}
	return toGatewaySubscription(sub), nil
}

func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (*gateway.GatewaySubscription, error) {
	sub, err := g.client.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, g.translateError(err, "failed to retrieve subscription")
	}
	return toGatewaySubscription(sub), nil
}

func (g *Gateway) UpdateSubscription(ctx context.Context, subscriptionID string, params gateway.SubscriptionParams) (*gateway.GatewaySubscription, error) {
	current, err := g.client.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, g.translateError(err, "failed to retrieve subscription")
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, ierr.NewError("subscription has no items").
			WithHint("Subscription has no line items to update").
			Mark(ierr.ErrInvalidOperation)
	}

	updateParams := &stripeapi.SubscriptionUpdateParams{
		Items: []*stripeapi.SubscriptionUpdateItemParams{
			{
				ID:    stripeapi.String(current.Items.Data[0].ID),
				Price: stripeapi.String(params.PriceID),
			},
		},
		ProrationBehavior: stripeapi.String("none"),
		Metadata:          params.Metadata,
	}

	sub, err := g.client.V1Subscriptions.Update(ctx, subscriptionID, updateParams)
	if err != nil {
		return nil, g.translateError(err, "failed to update subscription")
	}
	return toGatewaySubscription(sub), nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		_, err := g.client.V1Subscriptions.Update(ctx, subscriptionID, &stripeapi.SubscriptionUpdateParams{
			CancelAtPeriodEnd: stripeapi.Bool(true),
		})
		if err != nil {
			return g.translateError(err, "failed to schedule cancellation")
		}
		return nil
	}

	_, err := g.client.V1Subscriptions.Cancel(ctx, subscriptionID, nil)
	if err != nil {
		return g.translateError(err, "failed to cancel subscription")
	}
	return nil
}

func (g *Gateway) PauseSubscription(ctx context.Context, subscriptionID string) error {
	_, err := g.client.V1Subscriptions.Update(ctx, subscriptionID, &stripeapi.SubscriptionUpdateParams{
		PauseCollection: &stripeapi.SubscriptionUpdatePauseCollectionParams{
			Behavior: stripeapi.String("void"),
		},
	})
	if err != nil {
		return g.translateError(err, "failed to pause subscription")
	}
	return nil
}

func (g *Gateway) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripeapi.SubscriptionUpdateParams{}
	// Clearing pause_collection resumes collection; the typed params have no
	// "unset" so the raw field is cleared explicitly.
	params.AddExtra("pause_collection", "")

	_, err := g.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return g.translateError(err, "failed to resume subscription")
	}
	return nil
}

func (g *Gateway) AttachPaymentMethod(ctx context.Context, customerID, methodID string) error {
	_, err := g.client.V1PaymentMethods.Attach(ctx, methodID, &stripeapi.PaymentMethodAttachParams{
		Customer: stripeapi.String(customerID),
	})
	if err != nil {
		return g.translateError(err, "failed to attach payment method")
	}
	return nil
}

func (g *Gateway) DetachPaymentMethod(ctx context.Context, methodID string) error {
	_, err := g.client.V1PaymentMethods.Detach(ctx, methodID, nil)
	if err != nil {
		return g.translateError(err, "failed to detach payment method")
	}
	return nil
}

func (g *Gateway) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error {
	_, err := g.client.V1Customers.Update(ctx, customerID, &stripeapi.CustomerUpdateParams{
		InvoiceSettings: &stripeapi.CustomerUpdateInvoiceSettingsParams{
			DefaultPaymentMethod: stripeapi.String(methodID),
		},
	})
	if err != nil {
		return g.translateError(err, "failed to set default payment method")
	}
	return nil
}

func (g *Gateway) Refund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	createParams := &stripeapi.RefundCreateParams{
		PaymentIntent: stripeapi.String(params.GatewayPaymentID),
	}
	if params.Amount.GreaterThan(decimal.Zero) {
		createParams.Amount = stripeapi.Int64(toMinorUnits(params.Amount))
	}
	if params.Reason != "" {
		createParams.Reason = stripeapi.String(params.Reason)
	}

	refund, err := g.client.V1Refunds.Create(ctx, createParams)
	if err != nil {
		return nil, g.translateError(err, "refund failed")
	}

	return &gateway.RefundResult{
		RefundID: refund.ID,
		Status:   string(refund.Status),
	}, nil
}

func (g *Gateway) GetInvoice(ctx context.Context, invoiceID string) (*gateway.GatewayInvoice, error) {
	inv, err := g.client.V1Invoices.Retrieve(ctx, invoiceID, nil)
	if err != nil {
		return nil, g.translateError(err, "failed to retrieve invoice")
	}

	out := &gateway.GatewayInvoice{
		ID:          inv.ID,
		Amount:      fromMinorUnits(inv.AmountDue),
		AmountPaid:  fromMinorUnits(inv.AmountPaid),
		Currency:    string(inv.Currency),
		Status:      string(inv.Status),
		PeriodStart: time.Unix(inv.PeriodStart, 0).UTC(),
		PeriodEnd:   time.Unix(inv.PeriodEnd, 0).UTC(),
		HostedURL:   inv.HostedInvoiceURL,
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		out.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return out, nil
}

// VerifyWebhookSignature checks the HMAC over the raw payload against the
// configured webhook secret. Fails closed when unconfigured.
func (g *Gateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return gateway.VerifyHMACSignature(payload, signature, g.cfg.WebhookSecret)
}

// translateError maps a Stripe API error onto the domain taxonomy. Raw
// gateway messages are logged in full but never surfaced to callers.
func (g *Gateway) translateError(err error, hint string) error {
	if stripeErr, ok := err.(*stripeapi.Error); ok {
		g.logger.Errorw("stripe api error",
			"code", stripeErr.Code,
			"type", stripeErr.Type,
			"message", stripeErr.Msg,
		)

		switch {
		case stripeErr.Code == stripeapi.ErrorCodeCardDeclined,
			stripeErr.Code == stripeapi.ErrorCodeExpiredCard,
			stripeErr.Code == stripeapi.ErrorCodeIncorrectCVC:
			return ierr.NewError("card declined").
				WithHint("The card was declined").
				WithReportableDetails(map[string]any{
					"decline_code": string(stripeErr.DeclineCode),
				}).
				Mark(ierr.ErrCardDeclined)
		case stripeErr.HTTPStatusCode == 404:
			return ierr.NewError("gateway resource not found").
				WithHint("The requested gateway resource does not exist").
				Mark(ierr.ErrNotFound)
		case stripeErr.Code == stripeapi.ErrorCodeRateLimit:
			return ierr.NewError("rate limited by gateway").
				WithHint("Too many requests, retry later").
				Mark(ierr.ErrRateLimited)
		case stripeErr.Type == stripeapi.ErrorType("authentication_error"):
			return ierr.NewError("gateway authentication failed").
				WithHint("Payment gateway is misconfigured").
				Mark(ierr.ErrConfiguration)
		}

		return ierr.NewError("gateway request failed").
			WithHint(hint).
			Mark(ierr.ErrGateway)
	}

	g.logger.Errorw("stripe request error", "error", err)
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrGateway)
}

func paymentStatusFromIntent(status stripeapi.PaymentIntentStatus) types.PaymentStatus {
	switch status {
	case stripeapi.PaymentIntentStatusSucceeded:
		return types.PaymentStatusSucceeded
	case stripeapi.PaymentIntentStatusProcessing:
		return types.PaymentStatusProcessing
	case stripeapi.PaymentIntentStatusCanceled:
		return types.PaymentStatusFailed
	default:
		return types.PaymentStatusPending
	}
}

func toGatewaySubscription(sub *stripeapi.Subscription) *gateway.GatewaySubscription {
	out := &gateway.GatewaySubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	return out
}

// toMinorUnits converts a decimal major-unit amount to gateway minor units.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}
