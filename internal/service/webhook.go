package service

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/webhookevent"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/types"
)

// WebhookService is the reconciliation engine for inbound gateway webhooks.
//
// Processing is at-most-once per (gateway, event_id): the event row's
// unique constraint arbitrates concurrent duplicate deliveries, and every
// handler is additionally idempotent so an event replayed after a partial
// failure converges instead of double-applying.
//
// All state changes for one event happen in a single transaction. The
// event row's status is written outside it, so a failed attempt is
// recorded even though its work rolled back.
type WebhookService interface {
	// Process verifies, records and dispatches one delivery. The returned
	// error's class drives the HTTP status: signature failures must come
	// back 401, handler failures 500 (so the gateway redelivers), and
	// everything else acknowledges with 200.
	Process(ctx context.Context, gatewayType types.PaymentGateway, payload []byte, signature string) error
}

type webhookService struct {
	ServiceParams
	invoices      InvoiceService
	subscriptions SubscriptionService
	coupons       CouponService
	referrals     ReferralService
}

func NewWebhookService(
	params ServiceParams,
	invoices InvoiceService,
	subscriptions SubscriptionService,
	coupons CouponService,
	referrals ReferralService,
) WebhookService {
	return &webhookService{
		ServiceParams: params,
		invoices:      invoices,
		subscriptions: subscriptions,
		coupons:       coupons,
		referrals:     referrals,
	}
}

func (s *webhookService) Process(ctx context.Context, gatewayType types.PaymentGateway, payload []byte, signature string) error {
	gw, err := s.Gateways.Get(gatewayType)
	if err != nil {
		return err
	}

	if !gw.VerifyWebhookSignature(payload, signature) {
		return ierr.NewError("invalid webhook signature").
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrPermissionDenied)
	}

	event := gw.ParseWebhookEvent(payload)
	if event.ID == "" {
		// Malformed but authenticated: acknowledge so the gateway stops
		// retrying something we can never parse.
		s.Logger.Warnw("unparseable webhook payload", "gateway", gatewayType)
		return nil
	}

	record := &webhookevent.WebhookEvent{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		Gateway:     gatewayType,
		EventID:     event.ID,
		EventType:   event.Type,
		Payload:     payload,
		EventStatus: types.WebhookEventStatusPending,
		ReceivedAt:  time.Now().UTC(),
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}

	if err := s.WebhookEventRepo.Insert(ctx, record); err != nil {
		if !ierr.IsAlreadyExists(err) {
			return err
		}
		// Lost the insert race or this is a redelivery. Only events whose
		// previous attempt failed get another run.
		existing, getErr := s.WebhookEventRepo.GetByEventID(ctx, gatewayType, event.ID)
		if getErr != nil {
			return getErr
		}
		if existing.EventStatus != types.WebhookEventStatusFailed {
			s.Logger.Debugw("duplicate webhook delivery skipped",
				"gateway", gatewayType,
				"event_id", event.ID,
				"status", existing.EventStatus,
			)
			return nil
		}
		record = existing
	}

	if event.Type == types.WebhookUnknown {
		record.EventStatus = types.WebhookEventStatusSkipped
		return s.finishEvent(ctx, record, nil)
	}

	var followUps []func(context.Context)
	dispatchErr := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		followUps, err = s.dispatch(ctx, event, record)
		return err
	})

	// References to records that are not ours (another environment, a
	// manually created gateway object) are acknowledged, not retried.
	if dispatchErr != nil && ierr.IsNotFound(dispatchErr) {
		s.Logger.Infow("webhook references unknown records, skipping",
			"gateway", gatewayType,
			"event_id", event.ID,
			"type", event.Type,
			"error", dispatchErr,
		)
		record.EventStatus = types.WebhookEventStatusSkipped
		return s.finishEvent(ctx, record, nil)
	}

	if dispatchErr == nil {
		record.EventStatus = types.WebhookEventStatusProcessed
		for _, fn := range followUps {
			fn(ctx)
		}
	} else {
		record.EventStatus = types.WebhookEventStatusFailed
		record.LastError = dispatchErr.Error()
	}
	return s.finishEvent(ctx, record, dispatchErr)
}

// finishEvent persists the event row's outcome outside the reconciliation
// transaction and propagates the dispatch error.
func (s *webhookService) finishEvent(ctx context.Context, record *webhookevent.WebhookEvent, dispatchErr error) error {
	record.Attempts++
	now := time.Now().UTC()
	if record.EventStatus == types.WebhookEventStatusProcessed || record.EventStatus == types.WebhookEventStatusSkipped {
		record.ProcessedAt = &now
	}
	if err := s.WebhookEventRepo.Update(ctx, record); err != nil {
		s.Logger.Errorw("failed to persist webhook event outcome",
			"event_id", record.EventID,
			"error", err,
		)
	}
	return dispatchErr
}

func (s *webhookService) dispatch(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	switch event.Type {
	case types.WebhookCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event, record)
	case types.WebhookInvoicePaid:
		return s.handleInvoicePaid(ctx, event, record)
	case types.WebhookInvoiceFailed:
		return s.handleInvoiceFailed(ctx, event, record)
	case types.WebhookInvoiceExpired:
		return s.handleInvoiceExpired(ctx, event, record)
	case types.WebhookInvoiceProcessing:
		return s.handleInvoiceProcessing(ctx, event, record)
	case types.WebhookInvoiceCreated:
		// Informational; the row itself is the record.
		return nil, nil
	case types.WebhookSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event, record)
	case types.WebhookSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event, record)
	case types.WebhookPaymentMethodAttached:
		return s.handlePaymentMethodAttached(ctx, event)
	case types.WebhookPaymentMethodDetached:
		return s.handlePaymentMethodDetached(ctx, event)
	case types.WebhookPaymentRefunded:
		return s.handlePaymentRefunded(ctx, event)
	}
	return nil, nil
}

// findOrder locates the order an event refers to: the application metadata
// order id when the checkout flow attached one, otherwise the gateway
// session/invoice id the checkout was opened under.
func (s *webhookService) findOrder(ctx context.Context, event gateway.CanonicalEvent, gatewayType types.PaymentGateway) (*order.Order, error) {
	if orderID := firstMeta(event, "order_id", "orderId"); orderID != "" {
		return s.OrderRepo.GetWithItems(ctx, orderID)
	}
	if sessionID := firstMeta(event, "session_id", "invoice_id"); sessionID != "" {
		o, err := s.OrderRepo.GetByGatewaySession(ctx, gatewayType, sessionID)
		if err != nil {
			return nil, err
		}
		return s.OrderRepo.GetWithItems(ctx, o.ID)
	}
	return nil, ierr.NewError("no order reference in event").
		WithHint("Event carries no order correlation key").
		Mark(ierr.ErrNotFound)
}

func (s *webhookService) handleCheckoutCompleted(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	o, err := s.findOrder(ctx, event, record.Gateway)
	if err != nil {
		return nil, err
	}
	record.OrderID = o.ID

	if o.IsPaid() {
		return nil, nil
	}

	return s.fulfillOrder(ctx, event, record, o)
}

// fulfillOrder marks the order paid, records the payment, provisions
// subscriptions for recurring items and books referral conversion. Runs
// inside the reconciliation transaction.
func (s *webhookService) fulfillOrder(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent, o *order.Order) ([]func(context.Context), error) {
	now := time.Now().UTC()

	o.OrderStatus = types.OrderStatusPaid
	if err := s.OrderRepo.Update(ctx, o); err != nil {
		return nil, err
	}

	gatewayPaymentID := firstMeta(event, "payment_intent", "invoice_id")
	if gatewayPaymentID == "" {
		gatewayPaymentID = event.ID
	}
	p := &payment.Payment{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		OrderID:          o.ID,
		Gateway:          o.Gateway,
		GatewayPaymentID: gatewayPaymentID,
		PaymentStatus:    types.PaymentStatusSucceeded,
		Amount:           o.Total,
		Currency:         o.Currency,
		PaidAt:           &now,
		GatewayResponse:  string(event.Raw),
		BaseModel: types.BaseModel{
			WorkspaceID: o.WorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if err := s.PaymentRepo.Create(ctx, p); err != nil && !ierr.IsAlreadyExists(err) {
		return nil, err
	}

	subs, err := s.subscriptions.ProvisionFromOrder(ctx, o)
	if err != nil {
		return nil, err
	}
	if len(subs) > 0 {
		record.SubscriptionID = subs[0].ID
	}

	// Tie the gateway customer to the new subscriptions so later
	// customer-scoped webhooks can find the workspace.
	if customerID := firstMeta(event, "customer"); customerID != "" {
		for _, sub := range subs {
			sub.GatewayCustomerID = customerID
			if gwSubID := firstMeta(event, "subscription"); gwSubID != "" {
				sub.GatewaySubscriptionID = gwSubID
			}
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
		}
	}

	if err := s.referrals.RecordConversion(ctx, o); err != nil {
		return nil, err
	}

	workspaceID := o.WorkspaceID
	planCodes := make([]string, 0, len(subs))
	for _, sub := range subs {
		planCodes = append(planCodes, sub.PlanCode)
	}

	followUps := []func(context.Context){
		func(ctx context.Context) {
			for _, planCode := range planCodes {
				if err := s.Entitlements.GrantPackage(ctx, workspaceID, planCode); err != nil {
					s.Logger.Errorw("entitlement grant failed after fulfilment",
						"workspace_id", workspaceID,
						"plan_code", planCode,
						"error", err,
					)
				}
			}
			s.Entitlements.InvalidateCache(ctx, workspaceID)
		},
	}

	s.Logger.Infow("order fulfilled",
		"order_id", o.ID,
		"order_number", o.OrderNumber,
		"subscriptions", len(subs),
	)
	return followUps, nil
}

func (s *webhookService) handleInvoicePaid(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	// A paid gateway invoice tied to a subscription is a renewal; one tied
	// to a checkout is a fulfilment (the BTCPay path, which has no
	// separate checkout event).
	if gwSubID := firstMeta(event, "subscription"); gwSubID != "" {
		return s.applySubscriptionPayment(ctx, event, record, gwSubID)
	}

	o, err := s.findOrder(ctx, event, record.Gateway)
	if err == nil {
		record.OrderID = o.ID
		if o.IsPaid() {
			return nil, nil
		}
		return s.fulfillOrder(ctx, event, record, o)
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	// Last resort: an off-session charge we initiated; the payment row
	// links back to the invoice.
	if paymentID := firstMeta(event, "payment_intent", "invoice_id"); paymentID != "" {
		p, pErr := s.PaymentRepo.GetByGatewayPaymentID(ctx, record.Gateway, paymentID)
		if pErr == nil && p.InvoiceID != "" {
			return s.settleLocalInvoice(ctx, event, record, p.InvoiceID)
		}
	}
	return nil, err
}

func (s *webhookService) applySubscriptionPayment(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent, gatewaySubscriptionID string) ([]func(context.Context), error) {
	sub, err := s.SubRepo.GetByGatewaySubscriptionID(ctx, record.Gateway, gatewaySubscriptionID)
	if err != nil {
		return nil, err
	}
	record.SubscriptionID = sub.ID

	// First invoice of a native subscription: the checkout fulfilment
	// already provisioned everything.
	if firstMeta(event, "billing_reason") == "subscription_create" {
		return nil, nil
	}

	inv, err := s.invoices.CreateRenewalInvoice(ctx, sub)
	if err != nil {
		return nil, err
	}
	if inv.IsSettled() {
		return nil, nil
	}

	now := time.Now().UTC()
	amount := inv.AmountDue()
	if cents := firstMeta(event, "amount_paid"); cents != "" {
		if parsed, perr := strconv.ParseInt(cents, 10, 64); perr == nil && parsed > 0 {
			amount = decimal.NewFromInt(parsed).Div(decimal.NewFromInt(100))
		}
	}

	p := &payment.Payment{
		Gateway:          record.Gateway,
		GatewayPaymentID: paymentCorrelationID(event),
		PaymentStatus:    types.PaymentStatusSucceeded,
		Amount:           amount,
		Currency:         inv.Currency,
		PaidAt:           &now,
		GatewayResponse:  string(event.Raw),
		BaseModel: types.BaseModel{
			WorkspaceID: inv.WorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if err := s.invoices.SettleWithPayment(ctx, inv, p); err != nil {
		return nil, err
	}
	if !inv.IsSettled() {
		// Partial payment: keep collecting, no renewal yet.
		return nil, nil
	}

	if err := s.subscriptions.ApplyRenewal(ctx, sub); err != nil {
		return nil, err
	}

	workspaceID := sub.WorkspaceID
	planCode := sub.PlanCode
	followUps := []func(context.Context){
		func(ctx context.Context) {
			if err := s.Entitlements.GrantPackage(ctx, workspaceID, planCode); err != nil {
				s.Logger.Errorw("entitlement grant failed after renewal",
					"workspace_id", workspaceID,
					"error", err,
				)
			}
			s.Entitlements.InvalidateCache(ctx, workspaceID)
		},
	}
	return followUps, nil
}

func (s *webhookService) settleLocalInvoice(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent, invoiceID string) ([]func(context.Context), error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.IsSettled() {
		return nil, nil
	}

	now := time.Now().UTC()
	p := &payment.Payment{
		Gateway:          record.Gateway,
		GatewayPaymentID: paymentCorrelationID(event),
		PaymentStatus:    types.PaymentStatusSucceeded,
		Amount:           inv.AmountDue(),
		Currency:         inv.Currency,
		PaidAt:           &now,
		GatewayResponse:  string(event.Raw),
		BaseModel: types.BaseModel{
			WorkspaceID: inv.WorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if err := s.invoices.SettleWithPayment(ctx, inv, p); err != nil {
		return nil, err
	}

	if inv.SubscriptionID == "" {
		return nil, nil
	}
	sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
	if err != nil {
		return nil, err
	}
	record.SubscriptionID = sub.ID
	if err := s.subscriptions.ApplyRenewal(ctx, sub); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *webhookService) handleInvoiceFailed(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	if gwSubID := firstMeta(event, "subscription"); gwSubID != "" {
		sub, err := s.SubRepo.GetByGatewaySubscriptionID(ctx, record.Gateway, gwSubID)
		if err != nil {
			return nil, err
		}
		record.SubscriptionID = sub.ID

		if sub.SubscriptionStatus == types.SubscriptionStatusActive || sub.SubscriptionStatus == types.SubscriptionStatusTrialing {
			sub.SubscriptionStatus = types.SubscriptionStatusPastDue
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
		}

		workspaceID := sub.WorkspaceID
		return []func(context.Context){
			func(ctx context.Context) {
				s.Notifications.PaymentFailed(ctx, workspaceID, "", 0)
			},
		}, nil
	}

	o, err := s.findOrder(ctx, event, record.Gateway)
	if err != nil {
		return nil, err
	}
	record.OrderID = o.ID
	if o.IsPaid() || o.OrderStatus == types.OrderStatusFailed {
		return nil, nil
	}
	o.OrderStatus = types.OrderStatusFailed
	return nil, s.OrderRepo.Update(ctx, o)
}

func (s *webhookService) handleInvoiceExpired(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	o, err := s.findOrder(ctx, event, record.Gateway)
	if err != nil {
		return nil, err
	}
	record.OrderID = o.ID
	if o.OrderStatus != types.OrderStatusPending && o.OrderStatus != types.OrderStatusProcessing {
		return nil, nil
	}
	o.OrderStatus = types.OrderStatusCancelled
	return nil, s.OrderRepo.Update(ctx, o)
}

func (s *webhookService) handleInvoiceProcessing(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	o, err := s.findOrder(ctx, event, record.Gateway)
	if err != nil {
		return nil, err
	}
	record.OrderID = o.ID
	if o.OrderStatus != types.OrderStatusPending {
		return nil, nil
	}
	o.OrderStatus = types.OrderStatusProcessing
	return nil, s.OrderRepo.Update(ctx, o)
}

func (s *webhookService) handleSubscriptionUpdated(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	sub, err := s.SubRepo.GetByGatewaySubscriptionID(ctx, record.Gateway, firstMeta(event, "subscription"))
	if err != nil {
		return nil, err
	}
	record.SubscriptionID = sub.ID

	changed := false
	if status := mapGatewayStatus(event.Status); status != "" && status != sub.SubscriptionStatus && !sub.SubscriptionStatus.IsTerminal() {
		sub.SubscriptionStatus = status
		changed = true
	}
	if capeStr := firstMeta(event, "cancel_at_period_end"); capeStr != "" {
		if cape, perr := strconv.ParseBool(capeStr); perr == nil && cape != sub.CancelAtPeriodEnd {
			sub.CancelAtPeriodEnd = cape
			changed = true
		}
	}
	if start, end := metaUnixTime(event, "period_start"), metaUnixTime(event, "period_end"); start != nil && end != nil {
		if !end.Equal(sub.CurrentPeriodEnd) {
			sub.CurrentPeriodStart = *start
			sub.CurrentPeriodEnd = *end
			changed = true
		}
	}

	if !changed {
		return nil, nil
	}
	return nil, s.SubRepo.Update(ctx, sub)
}

func (s *webhookService) handleSubscriptionDeleted(ctx context.Context, event gateway.CanonicalEvent, record *webhookevent.WebhookEvent) ([]func(context.Context), error) {
	sub, err := s.SubRepo.GetByGatewaySubscriptionID(ctx, record.Gateway, firstMeta(event, "subscription"))
	if err != nil {
		return nil, err
	}
	record.SubscriptionID = sub.ID

	if sub.SubscriptionStatus.IsTerminal() {
		return nil, nil
	}

	now := time.Now().UTC()
	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	if sub.CancelledAt == nil {
		sub.CancelledAt = &now
	}
	sub.EndedAt = &now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	workspaceID := sub.WorkspaceID
	planCode := sub.PlanCode
	subID := sub.ID
	return []func(context.Context){
		func(ctx context.Context) {
			if err := s.Entitlements.RevokePackage(ctx, workspaceID, planCode); err != nil {
				s.Logger.Errorw("entitlement revoke failed", "workspace_id", workspaceID, "error", err)
			}
			s.Entitlements.InvalidateCache(ctx, workspaceID)
			s.Notifications.SubscriptionCancelled(ctx, workspaceID, subID)
		},
	}, nil
}

func (s *webhookService) handlePaymentMethodAttached(ctx context.Context, event gateway.CanonicalEvent) ([]func(context.Context), error) {
	customerID := firstMeta(event, "customer")
	if customerID == "" {
		return nil, nil
	}
	sub, err := s.SubRepo.GetByGatewayCustomerID(ctx, types.PaymentGatewayStripe, customerID)
	if err != nil {
		return nil, err
	}

	methodType := types.PaymentMethodTypeCard
	expMonth, _ := strconv.Atoi(firstMeta(event, "exp_month"))
	expYear, _ := strconv.Atoi(firstMeta(event, "exp_year"))

	now := time.Now().UTC()
	method := &payment.PaymentMethod{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_METHOD),
		Gateway:                types.PaymentGatewayStripe,
		GatewayPaymentMethodID: firstMeta(event, "payment_method"),
		MethodType:             methodType,
		Last4:                  firstMeta(event, "last4"),
		ExpiryMonth:            expMonth,
		ExpiryYear:             expYear,
		BaseModel: types.BaseModel{
			WorkspaceID: sub.WorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	return nil, s.PaymentMethodRepo.Upsert(ctx, method)
}

func (s *webhookService) handlePaymentMethodDetached(ctx context.Context, event gateway.CanonicalEvent) ([]func(context.Context), error) {
	methodID := firstMeta(event, "payment_method")
	if methodID == "" {
		return nil, nil
	}
	err := s.PaymentMethodRepo.Deactivate(ctx, types.PaymentGatewayStripe, methodID)
	if ierr.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func (s *webhookService) handlePaymentRefunded(ctx context.Context, event gateway.CanonicalEvent) ([]func(context.Context), error) {
	paymentID := firstMeta(event, "payment_intent", "charge_id")
	if paymentID == "" {
		return nil, nil
	}

	p, err := s.PaymentRepo.GetByGatewayPaymentID(ctx, types.PaymentGatewayStripe, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus == types.PaymentStatusRefunded {
		return nil, nil
	}

	p.PaymentStatus = types.PaymentStatusRefunded
	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	if p.OrderID != "" {
		if err := s.referrals.ReverseCommissionForOrder(ctx, p.OrderID); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// firstMeta returns the first non-empty metadata value among the keys.
func firstMeta(event gateway.CanonicalEvent, keys ...string) string {
	for _, key := range keys {
		if v := event.Metadata[key]; v != "" {
			return v
		}
	}
	return ""
}

// paymentCorrelationID picks the most specific gateway identifier for a
// payment row, falling back to the event ID so replays still dedup.
func paymentCorrelationID(event gateway.CanonicalEvent) string {
	if id := firstMeta(event, "payment_intent", "invoice_id"); id != "" {
		return id
	}
	return event.ID
}

func metaUnixTime(event gateway.CanonicalEvent, key string) *time.Time {
	raw := firstMeta(event, key)
	if raw == "" {
		return nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds == 0 {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
