package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/proration"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/idempotency"
	"github.com/stackbill/stackbill/internal/types"
)

// SubscriptionChangeService quotes and executes plan changes. Quoting is
// pure; executing an immediate change collects the prorated difference
// before the new plan takes effect.
type SubscriptionChangeService interface {
	// Quote prices the change without touching anything.
	Quote(ctx context.Context, subscriptionID string, req *dto.ChangePlanRequest) (*dto.PlanChangeQuoteResponse, error)

	// Execute applies the change: immediately with proration, or deferred
	// to the period boundary with none.
	Execute(ctx context.Context, subscriptionID string, req *dto.ChangePlanRequest) (*subscription.Subscription, error)
}

type subscriptionChangeService struct {
	ServiceParams
}

func NewSubscriptionChangeService(params ServiceParams) SubscriptionChangeService {
	return &subscriptionChangeService{ServiceParams: params}
}

func (s *subscriptionChangeService) Quote(ctx context.Context, subscriptionID string, req *dto.ChangePlanRequest) (*dto.PlanChangeQuoteResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.validateChangeable(sub, req); err != nil {
		return nil, err
	}

	quote, err := s.ProrationCalc.Calculate(proration.PlanChangeParams{
		CurrentPlanCode:    sub.PlanCode,
		NewPlanCode:        req.NewPlanCode,
		CurrentPlanPrice:   sub.PlanPrice,
		NewPlanPrice:       req.NewPlanPrice,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		ProrationDate:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return &dto.PlanChangeQuoteResponse{
		PlanChangeQuote: quote,
		SubscriptionID:  sub.ID,
		QuotedAt:        time.Now().UTC(),
	}, nil
}

func (s *subscriptionChangeService) Execute(ctx context.Context, subscriptionID string, req *dto.ChangePlanRequest) (*subscription.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.validateChangeable(sub, req); err != nil {
		return nil, err
	}

	if req.AtPeriodEnd {
		return s.schedule(ctx, sub, req)
	}
	return s.executeImmediate(ctx, sub, req)
}

func (s *subscriptionChangeService) schedule(ctx context.Context, sub *subscription.Subscription, req *dto.ChangePlanRequest) (*subscription.Subscription, error) {
	sub.ScheduledPlanCode = req.NewPlanCode
	sub.ScheduledPlanPrice = req.NewPlanPrice
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("plan change scheduled",
		"subscription_id", sub.ID,
		"from", sub.PlanCode,
		"to", req.NewPlanCode,
		"effective", sub.CurrentPeriodEnd,
	)
	return sub, nil
}

func (s *subscriptionChangeService) executeImmediate(ctx context.Context, sub *subscription.Subscription, req *dto.ChangePlanRequest) (*subscription.Subscription, error) {
	quote, err := s.ProrationCalc.Calculate(proration.PlanChangeParams{
		CurrentPlanCode:    sub.PlanCode,
		NewPlanCode:        req.NewPlanCode,
		CurrentPlanPrice:   sub.PlanPrice,
		NewPlanPrice:       req.NewPlanPrice,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		ProrationDate:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	gw, err := s.Gateways.Get(sub.Gateway)
	if err != nil {
		return nil, err
	}

	// Collect the prorated difference before anything changes. No refunds:
	// a negative net is forfeited on an immediate change, which is why
	// downgrades normally go through the scheduled path.
	if quote.RequiresPayment() {
		if err := s.collectNetAmount(ctx, gw, sub, req.NewPlanCode, quote.NetAmount); err != nil {
			return nil, err
		}
	}

	if sub.GatewaySubscriptionID != "" && req.NewGatewayPriceID != "" {
		if _, err := gw.UpdateSubscription(ctx, sub.GatewaySubscriptionID, gateway.SubscriptionParams{
			CustomerID: sub.GatewayCustomerID,
			PriceID:    req.NewGatewayPriceID,
		}); err != nil {
			return nil, err
		}
		sub.GatewayPriceID = req.NewGatewayPriceID
	}

	oldPlan := sub.PlanCode
	sub.PlanCode = req.NewPlanCode
	sub.PlanPrice = req.NewPlanPrice
	sub.ScheduledPlanCode = ""
	sub.ScheduledPlanPrice = decimal.Zero

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.Entitlements.RevokePackage(ctx, sub.WorkspaceID, oldPlan); err != nil {
		s.Logger.Errorw("failed to revoke old plan entitlements", "subscription_id", sub.ID, "error", err)
	}
	if err := s.Entitlements.GrantPackage(ctx, sub.WorkspaceID, sub.PlanCode); err != nil {
		s.Logger.Errorw("failed to grant new plan entitlements", "subscription_id", sub.ID, "error", err)
	}
	s.Entitlements.InvalidateCache(ctx, sub.WorkspaceID)

	s.Logger.Infow("plan changed",
		"subscription_id", sub.ID,
		"from", oldPlan,
		"to", sub.PlanCode,
		"net_amount", quote.NetAmount,
	)
	return sub, nil
}

func (s *subscriptionChangeService) collectNetAmount(ctx context.Context, gw gateway.Gateway, sub *subscription.Subscription, newPlanCode string, net decimal.Decimal) error {
	if !gw.SupportsOffSessionCharge() {
		return ierr.NewError("gateway cannot charge for upgrade").
			WithHint("This payment method cannot be charged automatically; schedule the change at period end instead").
			Mark(ierr.ErrInvalidOperation)
	}

	method, err := s.PaymentMethodRepo.GetDefault(ctx, sub.WorkspaceID, sub.Gateway)
	if err != nil {
		if ierr.IsNotFound(err) {
			return ierr.NewError("no default payment method").
				WithHint("Add a payment method before upgrading").
				Mark(ierr.ErrInvalidOperation)
		}
		return err
	}

	key := s.IdempGen.GenerateKey(idempotency.ScopePayment, map[string]interface{}{
		"subscription_id": sub.ID,
		"plan_code":       newPlanCode,
		"period_end":      sub.CurrentPeriodEnd.Unix(),
		"kind":            "plan_change",
	})

	result, err := gw.ChargePaymentMethod(ctx, gateway.MethodChargeParams{
		Amount:          net,
		Currency:        sub.Currency,
		CustomerID:      sub.GatewayCustomerID,
		PaymentMethodID: method.GatewayPaymentMethodID,
		IdempotencyKey:  key,
		Metadata: map[string]string{
			"subscription_id": sub.ID,
			"kind":            "plan_change",
		},
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	p := &payment.Payment{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		Gateway:          sub.Gateway,
		GatewayPaymentID: result.GatewayPaymentID,
		PaymentStatus:    result.Status,
		Amount:           net,
		Currency:         sub.Currency,
		GatewayResponse:  result.Raw,
		BaseModel: types.BaseModel{
			WorkspaceID: sub.WorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if result.Status == types.PaymentStatusSucceeded {
		p.PaidAt = &now
	}
	return s.PaymentRepo.Create(ctx, p)
}

func (s *subscriptionChangeService) validateChangeable(sub *subscription.Subscription, req *dto.ChangePlanRequest) error {
	if sub.SubscriptionStatus.IsTerminal() {
		return ierr.NewError("subscription terminal").
			WithHint("Cancelled or expired subscriptions cannot change plans").
			Mark(ierr.ErrInvalidOperation)
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusPaused {
		return ierr.NewError("subscription paused").
			WithHint("Settle the outstanding balance before changing plans").
			Mark(ierr.ErrInvalidOperation)
	}
	if req.NewPlanCode == sub.PlanCode {
		return ierr.NewError("same plan").
			WithHint("The subscription is already on this plan").
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}
