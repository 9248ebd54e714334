package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/types"
)

type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// PlanCode is the identifier for the plan in our system
	PlanCode string `db:"plan_code" json:"plan_code"`

	// PlanPrice is the per-period price of the current plan
	PlanPrice decimal.Decimal `db:"plan_price" json:"plan_price"`

	// Currency is the currency of the subscription in uppercase 3 letter ISO codes
	Currency string `db:"currency" json:"currency"`

	// Gateway is the payment gateway backing this subscription
	Gateway types.PaymentGateway `db:"gateway" json:"gateway"`

	// GatewaySubscriptionID is the subscription identifier at the gateway.
	// Empty for gateways without native recurring billing (BTCPay), where the
	// subscription is emulated locally.
	GatewaySubscriptionID string `db:"gateway_subscription_id" json:"gateway_subscription_id"`

	// GatewayCustomerID is the customer identifier at the gateway
	GatewayCustomerID string `db:"gateway_customer_id" json:"gateway_customer_id"`

	// GatewayPriceID is the price/plan identifier at the gateway
	GatewayPriceID string `db:"gateway_price_id" json:"gateway_price_id"`

	// SubscriptionStatus is the billing state of the subscription
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// BillingCycle is the recurrence unit of the subscription
	BillingCycle types.BillingCycle `db:"billing_cycle" json:"billing_cycle"`

	// CurrentPeriodStart is the start of the period the subscription has been
	// invoiced for
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`

	// CurrentPeriodEnd is the end of the period the subscription has been
	// invoiced for. At the end of this period a new invoice is due.
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`

	// CancelAtPeriodEnd marks the subscription to end at the current period
	// boundary instead of immediately
	CancelAtPeriodEnd bool `db:"cancel_at_period_end" json:"cancel_at_period_end"`

	// CancelledAt is when cancellation was requested
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at"`

	// EndedAt is when access was actually revoked
	EndedAt *time.Time `db:"ended_at" json:"ended_at"`

	// TrialEndsAt is the end of the trial period, if any
	TrialEndsAt *time.Time `db:"trial_ends_at" json:"trial_ends_at"`

	// PausedAt is when dunning paused the subscription
	PausedAt *time.Time `db:"paused_at" json:"paused_at"`

	// SuspendedAt is when dunning restricted entitlements
	SuspendedAt *time.Time `db:"suspended_at" json:"suspended_at"`

	// PauseCycles counts dunning pauses within the rolling window
	PauseCycles int `db:"pause_cycles" json:"pause_cycles"`

	// ScheduledPlanCode is a plan change deferred to the period boundary
	ScheduledPlanCode string `db:"scheduled_plan_code" json:"scheduled_plan_code"`

	// ScheduledPlanPrice is the price of the deferred plan change
	ScheduledPlanPrice decimal.Decimal `db:"scheduled_plan_price" json:"scheduled_plan_price"`

	// Version is the optimistic concurrency token. Conditional updates keyed
	// on it keep a webhook and a dunning sweep from producing a lost update.
	Version int `db:"version" json:"version"`

	types.BaseModel
}

// IsInTrial reports whether the subscription is still trialing at t.
func (s *Subscription) IsInTrial(t time.Time) bool {
	return s.TrialEndsAt != nil && t.Before(*s.TrialEndsAt)
}

// CanResume reports whether a cancelled subscription can be moved back to
// active: the paid period must not have elapsed yet.
func (s *Subscription) CanResume(t time.Time) bool {
	if s.SubscriptionStatus != types.SubscriptionStatusCancelled {
		return false
	}
	return t.Before(s.CurrentPeriodEnd)
}

// PeriodElapsed reports whether the paid period has lapsed at t.
func (s *Subscription) PeriodElapsed(t time.Time) bool {
	return !s.CurrentPeriodEnd.After(t)
}
