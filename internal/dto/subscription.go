package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/proration"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	ierr "github.com/stackbill/stackbill/internal/errors"
)

// CancelSubscriptionRequest controls when a cancellation takes effect.
type CancelSubscriptionRequest struct {
	// Immediate revokes access now; the default ends at the period boundary.
	Immediate bool   `json:"immediate"`
	Reason    string `json:"reason"`
}

// ChangePlanRequest asks for a plan change quote or execution.
type ChangePlanRequest struct {
	NewPlanCode  string          `json:"new_plan_code" binding:"required"`
	NewPlanPrice decimal.Decimal `json:"new_plan_price" binding:"required"`

	// NewGatewayPriceID is the gateway-side price to move the subscription
	// to. Required for gateways with native recurring billing.
	NewGatewayPriceID string `json:"new_gateway_price_id"`

	// AtPeriodEnd defers the change to the period boundary with no
	// proration instead of applying it immediately.
	AtPeriodEnd bool `json:"at_period_end"`
}

func (r *ChangePlanRequest) Validate() error {
	if r.NewPlanPrice.IsNegative() {
		return ierr.NewError("negative plan price").
			WithHint("Plan price cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionResponse is the API shape of a subscription.
type SubscriptionResponse struct {
	*subscription.Subscription
}

// PlanChangeQuoteResponse wraps a proration quote.
type PlanChangeQuoteResponse struct {
	*proration.PlanChangeQuote
	SubscriptionID string    `json:"subscription_id"`
	QuotedAt       time.Time `json:"quoted_at"`
}

// ListSubscriptionsResponse is a paginated subscription listing.
type ListSubscriptionsResponse struct {
	Items []*subscription.Subscription `json:"items"`
	Total int                          `json:"total"`
}

// SweepSummary reports what a background sweep did. Dry runs fill the
// counters without mutating anything.
type SweepSummary struct {
	Stage     string    `json:"stage"`
	DryRun    bool      `json:"dry_run"`
	Examined  int       `json:"examined"`
	Affected  int       `json:"affected"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`

	// AffectedIDs lists the records the sweep acted on (or would act on,
	// for dry runs).
	AffectedIDs []string `json:"affected_ids,omitempty"`
}

// NewSweepSummary starts a summary for the given stage.
func NewSweepSummary(stage string, dryRun bool) *SweepSummary {
	return &SweepSummary{
		Stage:     stage,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
}
