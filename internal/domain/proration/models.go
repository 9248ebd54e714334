package proration

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanChangeParams are the inputs for a plan-change quote. Pure values:
// the calculator never touches storage or the gateway.
type PlanChangeParams struct {
	CurrentPlanCode  string
	NewPlanCode      string
	CurrentPlanPrice decimal.Decimal
	NewPlanPrice     decimal.Decimal

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	// ProrationDate is the moment the change takes effect, normally now.
	ProrationDate time.Time
}

// PlanChangeQuote is the prorated cost/credit breakdown for a plan change.
// Transient value object with no lifecycle of its own.
type PlanChangeQuote struct {
	CurrentPlanCode  string          `json:"current_plan_code"`
	NewPlanCode      string          `json:"new_plan_code"`
	CurrentPlanPrice decimal.Decimal `json:"current_plan_price"`
	NewPlanPrice     decimal.Decimal `json:"new_plan_price"`

	DaysRemaining   int `json:"days_remaining"`
	TotalPeriodDays int `json:"total_period_days"`

	// UsedPercentage is the consumed fraction of the period, in [0,1].
	UsedPercentage decimal.Decimal `json:"used_percentage"`

	// CreditAmount is the unused value of the current plan.
	CreditAmount decimal.Decimal `json:"credit_amount"`

	// ProratedNewPlanCost is the new plan's cost for the remaining period.
	ProratedNewPlanCost decimal.Decimal `json:"prorated_new_plan_cost"`

	// NetAmount is ProratedNewPlanCost - CreditAmount; positive means the
	// customer owes, negative means a credit.
	NetAmount decimal.Decimal `json:"net_amount"`
}

// IsUpgrade reports whether the new plan is more expensive than the current.
func (q *PlanChangeQuote) IsUpgrade() bool {
	return q.NewPlanPrice.GreaterThan(q.CurrentPlanPrice)
}

// RequiresPayment reports whether the change leaves the customer owing.
func (q *PlanChangeQuote) RequiresPayment() bool {
	return q.NetAmount.GreaterThan(decimal.Zero)
}
