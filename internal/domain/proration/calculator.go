package proration

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/stackbill/stackbill/internal/errors"
)

// Calculator produces plan-change quotes.
type Calculator interface {
	Calculate(params PlanChangeParams) (*PlanChangeQuote, error)
}

// NewCalculator returns the day-based calculator.
func NewCalculator() Calculator {
	return &dayBasedCalculator{}
}

// dayBasedCalculator implements day-granularity proration. Amounts are
// rounded to 2dp at the quote edge; the net is the difference of the
// rounded charge and credit so the quote's lines always sum.
type dayBasedCalculator struct{}

func (c *dayBasedCalculator) Calculate(params PlanChangeParams) (*PlanChangeQuote, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	totalDays := wholeDaysBetween(params.CurrentPeriodStart, params.CurrentPeriodEnd)
	if totalDays <= 0 {
		return nil, ierr.NewError("invalid billing period").
			WithHintf("total days is zero or negative (%v to %v)", params.CurrentPeriodStart, params.CurrentPeriodEnd).
			Mark(ierr.ErrValidation)
	}

	remainingDays := wholeDaysBetween(params.ProrationDate, params.CurrentPeriodEnd)
	if remainingDays < 0 {
		remainingDays = 0 // Change requested after period end
	}
	if remainingDays > totalDays {
		remainingDays = totalDays
	}

	decimalTotal := decimal.NewFromInt(int64(totalDays))
	decimalRemaining := decimal.NewFromInt(int64(remainingDays))

	remainingCoefficient := decimalRemaining.Div(decimalTotal)

	usedPercentage := decimalTotal.Sub(decimalRemaining).Div(decimalTotal)
	if usedPercentage.IsNegative() {
		usedPercentage = decimal.Zero
	}
	if usedPercentage.GreaterThan(decimal.NewFromInt(1)) {
		usedPercentage = decimal.NewFromInt(1)
	}

	creditAmount := params.CurrentPlanPrice.Mul(remainingCoefficient).Round(2)
	proratedNewPlanCost := params.NewPlanPrice.Mul(remainingCoefficient).Round(2)

	return &PlanChangeQuote{
		CurrentPlanCode:     params.CurrentPlanCode,
		NewPlanCode:         params.NewPlanCode,
		CurrentPlanPrice:    params.CurrentPlanPrice,
		NewPlanPrice:        params.NewPlanPrice,
		DaysRemaining:       remainingDays,
		TotalPeriodDays:     totalDays,
		UsedPercentage:      usedPercentage,
		CreditAmount:        creditAmount,
		ProratedNewPlanCost: proratedNewPlanCost,
		NetAmount:           proratedNewPlanCost.Sub(creditAmount),
	}, nil
}

// wholeDaysBetween counts complete 24h days from start to end.
func wholeDaysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

func validateParams(params PlanChangeParams) error {
	if params.ProrationDate.IsZero() {
		return ierr.NewError("proration date is required").
			WithHint("Proration date is required").
			Mark(ierr.ErrValidation)
	}
	if params.CurrentPeriodStart.IsZero() || params.CurrentPeriodEnd.IsZero() {
		return ierr.NewError("billing period start and end dates are required").
			WithHint("Billing period start and end dates are required").
			Mark(ierr.ErrValidation)
	}
	if params.CurrentPeriodEnd.Before(params.CurrentPeriodStart) {
		return ierr.NewError("billing period end date cannot be before start date").
			WithHint("Billing period end date cannot be before start date").
			Mark(ierr.ErrValidation)
	}
	if params.CurrentPlanPrice.IsNegative() || params.NewPlanPrice.IsNegative() {
		return ierr.NewError("plan prices cannot be negative").
			WithHint("Plan prices cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}
