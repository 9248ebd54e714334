package proration

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMidPeriodUpgrade(t *testing.T) {
	calc := NewCalculator()

	// 30-day period, upgrade on day 10: 20 days remain.
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	quote, err := calc.Calculate(PlanChangeParams{
		CurrentPlanCode:    "basic",
		NewPlanCode:        "pro",
		CurrentPlanPrice:   decimal.NewFromInt(10),
		NewPlanPrice:       decimal.NewFromInt(20),
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 0, 30),
		ProrationDate:      start.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	assert.Equal(t, 30, quote.TotalPeriodDays)
	assert.Equal(t, 20, quote.DaysRemaining)
	assert.Equal(t, "6.67", quote.CreditAmount.StringFixed(2))
	assert.Equal(t, "13.33", quote.ProratedNewPlanCost.StringFixed(2))

	// The net is the difference of the rounded lines, so the quote sums.
	assert.Equal(t, "6.66", quote.NetAmount.StringFixed(2))
	assert.True(t, quote.IsUpgrade())
	assert.True(t, quote.RequiresPayment())
}

func TestCalculateDowngradeYieldsCredit(t *testing.T) {
	calc := NewCalculator()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	quote, err := calc.Calculate(PlanChangeParams{
		CurrentPlanCode:    "pro",
		NewPlanCode:        "basic",
		CurrentPlanPrice:   decimal.NewFromInt(20),
		NewPlanPrice:       decimal.NewFromInt(10),
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 0, 30),
		ProrationDate:      start.AddDate(0, 0, 15),
	})
	require.NoError(t, err)

	assert.Equal(t, "10.00", quote.CreditAmount.StringFixed(2))
	assert.Equal(t, "5.00", quote.ProratedNewPlanCost.StringFixed(2))
	assert.Equal(t, "-5.00", quote.NetAmount.StringFixed(2))
	assert.False(t, quote.IsUpgrade())
	assert.False(t, quote.RequiresPayment())
}

func TestCalculateBoundaries(t *testing.T) {
	calc := NewCalculator()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	base := PlanChangeParams{
		CurrentPlanCode:    "basic",
		NewPlanCode:        "pro",
		CurrentPlanPrice:   decimal.NewFromInt(10),
		NewPlanPrice:       decimal.NewFromInt(20),
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 0, 30),
	}

	t.Run("change on period start charges the full difference", func(t *testing.T) {
		params := base
		params.ProrationDate = start
		quote, err := calc.Calculate(params)
		require.NoError(t, err)
		assert.Equal(t, 30, quote.DaysRemaining)
		assert.Equal(t, "10.00", quote.CreditAmount.StringFixed(2))
		assert.Equal(t, "20.00", quote.ProratedNewPlanCost.StringFixed(2))
		assert.True(t, quote.UsedPercentage.IsZero())
	})

	t.Run("change after period end charges nothing", func(t *testing.T) {
		params := base
		params.ProrationDate = start.AddDate(0, 0, 45)
		quote, err := calc.Calculate(params)
		require.NoError(t, err)
		assert.Equal(t, 0, quote.DaysRemaining)
		assert.True(t, quote.CreditAmount.IsZero())
		assert.True(t, quote.NetAmount.IsZero())
	})

	t.Run("change before period start clamps to the full period", func(t *testing.T) {
		params := base
		params.ProrationDate = start.AddDate(0, 0, -5)
		quote, err := calc.Calculate(params)
		require.NoError(t, err)
		assert.Equal(t, 30, quote.DaysRemaining)
		assert.True(t, quote.UsedPercentage.IsZero())
	})
}

func TestCalculateRejectsBadParams(t *testing.T) {
	calc := NewCalculator()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		params PlanChangeParams
	}{
		{
			name: "zero proration date",
			params: PlanChangeParams{
				CurrentPlanPrice:   decimal.NewFromInt(10),
				NewPlanPrice:       decimal.NewFromInt(20),
				CurrentPeriodStart: start,
				CurrentPeriodEnd:   start.AddDate(0, 0, 30),
			},
		},
		{
			name: "missing period",
			params: PlanChangeParams{
				CurrentPlanPrice: decimal.NewFromInt(10),
				NewPlanPrice:     decimal.NewFromInt(20),
				ProrationDate:    start,
			},
		},
		{
			name: "inverted period",
			params: PlanChangeParams{
				CurrentPlanPrice:   decimal.NewFromInt(10),
				NewPlanPrice:       decimal.NewFromInt(20),
				CurrentPeriodStart: start.AddDate(0, 0, 30),
				CurrentPeriodEnd:   start,
				ProrationDate:      start,
			},
		},
		{
			name: "negative price",
			params: PlanChangeParams{
				CurrentPlanPrice:   decimal.NewFromInt(-10),
				NewPlanPrice:       decimal.NewFromInt(20),
				CurrentPeriodStart: start,
				CurrentPeriodEnd:   start.AddDate(0, 0, 30),
				ProrationDate:      start,
			},
		},
		{
			name: "zero-length period",
			params: PlanChangeParams{
				CurrentPlanPrice:   decimal.NewFromInt(10),
				NewPlanPrice:       decimal.NewFromInt(20),
				CurrentPeriodStart: start,
				CurrentPeriodEnd:   start,
				ProrationDate:      start,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(tt.params)
			assert.Error(t, err)
		})
	}
}
