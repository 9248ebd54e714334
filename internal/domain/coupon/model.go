package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/types"
)

type Coupon struct {
	// ID is the unique identifier for the coupon
	ID string `db:"id" json:"id"`

	// Code is the case-insensitive redemption code
	Code string `db:"code" json:"code"`

	// CouponType is percent or fixed
	CouponType types.CouponType `db:"coupon_type" json:"coupon_type"`

	// Value is the percentage (0-100) or the fixed amount
	Value decimal.Decimal `db:"value" json:"value"`

	// Currency applies to fixed coupons only
	Currency string `db:"currency" json:"currency"`

	// MinOrderTotal is the minimum order subtotal for the coupon to apply
	MinOrderTotal decimal.Decimal `db:"min_order_total" json:"min_order_total"`

	// MaxRedemptions caps total uses; zero means unlimited
	MaxRedemptions int `db:"max_redemptions" json:"max_redemptions"`

	// Redemptions counts uses so far
	Redemptions int `db:"redemptions" json:"redemptions"`

	// StartsAt/ExpiresAt bound the validity window; nil means unbounded
	StartsAt  *time.Time `db:"starts_at" json:"starts_at"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at"`

	// AppliesTo restricts the coupon to specific base SKUs or bundle
	// hashes; empty means any order.
	AppliesTo []string `db:"-" json:"applies_to"`

	types.BaseModel
}

// ValidationResult is the structured outcome of validating a coupon against
// an order. A bad code is an expected input, so it is never an error.
type ValidationResult struct {
	Valid    bool                      `json:"valid"`
	Reason   types.CouponInvalidReason `json:"reason,omitempty"`
	Coupon   *Coupon                   `json:"coupon,omitempty"`
	Discount decimal.Decimal           `json:"discount"`
}

// DiscountFor computes the discount the coupon grants on the given subtotal.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.CouponType {
	case types.CouponTypePercent:
		discount = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
	default:
		discount = c.Value
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount.Round(2)
}
