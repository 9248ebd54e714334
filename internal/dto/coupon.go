package dto

import (
	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/coupon"
	"github.com/stackbill/stackbill/internal/types"
)

// ValidateCouponRequest checks a code against a prospective order.
type ValidateCouponRequest struct {
	Code     string          `json:"code" binding:"required"`
	Subtotal decimal.Decimal `json:"subtotal" binding:"required"`

	// SKU is the compound SKU string of the order, used for coupons
	// restricted to specific products or bundles.
	SKU string `json:"sku"`
}

// ValidateCouponResponse mirrors the structured validation result.
type ValidateCouponResponse struct {
	Valid    bool                      `json:"valid"`
	Reason   types.CouponInvalidReason `json:"reason,omitempty"`
	Discount decimal.Decimal           `json:"discount"`
}

func NewValidateCouponResponse(result *coupon.ValidationResult) *ValidateCouponResponse {
	return &ValidateCouponResponse{
		Valid:    result.Valid,
		Reason:   result.Reason,
		Discount: result.Discount,
	}
}

// CreateCouponRequest creates a coupon.
type CreateCouponRequest struct {
	Code           string           `json:"code" binding:"required"`
	CouponType     types.CouponType `json:"coupon_type" binding:"required"`
	Value          decimal.Decimal  `json:"value" binding:"required"`
	Currency       string           `json:"currency"`
	MinOrderTotal  decimal.Decimal  `json:"min_order_total"`
	MaxRedemptions int              `json:"max_redemptions"`
	AppliesTo      []string         `json:"applies_to"`
}

// CouponResponse is the API shape of a coupon.
type CouponResponse struct {
	*coupon.Coupon
}
