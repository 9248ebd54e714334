package service

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/coupon"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/sku"
	"github.com/stackbill/stackbill/internal/types"
)

// CouponService validates and applies discount coupons at checkout.
type CouponService interface {
	// Validate checks a coupon code against an order. A bad, expired or
	// exhausted code is an expected input and comes back as an invalid
	// result, never an error.
	Validate(ctx context.Context, workspaceID string, code string, subtotal decimal.Decimal, skuString string) *coupon.ValidationResult

	Create(ctx context.Context, c *coupon.Coupon) error
	Get(ctx context.Context, id string) (*coupon.Coupon, error)

	// Redeem bumps the redemption counter. Must run inside the order's
	// transaction so the usage cap holds under concurrent checkouts.
	Redeem(ctx context.Context, couponID string) error
}

type couponService struct {
	ServiceParams
}

func NewCouponService(params ServiceParams) CouponService {
	return &couponService{ServiceParams: params}
}

func (s *couponService) Validate(ctx context.Context, workspaceID string, code string, subtotal decimal.Decimal, skuString string) *coupon.ValidationResult {
	invalid := func(reason types.CouponInvalidReason) *coupon.ValidationResult {
		return &coupon.ValidationResult{Valid: false, Reason: reason, Discount: decimal.Zero}
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return invalid(types.CouponInvalidNotFound)
	}

	c, err := s.CouponRepo.GetByCode(ctx, workspaceID, code)
	if err != nil {
		if !ierr.IsNotFound(err) {
			s.Logger.Errorw("coupon lookup failed", "code", code, "error", err)
		}
		return invalid(types.CouponInvalidNotFound)
	}

	if c.Status != types.StatusActive {
		return invalid(types.CouponInvalidInactive)
	}

	now := time.Now().UTC()
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return invalid(types.CouponInvalidNotStarted)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return invalid(types.CouponInvalidExpired)
	}
	if c.MaxRedemptions > 0 && c.Redemptions >= c.MaxRedemptions {
		return invalid(types.CouponInvalidUsageExceeded)
	}
	if c.MinOrderTotal.GreaterThan(decimal.Zero) && subtotal.LessThan(c.MinOrderTotal) {
		return invalid(types.CouponInvalidMinOrder)
	}
	if len(c.AppliesTo) > 0 && !couponApplies(c, skuString) {
		return invalid(types.CouponInvalidNotApplicable)
	}

	return &coupon.ValidationResult{
		Valid:    true,
		Coupon:   c,
		Discount: c.DiscountFor(subtotal),
	}
}

// couponApplies checks the order against the coupon's SKU restrictions:
// a match on any base SKU or on a bundle hash qualifies.
func couponApplies(c *coupon.Coupon, skuString string) bool {
	parsed := sku.Parse(skuString)

	targets := lo.Map(c.AppliesTo, func(t string, _ int) string {
		return strings.ToUpper(t)
	})

	for _, item := range parsed.AllItems() {
		if lo.Contains(targets, strings.ToUpper(item.SKU)) {
			return true
		}
	}
	for _, bundle := range parsed.Bundles {
		if lo.Contains(targets, strings.ToUpper(sku.HashBundle(bundle.BaseSKUs()))) {
			return true
		}
	}
	return false
}

func (s *couponService) Create(ctx context.Context, c *coupon.Coupon) error {
	if c.Code == "" {
		return ierr.NewError("coupon code is required").
			WithHint("Coupon code is required").
			Mark(ierr.ErrValidation)
	}
	if c.CouponType == types.CouponTypePercent && c.Value.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("percent coupon above 100").
			WithHint("Percentage discounts cannot exceed 100").
			Mark(ierr.ErrValidation)
	}

	if c.ID == "" {
		c.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COUPON)
	}
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return s.CouponRepo.Create(ctx, c)
}

func (s *couponService) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	return s.CouponRepo.Get(ctx, id)
}

func (s *couponService) Redeem(ctx context.Context, couponID string) error {
	return s.CouponRepo.IncrementRedemptions(ctx, couponID)
}
