package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/domain/coupon"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/sku"
	"github.com/stackbill/stackbill/internal/testutil"
	"github.com/stackbill/stackbill/internal/types"
)

type CouponServiceSuite struct {
	testutil.BaseServiceTestSuite
	service CouponService
}

func TestCouponService(t *testing.T) {
	suite.Run(t, new(CouponServiceSuite))
}

func (s *CouponServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	mock := testutil.NewMockGateway(types.PaymentGatewayStripe, true)
	s.service = NewCouponService(newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry(mock)))
}

func (s *CouponServiceSuite) seedCoupon(code string, mutate func(*coupon.Coupon)) *coupon.Coupon {
	now := s.GetNow()
	c := &coupon.Coupon{
		ID:         "coup_" + code,
		Code:       code,
		CouponType: types.CouponTypePercent,
		Value:      decimal.NewFromInt(10),
		BaseModel: types.BaseModel{
			WorkspaceID: types.DefaultWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if mutate != nil {
		mutate(c)
	}
	s.NoError(s.GetStores().CouponRepo.Create(s.GetContext(), c))
	return c
}

func (s *CouponServiceSuite) TestValidatePercentDiscount() {
	s.seedCoupon("SAVE10", nil)

	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "save10", decimal.NewFromInt(200), "LAPTOP")
	s.True(result.Valid)
	s.True(result.Discount.Equal(decimal.NewFromInt(20)), "discount %s", result.Discount)
}

func (s *CouponServiceSuite) TestValidateFixedDiscountCappedAtSubtotal() {
	s.seedCoupon("FLAT50", func(c *coupon.Coupon) {
		c.CouponType = types.CouponTypeFixed
		c.Value = decimal.NewFromInt(50)
		c.Currency = "USD"
	})

	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "FLAT50", decimal.NewFromInt(30), "MOUSE")
	s.True(result.Valid)
	s.True(result.Discount.Equal(decimal.NewFromInt(30)), "discount never exceeds the subtotal")
}

func (s *CouponServiceSuite) TestValidateUnknownCode() {
	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "NOPE", decimal.NewFromInt(100), "LAPTOP")
	s.False(result.Valid)
	s.Equal(types.CouponInvalidNotFound, result.Reason)
	s.True(result.Discount.IsZero())
}

func (s *CouponServiceSuite) TestValidateExpired() {
	past := s.GetNow().AddDate(0, 0, -1)
	s.seedCoupon("OLD10", func(c *coupon.Coupon) { c.ExpiresAt = &past })

	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "OLD10", decimal.NewFromInt(100), "LAPTOP")
	s.False(result.Valid)
	s.Equal(types.CouponInvalidExpired, result.Reason)
}

func (s *CouponServiceSuite) TestValidateNotYetStarted() {
	future := time.Now().UTC().AddDate(0, 0, 1)
	s.seedCoupon("SOON10", func(c *coupon.Coupon) { c.StartsAt = &future })

	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "SOON10", decimal.NewFromInt(100), "LAPTOP")
	s.False(result.Valid)
	s.Equal(types.CouponInvalidNotStarted, result.Reason)
}

func (s *CouponServiceSuite) TestValidateUsageCap() {
	s.seedCoupon("CAP10", func(c *coupon.Coupon) {
		c.MaxRedemptions = 2
		c.Redemptions = 2
	})

	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "CAP10", decimal.NewFromInt(100), "LAPTOP")
	s.False(result.Valid)
	s.Equal(types.CouponInvalidUsageExceeded, result.Reason)
}

func (s *CouponServiceSuite) TestValidateMinimumOrderTotal() {
	s.seedCoupon("BIG10", func(c *coupon.Coupon) { c.MinOrderTotal = decimal.NewFromInt(100) })

	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "BIG10", decimal.NewFromInt(99), "LAPTOP")
	s.False(result.Valid)
	s.Equal(types.CouponInvalidMinOrder, result.Reason)

	result = s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "BIG10", decimal.NewFromInt(100), "LAPTOP")
	s.True(result.Valid)
}

func (s *CouponServiceSuite) TestValidateSKURestriction() {
	s.seedCoupon("LAP10", func(c *coupon.Coupon) { c.AppliesTo = []string{"laptop15"} })

	// Matches the base SKU even through variant attributes.
	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "LAP10", decimal.NewFromInt(100), "laptop15-ram~16gb, mouse")
	s.True(result.Valid)

	result = s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "LAP10", decimal.NewFromInt(100), "mouse, keyboard")
	s.False(result.Valid)
	s.Equal(types.CouponInvalidNotApplicable, result.Reason)
}

func (s *CouponServiceSuite) TestValidateBundleHashRestriction() {
	hash := sku.HashBundle([]string{"LAPTOP", "MOUSE"})
	s.seedCoupon("BUN10", func(c *coupon.Coupon) { c.AppliesTo = []string{hash} })

	result := s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "BUN10", decimal.NewFromInt(100), "mouse|laptop")
	s.True(result.Valid, "bundle hash matches regardless of member order")

	result = s.service.Validate(s.GetContext(), types.DefaultWorkspaceID, "BUN10", decimal.NewFromInt(100), "laptop|keyboard")
	s.False(result.Valid)
}

func (s *CouponServiceSuite) TestCreateNormalizesCode() {
	c := &coupon.Coupon{
		Code:       "  welcome5 ",
		CouponType: types.CouponTypeFixed,
		Value:      decimal.NewFromInt(5),
		Currency:   "USD",
		BaseModel:  types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive},
	}
	s.NoError(s.service.Create(s.GetContext(), c))
	s.Equal("WELCOME5", c.Code)
	s.NotEmpty(c.ID)
}

func (s *CouponServiceSuite) TestCreateRejectsPercentOverHundred() {
	err := s.service.Create(s.GetContext(), &coupon.Coupon{
		Code:       "TOOMUCH",
		CouponType: types.CouponTypePercent,
		Value:      decimal.NewFromInt(150),
		BaseModel:  types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive},
	})
	s.True(ierr.IsValidation(err))
}

func (s *CouponServiceSuite) TestRedeemEnforcesCap() {
	c := s.seedCoupon("ONCE", func(c *coupon.Coupon) { c.MaxRedemptions = 1 })

	s.NoError(s.service.Redeem(s.GetContext(), c.ID))
	err := s.service.Redeem(s.GetContext(), c.ID)
	s.True(ierr.IsInvalidOperation(err))
}
