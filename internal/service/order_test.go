package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/domain/coupon"
	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/testutil"
	"github.com/stackbill/stackbill/internal/types"
)

type OrderServiceSuite struct {
	testutil.BaseServiceTestSuite
	service OrderService
	mock    *testutil.MockGateway
	params  ServiceParams
}

func TestOrderService(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.mock = testutil.NewMockGateway(types.PaymentGatewayStripe, true)
	s.params = newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry(s.mock))
	coupons := NewCouponService(s.params)
	s.service = NewOrderService(s.params, coupons, NewCurrencyService(s.params))
}

func (s *OrderServiceSuite) checkoutRequest(mutate func(*dto.CreateOrderRequest)) *dto.CreateOrderRequest {
	req := &dto.CreateOrderRequest{
		Gateway:    types.PaymentGatewayStripe,
		Currency:   "USD",
		SuccessURL: "https://shop.example.com/success",
		CancelURL:  "https://shop.example.com/cancel",
		Items: []dto.OrderItemRequest{
			{SKU: "LAPTOP15", Name: "Laptop 15", UnitPrice: decimal.NewFromInt(100), Quantity: 1, BillingCycle: types.BillingCycleMonthly},
			{SKU: "MOUSE", Name: "Mouse", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		},
	}
	if mutate != nil {
		mutate(req)
	}
	return req
}

func (s *OrderServiceSuite) TestCreateCheckoutTotalsAndSession() {
	resp, err := s.service.CreateCheckout(s.GetContext(), s.checkoutRequest(nil))
	s.NoError(err)

	s.True(resp.Subtotal.Equal(decimal.NewFromInt(120)), "subtotal %s", resp.Subtotal)
	s.True(resp.Total.Equal(decimal.NewFromInt(120)))
	s.Equal(types.OrderStatusPending, resp.OrderStatus)
	s.NotEmpty(resp.OrderNumber)
	s.Equal("mock_session_"+resp.ID, resp.GatewaySessionID)
	s.Equal("https://checkout.example.com/"+resp.ID, resp.CheckoutURL)

	stored, err := s.service.Get(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(stored.Items, 2)
	s.Equal(2, stored.Items[1].Quantity)
}

func (s *OrderServiceSuite) TestCreateCheckoutMultipliesSKUQuantity() {
	req := s.checkoutRequest(func(r *dto.CreateOrderRequest) {
		r.Items = []dto.OrderItemRequest{
			{SKU: "server*3-disk~1tb", Name: "Server", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		}
	})

	resp, err := s.service.CreateCheckout(s.GetContext(), req)
	s.NoError(err)
	// Line quantity 2 times the *3 suffix inside the SKU.
	s.True(resp.Subtotal.Equal(decimal.NewFromInt(60)), "subtotal %s", resp.Subtotal)
}

func (s *OrderServiceSuite) TestCreateCheckoutAppliesCoupon() {
	now := s.GetNow()
	s.NoError(s.GetStores().CouponRepo.Create(s.GetContext(), &coupon.Coupon{
		ID:             "coup_ord_1",
		Code:           "SAVE10",
		CouponType:     types.CouponTypePercent,
		Value:          decimal.NewFromInt(10),
		MaxRedemptions: 1,
		BaseModel:      types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive, CreatedAt: now, UpdatedAt: now},
	}))

	resp, err := s.service.CreateCheckout(s.GetContext(), s.checkoutRequest(func(r *dto.CreateOrderRequest) {
		r.CouponCode = "save10"
	}))
	s.NoError(err)
	s.Equal("SAVE10", resp.CouponCode)
	s.True(resp.Discount.Equal(decimal.NewFromInt(12)))
	s.True(resp.Total.Equal(decimal.NewFromInt(108)))

	c, err := s.GetStores().CouponRepo.Get(s.GetContext(), "coup_ord_1")
	s.NoError(err)
	s.Equal(1, c.Redemptions)

	// The cap is spent, so the next checkout with the code is refused.
	_, err = s.service.CreateCheckout(s.GetContext(), s.checkoutRequest(func(r *dto.CreateOrderRequest) {
		r.CouponCode = "save10"
	}))
	s.True(ierr.IsValidation(err))
}

func (s *OrderServiceSuite) TestCreateCheckoutRejectsBadCoupon() {
	_, err := s.service.CreateCheckout(s.GetContext(), s.checkoutRequest(func(r *dto.CreateOrderRequest) {
		r.CouponCode = "BOGUS"
	}))
	s.True(ierr.IsValidation(err))

	orders, err := s.service.List(s.GetContext(), nil)
	s.NoError(err)
	s.Equal(0, orders.Total, "rejected checkout must not persist an order")
}

func (s *OrderServiceSuite) TestCreateCheckoutRejectsUnknownGateway() {
	_, err := s.service.CreateCheckout(s.GetContext(), s.checkoutRequest(func(r *dto.CreateOrderRequest) {
		r.Gateway = "paypal"
	}))
	s.True(ierr.IsValidation(err))
}

func (s *OrderServiceSuite) TestCleanupExpiredCancelsStalePending() {
	now := s.GetNow()
	seed := func(id string, status types.OrderStatus, age time.Duration) {
		created := now.Add(-age)
		o := &order.Order{
			ID:          id,
			OrderNumber: "ord-" + id,
			OrderStatus: status,
			Gateway:     types.PaymentGatewayStripe,
			Currency:    "USD",
			Total:       decimal.NewFromInt(10),
			BaseModel:   types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive, CreatedAt: created, UpdatedAt: created},
		}
		s.NoError(s.GetStores().OrderRepo.CreateWithItems(s.GetContext(), o, nil))
	}
	seed("ord_stale_1", types.OrderStatusPending, 48*time.Hour)
	seed("ord_fresh_1", types.OrderStatusPending, time.Hour)
	seed("ord_paid_1", types.OrderStatusPaid, 48*time.Hour)

	dry, err := s.service.CleanupExpired(s.GetContext(), 24*time.Hour, true)
	s.NoError(err)
	s.Equal([]string{"ord_stale_1"}, dry.AffectedIDs)

	stale, err := s.service.Get(s.GetContext(), "ord_stale_1")
	s.NoError(err)
	s.Equal(types.OrderStatusPending, stale.OrderStatus, "dry run must not mutate")

	live, err := s.service.CleanupExpired(s.GetContext(), 24*time.Hour, false)
	s.NoError(err)
	s.Equal(1, live.Affected)

	stale, err = s.service.Get(s.GetContext(), "ord_stale_1")
	s.NoError(err)
	s.Equal(types.OrderStatusCancelled, stale.OrderStatus)

	fresh, err := s.service.Get(s.GetContext(), "ord_fresh_1")
	s.NoError(err)
	s.Equal(types.OrderStatusPending, fresh.OrderStatus)
}
