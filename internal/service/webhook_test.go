package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/testutil"
	"github.com/stackbill/stackbill/internal/types"
)

type WebhookServiceSuite struct {
	testutil.BaseServiceTestSuite
	service       WebhookService
	subscriptions SubscriptionService
	mock          *testutil.MockGateway
	params        ServiceParams
}

func TestWebhookService(t *testing.T) {
	suite.Run(t, new(WebhookServiceSuite))
}

func (s *WebhookServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.mock = testutil.NewMockGateway(types.PaymentGatewayStripe, true)
	s.params = newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry(s.mock))

	invoices := NewInvoiceService(s.params)
	s.subscriptions = NewSubscriptionService(s.params, invoices)
	coupons := NewCouponService(s.params)
	referrals := NewReferralService(s.params)
	s.service = NewWebhookService(s.params, invoices, s.subscriptions, coupons, referrals)
}

func (s *WebhookServiceSuite) seedOrder(id string, status types.OrderStatus) *order.Order {
	now := s.GetNow()
	o := &order.Order{
		ID:               id,
		OrderNumber:      "ORD-" + id,
		OrderStatus:      status,
		Gateway:          types.PaymentGatewayStripe,
		GatewaySessionID: "cs_" + id,
		Currency:         "USD",
		Subtotal:         decimal.NewFromInt(20),
		Discount:         decimal.Zero,
		Tax:              decimal.Zero,
		Total:            decimal.NewFromInt(20),
		BaseCurrencyTotal: decimal.NewFromInt(20),
		BaseModel: types.BaseModel{
			WorkspaceID: types.DefaultWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	items := []*order.OrderItem{{
		ID:           "oi_" + id,
		OrderID:      id,
		SKU:          "PRO-PLAN",
		Name:         "Pro Plan",
		UnitPrice:    decimal.NewFromInt(20),
		Quantity:     1,
		BillingCycle: types.BillingCycleMonthly,
		BaseModel: types.BaseModel{
			WorkspaceID: types.DefaultWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}}
	s.NoError(s.GetStores().OrderRepo.CreateWithItems(s.GetContext(), o, items))
	return o
}

func (s *WebhookServiceSuite) seedSubscription(id, gatewaySubID string, periodEnd time.Time) *subscription.Subscription {
	now := s.GetNow()
	sub := &subscription.Subscription{
		ID:                    id,
		PlanCode:              "PRO-PLAN",
		PlanPrice:             decimal.NewFromInt(10),
		Currency:              "USD",
		Gateway:               types.PaymentGatewayStripe,
		GatewaySubscriptionID: gatewaySubID,
		SubscriptionStatus:    types.SubscriptionStatusActive,
		BillingCycle:          types.BillingCycleMonthly,
		CurrentPeriodStart:    periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:      periodEnd,
		Version:               1,
		BaseModel: types.BaseModel{
			WorkspaceID: types.DefaultWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *WebhookServiceSuite) process(event gateway.CanonicalEvent) error {
	s.mock.ParseFunc = func([]byte) gateway.CanonicalEvent { return event }
	return s.service.Process(s.GetContext(), types.PaymentGatewayStripe, []byte(`{}`), "sig")
}

func (s *WebhookServiceSuite) TestInvalidSignatureRejected() {
	s.mock.VerifyFunc = func([]byte, string) bool { return false }

	err := s.service.Process(s.GetContext(), types.PaymentGatewayStripe, []byte(`{}`), "bad")
	s.Error(err)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *WebhookServiceSuite) TestUnknownEventAcknowledged() {
	err := s.process(gateway.CanonicalEvent{
		Type: types.WebhookUnknown,
		ID:   "evt_unknown",
	})
	s.NoError(err)

	record, err := s.GetStores().WebhookEventRepo.GetByEventID(s.GetContext(), types.PaymentGatewayStripe, "evt_unknown")
	s.NoError(err)
	s.Equal(types.WebhookEventStatusSkipped, record.EventStatus)
	s.NotNil(record.ProcessedAt)
}

func (s *WebhookServiceSuite) TestUnparseablePayloadAcknowledged() {
	err := s.process(gateway.CanonicalEvent{Type: types.WebhookUnknown})
	s.NoError(err)
}

func (s *WebhookServiceSuite) TestCheckoutFulfilsOrder() {
	o := s.seedOrder("ord_chk_1", types.OrderStatusPending)

	err := s.process(gateway.CanonicalEvent{
		Type: types.WebhookCheckoutCompleted,
		ID:   "evt_chk_1",
		Metadata: map[string]string{
			"order_id":       o.ID,
			"session_id":     o.GatewaySessionID,
			"payment_intent": "pi_chk_1",
			"customer":       "cus_chk_1",
			"subscription":   "sub_gw_chk_1",
		},
	})
	s.NoError(err)

	stored, err := s.GetStores().OrderRepo.Get(s.GetContext(), o.ID)
	s.NoError(err)
	s.Equal(types.OrderStatusPaid, stored.OrderStatus)

	p, err := s.GetStores().PaymentRepo.GetByGatewayPaymentID(s.GetContext(), types.PaymentGatewayStripe, "pi_chk_1")
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, p.PaymentStatus)
	s.True(p.Amount.Equal(decimal.NewFromInt(20)))

	subs, err := s.GetStores().SubscriptionRepo.List(s.GetContext(), &types.SubscriptionFilter{WorkspaceID: types.DefaultWorkspaceID})
	s.NoError(err)
	s.Len(subs, 1)
	s.Equal("PRO-PLAN", subs[0].PlanCode)
	s.Equal(types.SubscriptionStatusActive, subs[0].SubscriptionStatus)
	s.Equal("cus_chk_1", subs[0].GatewayCustomerID)
	s.Equal("sub_gw_chk_1", subs[0].GatewaySubscriptionID)

	record, err := s.GetStores().WebhookEventRepo.GetByEventID(s.GetContext(), types.PaymentGatewayStripe, "evt_chk_1")
	s.NoError(err)
	s.Equal(types.WebhookEventStatusProcessed, record.EventStatus)
	s.Equal(o.ID, record.OrderID)
}

func (s *WebhookServiceSuite) TestCheckoutReplayIsIdempotent() {
	o := s.seedOrder("ord_rep_1", types.OrderStatusPending)
	event := gateway.CanonicalEvent{
		Type: types.WebhookCheckoutCompleted,
		ID:   "evt_rep_1",
		Metadata: map[string]string{
			"order_id":       o.ID,
			"payment_intent": "pi_rep_1",
		},
	}

	s.NoError(s.process(event))
	// Same delivery again: the dedup row short-circuits before dispatch.
	s.NoError(s.process(event))

	payments, err := s.GetStores().PaymentRepo.ListByOrder(s.GetContext(), o.ID)
	s.NoError(err)
	s.Len(payments, 1)

	subs, err := s.GetStores().SubscriptionRepo.List(s.GetContext(), &types.SubscriptionFilter{WorkspaceID: types.DefaultWorkspaceID})
	s.NoError(err)
	s.Len(subs, 1)

	// A distinct event for the already-paid order is acknowledged without
	// re-running fulfilment.
	event.ID = "evt_rep_2"
	s.NoError(s.process(event))

	payments, err = s.GetStores().PaymentRepo.ListByOrder(s.GetContext(), o.ID)
	s.NoError(err)
	s.Len(payments, 1)

	subs, err = s.GetStores().SubscriptionRepo.List(s.GetContext(), &types.SubscriptionFilter{WorkspaceID: types.DefaultWorkspaceID})
	s.NoError(err)
	s.Len(subs, 1)
}

func (s *WebhookServiceSuite) TestRenewalInvoicePaidExtendsPeriod() {
	periodEnd := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	sub := s.seedSubscription("sub_ren_1", "sub_gw_ren_1", periodEnd)

	err := s.process(gateway.CanonicalEvent{
		Type: types.WebhookInvoicePaid,
		ID:   "evt_ren_1",
		Metadata: map[string]string{
			"subscription":   sub.GatewaySubscriptionID,
			"invoice_id":     "in_ren_1",
			"billing_reason": "subscription_cycle",
			"amount_paid":    "1000",
		},
	})
	s.NoError(err)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		WorkspaceID:    types.DefaultWorkspaceID,
		SubscriptionID: sub.ID,
	})
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)
	s.True(invoices[0].AmountPaid.Equal(decimal.NewFromInt(10)))

	// The renewal anchors on the previous period end, not on the
	// processing time.
	renewed, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, renewed.SubscriptionStatus)
	s.True(renewed.CurrentPeriodStart.Equal(periodEnd))
	s.True(renewed.CurrentPeriodEnd.Equal(periodEnd.AddDate(0, 1, 0)))
}

func (s *WebhookServiceSuite) TestSubscriptionCreateInvoiceSkipsRenewal() {
	periodEnd := time.Now().UTC().AddDate(0, 0, 20)
	sub := s.seedSubscription("sub_new_1", "sub_gw_new_1", periodEnd)

	err := s.process(gateway.CanonicalEvent{
		Type: types.WebhookInvoicePaid,
		ID:   "evt_new_1",
		Metadata: map[string]string{
			"subscription":   sub.GatewaySubscriptionID,
			"invoice_id":     "in_new_1",
			"billing_reason": "subscription_create",
		},
	})
	s.NoError(err)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		WorkspaceID:    types.DefaultWorkspaceID,
		SubscriptionID: sub.ID,
	})
	s.NoError(err)
	s.Empty(invoices)

	unchanged, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.True(unchanged.CurrentPeriodEnd.Equal(periodEnd))
}

func (s *WebhookServiceSuite) TestInvoiceFailedMarksPastDue() {
	sub := s.seedSubscription("sub_fail_1", "sub_gw_fail_1", time.Now().UTC().AddDate(0, 0, 5))

	err := s.process(gateway.CanonicalEvent{
		Type: types.WebhookInvoiceFailed,
		ID:   "evt_fail_1",
		Metadata: map[string]string{
			"subscription": sub.GatewaySubscriptionID,
		},
	})
	s.NoError(err)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)
}

func (s *WebhookServiceSuite) TestUnknownReferenceSkipped() {
	err := s.process(gateway.CanonicalEvent{
		Type: types.WebhookInvoicePaid,
		ID:   "evt_ghost_1",
		Metadata: map[string]string{
			"subscription": "sub_gw_missing",
		},
	})
	s.NoError(err)

	record, err := s.GetStores().WebhookEventRepo.GetByEventID(s.GetContext(), types.PaymentGatewayStripe, "evt_ghost_1")
	s.NoError(err)
	s.Equal(types.WebhookEventStatusSkipped, record.EventStatus)
}

func (s *WebhookServiceSuite) TestSubscriptionDeletedCancelsLocally() {
	sub := s.seedSubscription("sub_del_1", "sub_gw_del_1", time.Now().UTC().AddDate(0, 0, 10))

	err := s.process(gateway.CanonicalEvent{
		Type: types.WebhookSubscriptionDeleted,
		ID:   "evt_del_1",
		Metadata: map[string]string{
			"subscription": sub.GatewaySubscriptionID,
		},
	})
	s.NoError(err)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, stored.SubscriptionStatus)
	s.NotNil(stored.CancelledAt)
	s.NotNil(stored.EndedAt)
}
