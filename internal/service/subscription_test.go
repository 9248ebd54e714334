package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/testutil"
	"github.com/stackbill/stackbill/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SubscriptionService
	mock    *testutil.MockGateway
	params  ServiceParams
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.mock = testutil.NewMockGateway(types.PaymentGatewayStripe, true)
	s.params = newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry(s.mock))
	s.service = NewSubscriptionService(s.params, NewInvoiceService(s.params))
}

func (s *SubscriptionServiceSuite) seedSubscription(id string, status types.SubscriptionStatus, periodEnd time.Time, mutate func(*subscription.Subscription)) *subscription.Subscription {
	now := s.GetNow()
	sub := &subscription.Subscription{
		ID:                 id,
		PlanCode:           "PRO-PLAN",
		PlanPrice:          decimal.NewFromInt(10),
		Currency:           "USD",
		Gateway:            types.PaymentGatewayStripe,
		SubscriptionStatus: status,
		BillingCycle:       types.BillingCycleMonthly,
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   periodEnd,
		Version:            1,
		BaseModel: types.BaseModel{
			WorkspaceID: types.DefaultWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if mutate != nil {
		mutate(sub)
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *SubscriptionServiceSuite) TestProvisionFromOrderSkipsOneTimeItems() {
	now := s.GetNow()
	o := &order.Order{
		ID:       "ord_prov_1",
		Gateway:  types.PaymentGatewayStripe,
		Currency: "USD",
		Items: []*order.OrderItem{
			{ID: "oi_1", SKU: "laptop15-ram~16gb", UnitPrice: decimal.NewFromInt(20), Quantity: 1, BillingCycle: types.BillingCycleMonthly},
			{ID: "oi_2", SKU: "MOUSE", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
		},
		BaseModel: types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive, CreatedAt: now, UpdatedAt: now},
	}

	subs, err := s.service.ProvisionFromOrder(s.GetContext(), o)
	s.NoError(err)
	s.Len(subs, 1)
	// The plan code is the option-stripped base SKU.
	s.Equal("LAPTOP15", subs[0].PlanCode)
	s.Equal(types.SubscriptionStatusActive, subs[0].SubscriptionStatus)
	s.True(subs[0].CurrentPeriodEnd.After(subs[0].CurrentPeriodStart))
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEnd() {
	periodEnd := s.GetNow().AddDate(0, 0, 20)
	s.seedSubscription("sub_cpe_1", types.SubscriptionStatusActive, periodEnd, func(sub *subscription.Subscription) {
		sub.GatewaySubscriptionID = "sub_gw_cpe_1"
	})

	out, err := s.service.Cancel(s.GetContext(), "sub_cpe_1", &dto.CancelSubscriptionRequest{Reason: "too expensive"})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, out.SubscriptionStatus)
	s.True(out.CancelAtPeriodEnd)
	s.NotNil(out.CancelledAt)
	s.Nil(out.EndedAt)
	s.Equal([]string{"sub_gw_cpe_1"}, s.mock.CancelledSubs)
}

func (s *SubscriptionServiceSuite) TestCancelImmediate() {
	s.seedSubscription("sub_imm_1", types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, 20), nil)

	out, err := s.service.Cancel(s.GetContext(), "sub_imm_1", &dto.CancelSubscriptionRequest{Immediate: true})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, out.SubscriptionStatus)
	s.NotNil(out.CancelledAt)
	s.NotNil(out.EndedAt)
}

func (s *SubscriptionServiceSuite) TestCancelTerminalRejected() {
	s.seedSubscription("sub_term_1", types.SubscriptionStatusExpired, s.GetNow().AddDate(0, 0, -40), nil)

	_, err := s.service.Cancel(s.GetContext(), "sub_term_1", &dto.CancelSubscriptionRequest{Immediate: true})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestResumeUndoesPendingCancel() {
	cancelledAt := s.GetNow()
	s.seedSubscription("sub_undo_1", types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, 20), func(sub *subscription.Subscription) {
		sub.CancelAtPeriodEnd = true
		sub.CancelledAt = &cancelledAt
	})

	out, err := s.service.Resume(s.GetContext(), "sub_undo_1")
	s.NoError(err)
	s.False(out.CancelAtPeriodEnd)
	s.Nil(out.CancelledAt)
	s.Equal(types.SubscriptionStatusActive, out.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestResumeCancelledWithinPaidPeriod() {
	cancelledAt := s.GetNow()
	s.seedSubscription("sub_res_1", types.SubscriptionStatusCancelled, s.GetNow().AddDate(0, 0, 10), func(sub *subscription.Subscription) {
		sub.CancelledAt = &cancelledAt
		sub.EndedAt = &cancelledAt
	})

	out, err := s.service.Resume(s.GetContext(), "sub_res_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, out.SubscriptionStatus)
	s.Nil(out.CancelledAt)
	s.Nil(out.EndedAt)
}

func (s *SubscriptionServiceSuite) TestResumeAfterPeriodElapsedRejected() {
	cancelledAt := s.GetNow().AddDate(0, 0, -10)
	s.seedSubscription("sub_late_1", types.SubscriptionStatusCancelled, s.GetNow().AddDate(0, 0, -2), func(sub *subscription.Subscription) {
		sub.CancelledAt = &cancelledAt
	})

	_, err := s.service.Resume(s.GetContext(), "sub_late_1")
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestApplyRenewalAnchorsOnPreviousPeriodEnd() {
	periodEnd := s.GetNow().AddDate(0, 0, -3).Truncate(time.Second)
	pausedAt := s.GetNow().AddDate(0, 0, -2)
	sub := s.seedSubscription("sub_anc_1", types.SubscriptionStatusPastDue, periodEnd, func(sub *subscription.Subscription) {
		sub.PausedAt = &pausedAt
	})

	s.NoError(s.service.ApplyRenewal(s.GetContext(), sub))

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.True(stored.CurrentPeriodStart.Equal(periodEnd))
	s.True(stored.CurrentPeriodEnd.Equal(periodEnd.AddDate(0, 1, 0)))
	s.Nil(stored.PausedAt)
	s.Nil(stored.SuspendedAt)
}

func (s *SubscriptionServiceSuite) TestApplyRenewalLandsScheduledPlanChange() {
	periodEnd := s.GetNow().Add(-time.Hour)
	sub := s.seedSubscription("sub_sch_1", types.SubscriptionStatusActive, periodEnd, func(sub *subscription.Subscription) {
		sub.ScheduledPlanCode = "BASIC-PLAN"
		sub.ScheduledPlanPrice = decimal.NewFromInt(5)
	})

	s.NoError(s.service.ApplyRenewal(s.GetContext(), sub))

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal("BASIC-PLAN", stored.PlanCode)
	s.True(stored.PlanPrice.Equal(decimal.NewFromInt(5)))
	s.Empty(stored.ScheduledPlanCode)
	s.True(stored.ScheduledPlanPrice.IsZero())
}

func (s *SubscriptionServiceSuite) TestRenewalSweepIssuesInvoices() {
	s.seedSubscription("sub_due_1", types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, -1), nil)
	s.seedSubscription("sub_due_2", types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, 10), nil)

	summary, err := s.service.RenewalSweep(s.GetContext(), false)
	s.NoError(err)
	s.Equal(1, summary.Examined)
	s.Equal(1, summary.Affected)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		WorkspaceID:    types.DefaultWorkspaceID,
		SubscriptionID: "sub_due_1",
	})
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPending, invoices[0].InvoiceStatus)
	s.True(invoices[0].Total.Equal(decimal.NewFromInt(10)))
	s.NotEmpty(invoices[0].InvoiceNumber)

	// Re-running reuses the open invoice instead of double-billing.
	summary, err = s.service.RenewalSweep(s.GetContext(), false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	invoices, err = s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		WorkspaceID:    types.DefaultWorkspaceID,
		SubscriptionID: "sub_due_1",
	})
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *SubscriptionServiceSuite) TestRenewalSweepEndsPendingCancellations() {
	cancelledAt := s.GetNow().AddDate(0, 0, -5)
	s.seedSubscription("sub_end_1", types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, -1), func(sub *subscription.Subscription) {
		sub.CancelAtPeriodEnd = true
		sub.CancelledAt = &cancelledAt
	})

	summary, err := s.service.RenewalSweep(s.GetContext(), false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_end_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, stored.SubscriptionStatus)
	s.NotNil(stored.EndedAt)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		WorkspaceID:    types.DefaultWorkspaceID,
		SubscriptionID: "sub_end_1",
	})
	s.NoError(err)
	s.Empty(invoices)
}

func (s *SubscriptionServiceSuite) TestSyncCancelsWhenGoneAtGateway() {
	s.seedSubscription("sub_sync_1", types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, 10), func(sub *subscription.Subscription) {
		sub.GatewaySubscriptionID = "sub_gw_gone"
	})
	s.mock.GetSubFunc = func(ctx context.Context, subscriptionID string) (*gateway.GatewaySubscription, error) {
		return nil, ierr.NewError("no such subscription").
			WithHint("The gateway has no such subscription").
			Mark(ierr.ErrNotFound)
	}

	summary, err := s.service.SyncWithGateway(s.GetContext(), "sub_sync_1", false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_sync_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, stored.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestSyncAppliesRemotePeriod() {
	remoteEnd := s.GetNow().AddDate(0, 1, 5).Truncate(time.Second)
	s.seedSubscription("sub_sync_2", types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, 10), func(sub *subscription.Subscription) {
		sub.GatewaySubscriptionID = "sub_gw_drift"
	})
	s.mock.GetSubFunc = func(ctx context.Context, subscriptionID string) (*gateway.GatewaySubscription, error) {
		return &gateway.GatewaySubscription{
			ID:                 subscriptionID,
			Status:             "past_due",
			CurrentPeriodStart: remoteEnd.AddDate(0, -1, 0),
			CurrentPeriodEnd:   remoteEnd,
			CancelAtPeriodEnd:  true,
		}, nil
	}

	summary, err := s.service.SyncWithGateway(s.GetContext(), "sub_sync_2", false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_sync_2")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, stored.SubscriptionStatus)
	s.True(stored.CurrentPeriodEnd.Equal(remoteEnd))
	s.True(stored.CancelAtPeriodEnd)
}
