package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/testutil"
	"github.com/stackbill/stackbill/internal/types"
)

type DunningServiceSuite struct {
	testutil.BaseServiceTestSuite
	service DunningService
	mock    *testutil.MockGateway
	btcpay  *testutil.MockGateway
	params  ServiceParams
}

func TestDunningService(t *testing.T) {
	suite.Run(t, new(DunningServiceSuite))
}

func (s *DunningServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.mock = testutil.NewMockGateway(types.PaymentGatewayStripe, true)
	s.btcpay = testutil.NewMockGateway(types.PaymentGatewayBTCPay, false)
	s.params = newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry(s.mock, s.btcpay))

	invoices := NewInvoiceService(s.params)
	subscriptions := NewSubscriptionService(s.params, invoices)
	s.service = NewDunningService(s.params, invoices, subscriptions)
}

func (s *DunningServiceSuite) seedSubscription(id string, status types.SubscriptionStatus, mutate func(*subscription.Subscription)) *subscription.Subscription {
	now := s.GetNow()
	sub := &subscription.Subscription{
		ID:                 id,
		PlanCode:           "PRO-PLAN",
		PlanPrice:          decimal.NewFromInt(10),
		Currency:           "USD",
		Gateway:            types.PaymentGatewayStripe,
		SubscriptionStatus: status,
		BillingCycle:       types.BillingCycleMonthly,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now.AddDate(0, 0, -1),
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

func (s *DunningServiceSuite) seedInvoice(id, subscriptionID string, attempts int, dueDaysAgo int) *invoice.Invoice {
	now := s.GetNow()
	inv := &invoice.Invoice{
		ID:             id,
		InvoiceNumber:  "INV-TEST-" + id,
		SubscriptionID: subscriptionID,
		Gateway:        types.PaymentGatewayStripe,
		InvoiceStatus:  types.InvoiceStatusPending,
		Currency:       "USD",
		Subtotal:       decimal.NewFromInt(10),
		Total:          decimal.NewFromInt(10),
		AmountPaid:     decimal.Zero,
		IssueDate:      now.AddDate(0, 0, -dueDaysAgo),
		DueDate:        now.AddDate(0, 0, -dueDaysAgo),
		ChargeAttempts: attempts,
		BaseModel: types.BaseModel{
			WorkspaceID: types.DefaultWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	s.NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), inv))
	return inv
}

func (s *DunningServiceSuite) seedDefaultMethod() {
	now := s.GetNow()
	method := &payment.PaymentMethod{
		ID:                     "pm_default",
		Gateway:                types.PaymentGatewayStripe,
		GatewayPaymentMethodID: "pm_gw_default",
		MethodType:             types.PaymentMethodTypeCard,
		Last4:                  "4242",
		IsDefault:              true,
		BaseModel: types.BaseModel{
			WorkspaceID: types.DefaultWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	s.NoError(s.GetStores().PaymentMethodRepo.Upsert(s.GetContext(), method))
}

func (s *DunningServiceSuite) TestUnknownStageRejected() {
	_, err := s.service.RunStage(s.GetContext(), "escalate", false)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *DunningServiceSuite) TestRetryRecoversInvoice() {
	periodEnd := s.GetNow().AddDate(0, 0, -1)
	s.seedSubscription("sub_ret_1", types.SubscriptionStatusPastDue, nil)
	s.seedInvoice("inv_ret_1", "sub_ret_1", 0, 2)
	s.seedDefaultMethod()

	summary, err := s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(1, summary.Examined)
	s.Equal(1, summary.Affected)
	s.Equal(0, summary.Failed)
	s.Equal([]string{"inv_ret_1"}, summary.AffectedIDs)

	s.Len(s.mock.MethodCharges, 1)
	s.Equal("pm_gw_default", s.mock.MethodCharges[0].PaymentMethodID)
	s.NotEmpty(s.mock.MethodCharges[0].IdempotencyKey)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), "inv_ret_1")
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.AmountPaid.Equal(decimal.NewFromInt(10)))

	// Recovery renews the subscription from the old period end.
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_ret_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.True(sub.CurrentPeriodStart.Equal(periodEnd))
}

func (s *DunningServiceSuite) TestRetryDefinitiveDeclineConsumesAttempt() {
	s.seedSubscription("sub_dec_1", types.SubscriptionStatusActive, nil)
	s.seedInvoice("inv_dec_1", "sub_dec_1", 0, 2)
	s.seedDefaultMethod()
	s.mock.ChargeMethodFunc = func(ctx context.Context, params gateway.MethodChargeParams) (*gateway.ChargeResult, error) {
		return nil, ierr.NewError("card declined").
			WithHint("The card was declined").
			Mark(ierr.ErrCardDeclined)
	}

	summary, err := s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(1, summary.Affected)
	s.Equal(0, summary.Failed)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), "inv_dec_1")
	s.NoError(err)
	s.Equal(types.InvoiceStatusOverdue, inv.InvoiceStatus)
	s.Equal(1, inv.ChargeAttempts)
	s.NotNil(inv.LastAttemptAt)

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_dec_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, sub.SubscriptionStatus)
}

func (s *DunningServiceSuite) TestRetryAmbiguousOutcomeKeepsAttempt() {
	s.seedSubscription("sub_amb_1", types.SubscriptionStatusActive, nil)
	s.seedInvoice("inv_amb_1", "sub_amb_1", 0, 2)
	s.seedDefaultMethod()
	s.mock.ChargeMethodFunc = func(ctx context.Context, params gateway.MethodChargeParams) (*gateway.ChargeResult, error) {
		return nil, ierr.NewError("gateway timeout").
			WithHint("The gateway did not respond").
			Mark(ierr.ErrGateway)
	}

	summary, err := s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(0, summary.Affected)
	s.Equal(1, summary.Failed)

	// The attempt counter stays untouched so the idempotent retry can
	// settle the ambiguity.
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), "inv_amb_1")
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	s.Equal(0, inv.ChargeAttempts)
	s.Nil(inv.LastAttemptAt)
}

func (s *DunningServiceSuite) TestRetryWithoutDefaultMethodCountsAttempt() {
	s.seedSubscription("sub_nom_1", types.SubscriptionStatusActive, nil)
	s.seedInvoice("inv_nom_1", "sub_nom_1", 0, 2)

	summary, err := s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), "inv_nom_1")
	s.NoError(err)
	s.Equal(1, inv.ChargeAttempts)
	s.Equal(types.InvoiceStatusOverdue, inv.InvoiceStatus)
	s.Empty(s.mock.MethodCharges)
}

func (s *DunningServiceSuite) TestRetrySkipsOnSessionOnlyGateways() {
	inv := s.seedInvoice("inv_btc_1", "", 0, 2)
	inv.Gateway = types.PaymentGatewayBTCPay
	s.NoError(s.GetStores().InvoiceRepo.Update(s.GetContext(), inv))

	summary, err := s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(1, summary.Examined)
	s.Equal(0, summary.Affected)
	s.Empty(summary.AffectedIDs)
}

func (s *DunningServiceSuite) TestRetryRespectsSchedule() {
	s.seedInvoice("inv_slot_1", "", 0, 1)
	s.seedDefaultMethod()
	s.mock.ChargeMethodFunc = func(ctx context.Context, params gateway.MethodChargeParams) (*gateway.ChargeResult, error) {
		return nil, ierr.NewError("declined").WithHint("Declined").Mark(ierr.ErrCardDeclined)
	}

	// Due yesterday, first slot opens one day after the due date: the
	// attempt runs and is consumed by the decline.
	summary, err := s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), "inv_slot_1")
	s.NoError(err)
	s.Equal(1, inv.ChargeAttempts)

	// The second slot is three days after the due date and has not come
	// yet, so an immediate sweep attempts nothing.
	summary, err = s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(0, summary.Affected)
	s.Len(s.mock.MethodCharges, 1)
}

func (s *DunningServiceSuite) TestPauseMovesExhaustedPastDue() {
	s.seedSubscription("sub_pau_1", types.SubscriptionStatusPastDue, nil)
	s.seedInvoice("inv_pau_1", "sub_pau_1", 3, 12)

	summary, err := s.service.RunStage(s.GetContext(), DunningStagePause, false)
	s.NoError(err)
	s.Equal(1, summary.Affected)
	s.Equal([]string{"sub_pau_1"}, summary.AffectedIDs)

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_pau_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPaused, sub.SubscriptionStatus)
	s.NotNil(sub.PausedAt)
	s.Equal(1, sub.PauseCycles)
	s.Nil(sub.SuspendedAt)
}

func (s *DunningServiceSuite) TestPauseOverLimitSuspendsImmediately() {
	s.seedSubscription("sub_lim_1", types.SubscriptionStatusPastDue, func(sub *subscription.Subscription) {
		sub.PauseCycles = s.GetConfig().Dunning.MaxPauseCycles
	})
	s.seedInvoice("inv_lim_1", "sub_lim_1", 3, 12)

	summary, err := s.service.RunStage(s.GetContext(), DunningStagePause, false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_lim_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPaused, sub.SubscriptionStatus)
	s.NotNil(sub.SuspendedAt)
}

func (s *DunningServiceSuite) TestPauseIgnoresNonPastDue() {
	s.seedSubscription("sub_act_1", types.SubscriptionStatusActive, nil)
	s.seedInvoice("inv_act_1", "sub_act_1", 3, 12)

	summary, err := s.service.RunStage(s.GetContext(), DunningStagePause, false)
	s.NoError(err)
	s.Equal(1, summary.Examined)
	s.Equal(0, summary.Affected)
}

func (s *DunningServiceSuite) TestSuspendAfterGraceWindow() {
	stale := s.GetNow().AddDate(0, 0, -(s.GetConfig().Dunning.SuspendAfterDays + 1))
	fresh := s.GetNow().AddDate(0, 0, -1)
	s.seedSubscription("sub_sus_1", types.SubscriptionStatusPaused, func(sub *subscription.Subscription) {
		sub.PausedAt = &stale
	})
	s.seedSubscription("sub_sus_2", types.SubscriptionStatusPaused, func(sub *subscription.Subscription) {
		sub.PausedAt = &fresh
	})

	summary, err := s.service.RunStage(s.GetContext(), DunningStageSuspend, false)
	s.NoError(err)
	s.Equal(1, summary.Examined)
	s.Equal(1, summary.Affected)
	s.Equal([]string{"sub_sus_1"}, summary.AffectedIDs)

	suspended, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_sus_1")
	s.NoError(err)
	s.NotNil(suspended.SuspendedAt)

	untouched, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_sus_2")
	s.NoError(err)
	s.Nil(untouched.SuspendedAt)
}

func (s *DunningServiceSuite) TestCancelAfterSuspendWindow() {
	suspendedAt := s.GetNow().AddDate(0, 0, -(s.GetConfig().Dunning.CancelAfterDays - s.GetConfig().Dunning.SuspendAfterDays + 1))
	pausedAt := suspendedAt
	s.seedSubscription("sub_can_1", types.SubscriptionStatusPaused, func(sub *subscription.Subscription) {
		sub.PausedAt = &pausedAt
		sub.SuspendedAt = &suspendedAt
		sub.GatewaySubscriptionID = "sub_gw_can_1"
	})
	s.seedInvoice("inv_can_1", "sub_can_1", 3, 20)

	summary, err := s.service.RunStage(s.GetContext(), DunningStageCancel, false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_can_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)
	s.NotNil(sub.CancelledAt)
	s.NotNil(sub.EndedAt)
	s.Equal([]string{"sub_gw_can_1"}, s.mock.CancelledSubs)

	// Open invoices are written off, not left collecting.
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), "inv_can_1")
	s.NoError(err)
	s.Equal(types.InvoiceStatusVoid, inv.InvoiceStatus)
}

func (s *DunningServiceSuite) TestExpireFinalizesLapsedCancellations() {
	cancelledAt := s.GetNow().AddDate(0, 0, -3)
	s.seedSubscription("sub_exp_1", types.SubscriptionStatusCancelled, func(sub *subscription.Subscription) {
		sub.CancelledAt = &cancelledAt
	})

	summary, err := s.service.RunStage(s.GetContext(), DunningStageExpire, false)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), "sub_exp_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusExpired, sub.SubscriptionStatus)
	s.NotNil(sub.EndedAt)
}

func (s *DunningServiceSuite) TestDryRunReportsWithoutMutating() {
	s.seedSubscription("sub_dry_1", types.SubscriptionStatusPastDue, nil)
	s.seedInvoice("inv_dry_1", "sub_dry_1", 0, 2)
	s.seedDefaultMethod()

	summary, err := s.service.RunStage(s.GetContext(), DunningStageRetry, true)
	s.NoError(err)
	s.Equal(1, summary.Affected)
	s.Equal([]string{"inv_dry_1"}, summary.AffectedIDs)
	s.True(summary.DryRun)
	s.Empty(s.mock.MethodCharges)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), "inv_dry_1")
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	s.Equal(0, inv.ChargeAttempts)

	// The live run touches exactly what the dry run reported.
	live, err := s.service.RunStage(s.GetContext(), DunningStageRetry, false)
	s.NoError(err)
	s.Equal(summary.AffectedIDs, live.AffectedIDs)
}

func (s *DunningServiceSuite) TestRunAllCoversEveryStage() {
	summaries, err := s.service.RunAll(s.GetContext(), true)
	s.NoError(err)
	s.Len(summaries, 5)
	stages := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		stages = append(stages, summary.Stage)
	}
	s.Equal([]string{DunningStageRetry, DunningStagePause, DunningStageSuspend, DunningStageCancel, DunningStageExpire}, stages)
}
