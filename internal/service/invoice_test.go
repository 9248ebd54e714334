package service

import (
	"fmt"
	"testing"
	"time"

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

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
	params  ServiceParams
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	mock := testutil.NewMockGateway(types.PaymentGatewayStripe, true)
	s.params = newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry(mock))
	s.service = NewInvoiceService(s.params)
}

func (s *InvoiceServiceSuite) seedSubscription(id string) *subscription.Subscription {
	now := s.GetNow()
	sub := &subscription.Subscription{
		ID:                 id,
		PlanCode:           "PRO-PLAN",
		PlanPrice:          decimal.NewFromInt(10),
		Currency:           "USD",
		Gateway:            types.PaymentGatewayStripe,
		SubscriptionStatus: types.SubscriptionStatusActive,
		BillingCycle:       types.BillingCycleMonthly,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now.AddDate(0, 0, 3),
		Version:            1,
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

func (s *InvoiceServiceSuite) seedInvoice(id string, status types.InvoiceStatus, total int64) *invoice.Invoice {
	now := s.GetNow()
	inv := &invoice.Invoice{
		ID:            id,
		InvoiceNumber: "INV-2026-000042",
		Gateway:       types.PaymentGatewayStripe,
		InvoiceStatus: status,
		Currency:      "USD",
		Subtotal:      decimal.NewFromInt(total),
		Total:         decimal.NewFromInt(total),
		AmountPaid:    decimal.Zero,
		IssueDate:     now,
		DueDate:       now.AddDate(0, 0, 3),
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

func (s *InvoiceServiceSuite) TestCreateRenewalInvoiceNumbersSequentially() {
	first, err := s.service.CreateRenewalInvoice(s.GetContext(), s.seedSubscription("sub_inv_1"))
	s.NoError(err)
	second, err := s.service.CreateRenewalInvoice(s.GetContext(), s.seedSubscription("sub_inv_2"))
	s.NoError(err)

	year := time.Now().UTC().Year()
	s.Equal(fmt.Sprintf("INV-%d-000001", year), first.InvoiceNumber)
	s.Equal(fmt.Sprintf("INV-%d-000002", year), second.InvoiceNumber)
	s.Equal(types.InvoiceStatusPending, first.InvoiceStatus)
	s.True(first.Total.Equal(decimal.NewFromInt(10)))
	s.Equal("sub_inv_1", first.SubscriptionID)
}

func (s *InvoiceServiceSuite) TestCreateRenewalInvoiceReusesOpenInvoice() {
	sub := s.seedSubscription("sub_inv_3")

	first, err := s.service.CreateRenewalInvoice(s.GetContext(), sub)
	s.NoError(err)
	again, err := s.service.CreateRenewalInvoice(s.GetContext(), sub)
	s.NoError(err)
	s.Equal(first.ID, again.ID)
}

func (s *InvoiceServiceSuite) TestSettleWithPaymentMarksPaid() {
	inv := s.seedInvoice("inv_set_1", types.InvoiceStatusPending, 10)
	paidAt := s.GetNow()

	err := s.service.SettleWithPayment(s.GetContext(), inv, &payment.Payment{
		Gateway:          types.PaymentGatewayStripe,
		GatewayPaymentID: "pi_set_1",
		PaymentStatus:    types.PaymentStatusSucceeded,
		Amount:           decimal.NewFromInt(10),
		Currency:         "USD",
		PaidAt:           &paidAt,
		BaseModel:        types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive},
	})
	s.NoError(err)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.True(stored.AmountPaid.Equal(decimal.NewFromInt(10)))
	s.NotNil(stored.PaidAt)
	s.True(stored.AmountDue().IsZero())

	p, err := s.GetStores().PaymentRepo.GetByGatewayPaymentID(s.GetContext(), types.PaymentGatewayStripe, "pi_set_1")
	s.NoError(err)
	s.Equal(inv.ID, p.InvoiceID)
}

func (s *InvoiceServiceSuite) TestSettleWithPaymentPartialKeepsPending() {
	inv := s.seedInvoice("inv_set_2", types.InvoiceStatusPending, 10)

	err := s.service.SettleWithPayment(s.GetContext(), inv, &payment.Payment{
		Gateway:          types.PaymentGatewayStripe,
		GatewayPaymentID: "pi_set_2",
		PaymentStatus:    types.PaymentStatusSucceeded,
		Amount:           decimal.NewFromInt(4),
		Currency:         "USD",
		BaseModel:        types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive},
	})
	s.NoError(err)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, stored.InvoiceStatus)
	s.True(stored.AmountDue().Equal(decimal.NewFromInt(6)))
}

func (s *InvoiceServiceSuite) TestSettleWithPaymentReplayIsNoop() {
	inv := s.seedInvoice("inv_set_3", types.InvoiceStatusPending, 10)
	pay := func() *payment.Payment {
		return &payment.Payment{
			Gateway:          types.PaymentGatewayStripe,
			GatewayPaymentID: "pi_set_3",
			PaymentStatus:    types.PaymentStatusSucceeded,
			Amount:           decimal.NewFromInt(10),
			Currency:         "USD",
			BaseModel:        types.BaseModel{WorkspaceID: types.DefaultWorkspaceID, Status: types.StatusActive},
		}
	}

	s.NoError(s.service.SettleWithPayment(s.GetContext(), inv, pay()))

	// Replay against a reloaded copy still open in another handler's view.
	reloaded, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	reloaded.InvoiceStatus = types.InvoiceStatusPending
	s.NoError(s.service.SettleWithPayment(s.GetContext(), reloaded, pay()))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.True(stored.AmountPaid.Equal(decimal.NewFromInt(10)), "replay must not double-apply")

	payments, err := s.GetStores().PaymentRepo.ListByInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Len(payments, 1)
}

func (s *InvoiceServiceSuite) TestVoidOpenInvoice() {
	inv := s.seedInvoice("inv_void_1", types.InvoiceStatusOverdue, 10)

	s.NoError(s.service.Void(s.GetContext(), inv.ID))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusVoid, stored.InvoiceStatus)
	s.True(stored.IsSettled())
}

func (s *InvoiceServiceSuite) TestVoidPaidInvoiceRejected() {
	inv := s.seedInvoice("inv_void_2", types.InvoiceStatusPaid, 10)

	err := s.service.Void(s.GetContext(), inv.ID)
	s.True(ierr.IsInvalidOperation(err))
}
