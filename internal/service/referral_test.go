package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/referral"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/testutil"
	"github.com/stackbill/stackbill/internal/types"
)

type ReferralServiceSuite struct {
	testutil.BaseServiceTestSuite
	service ReferralService
	params  ServiceParams
}

func TestReferralService(t *testing.T) {
	suite.Run(t, new(ReferralServiceSuite))
}

func (s *ReferralServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestParams(&s.BaseServiceTestSuite, gateway.NewRegistry())
	s.service = NewReferralService(s.params)
}

func (s *ReferralServiceSuite) seedReferral(referrer, referee string) *referral.Referral {
	ref, err := s.service.Create(s.GetContext(), &dto.CreateReferralRequest{
		ReferrerWorkspaceID: referrer,
		RefereeWorkspaceID:  referee,
		Code:                "FRIEND10",
	})
	s.Require().NoError(err)
	return ref
}

func (s *ReferralServiceSuite) paidOrder(id, workspaceID string, total int64) *order.Order {
	now := s.GetNow()
	o := &order.Order{
		ID:                id,
		OrderNumber:       "ORD-" + id,
		OrderStatus:       types.OrderStatusPaid,
		Gateway:           types.PaymentGatewayStripe,
		Currency:          "USD",
		Subtotal:          decimal.NewFromInt(total),
		Total:             decimal.NewFromInt(total),
		BaseCurrencyTotal: decimal.NewFromInt(total),
		BaseModel: types.BaseModel{
			WorkspaceID: workspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	s.Require().NoError(s.GetStores().OrderRepo.Create(s.GetContext(), o))
	return o
}

func (s *ReferralServiceSuite) TestCreateRejectsSelfReferral() {
	_, err := s.service.Create(s.GetContext(), &dto.CreateReferralRequest{
		ReferrerWorkspaceID: "ws_same",
		RefereeWorkspaceID:  "ws_same",
		Code:                "SELF",
	})
	s.True(ierr.IsValidation(err))
}

func (s *ReferralServiceSuite) TestCreateRejectsSecondAttribution() {
	s.seedReferral("ws_referrer", "ws_buyer")

	_, err := s.service.Create(s.GetContext(), &dto.CreateReferralRequest{
		ReferrerWorkspaceID: "ws_other",
		RefereeWorkspaceID:  "ws_buyer",
		Code:                "OTHER",
	})
	s.True(ierr.IsAlreadyExists(err))
}

func (s *ReferralServiceSuite) TestRecordConversionBooksCommission() {
	ref := s.seedReferral("ws_referrer", "ws_buyer")
	o := s.paidOrder("ord_conv_1", "ws_buyer", 200)

	s.NoError(s.service.RecordConversion(s.GetContext(), o))

	stored, err := s.GetStores().ReferralRepo.Get(s.GetContext(), ref.ID)
	s.NoError(err)
	s.Equal(types.ReferralStatusConverted, stored.ReferralStatus)
	s.NotNil(stored.ConvertedAt)

	commission, err := s.GetStores().CommissionRepo.GetByOrder(s.GetContext(), o.ID)
	s.NoError(err)
	s.Equal(types.CommissionStatusPending, commission.CommissionStatus)
	// 10% of the base-currency total.
	s.True(commission.Amount.Equal(decimal.NewFromInt(20)))
	s.Equal("ws_referrer", commission.WorkspaceID)
}

func (s *ReferralServiceSuite) TestRecordConversionIsReplaySafe() {
	s.seedReferral("ws_referrer", "ws_buyer")
	o := s.paidOrder("ord_rep_1", "ws_buyer", 100)

	s.NoError(s.service.RecordConversion(s.GetContext(), o))
	s.NoError(s.service.RecordConversion(s.GetContext(), o))

	commissions, err := s.GetStores().CommissionRepo.ListByReferrer(s.GetContext(), "ws_referrer")
	s.NoError(err)
	s.Len(commissions, 1)
}

func (s *ReferralServiceSuite) TestRecordConversionWithoutReferralIsNoop() {
	o := s.paidOrder("ord_none_1", "ws_unreferred", 100)
	s.NoError(s.service.RecordConversion(s.GetContext(), o))

	commissions, err := s.GetStores().CommissionRepo.ListByReferrer(s.GetContext(), "ws_unreferred")
	s.NoError(err)
	s.Empty(commissions)
}

func (s *ReferralServiceSuite) TestReverseCommissionDisqualifies() {
	ref := s.seedReferral("ws_referrer", "ws_buyer")
	o := s.paidOrder("ord_rev_1", "ws_buyer", 100)
	s.NoError(s.service.RecordConversion(s.GetContext(), o))

	s.NoError(s.service.ReverseCommissionForOrder(s.GetContext(), o.ID))

	commission, err := s.GetStores().CommissionRepo.GetByOrder(s.GetContext(), o.ID)
	s.NoError(err)
	s.Equal(types.CommissionStatusReversed, commission.CommissionStatus)
	s.NotNil(commission.ReversedAt)

	stored, err := s.GetStores().ReferralRepo.Get(s.GetContext(), ref.ID)
	s.NoError(err)
	s.Equal(types.ReferralStatusDisqualified, stored.ReferralStatus)

	// Reversing twice is a no-op.
	s.NoError(s.service.ReverseCommissionForOrder(s.GetContext(), o.ID))
}

func (s *ReferralServiceSuite) TestMaturationSweepQualifiesAndMatures() {
	ref := s.seedReferral("ws_referrer", "ws_buyer")
	o := s.paidOrder("ord_mat_1", "ws_buyer", 100)
	s.NoError(s.service.RecordConversion(s.GetContext(), o))

	// Age the conversion and the commission past their windows.
	past := s.GetNow().AddDate(0, 0, -31)
	stored, err := s.GetStores().ReferralRepo.Get(s.GetContext(), ref.ID)
	s.Require().NoError(err)
	stored.ConvertedAt = &past
	s.Require().NoError(s.GetStores().ReferralRepo.Update(s.GetContext(), stored))

	commission, err := s.GetStores().CommissionRepo.GetByOrder(s.GetContext(), o.ID)
	s.Require().NoError(err)
	commission.MaturesAt = past
	s.Require().NoError(s.GetStores().CommissionRepo.Update(s.GetContext(), commission))

	summary, err := s.service.MaturationSweep(s.GetContext(), false)
	s.NoError(err)
	s.Equal(2, summary.Examined)
	s.Equal(2, summary.Affected)

	stored, err = s.GetStores().ReferralRepo.Get(s.GetContext(), ref.ID)
	s.NoError(err)
	s.Equal(types.ReferralStatusQualified, stored.ReferralStatus)
	s.NotNil(stored.QualifiedAt)

	commission, err = s.GetStores().CommissionRepo.GetByOrder(s.GetContext(), o.ID)
	s.NoError(err)
	s.Equal(types.CommissionStatusMatured, commission.CommissionStatus)
}

func (s *ReferralServiceSuite) TestMaturationSweepDryRun() {
	ref := s.seedReferral("ws_referrer", "ws_buyer")
	past := s.GetNow().AddDate(0, 0, -31)
	stored, err := s.GetStores().ReferralRepo.Get(s.GetContext(), ref.ID)
	s.Require().NoError(err)
	stored.ReferralStatus = types.ReferralStatusConverted
	stored.ConvertedAt = &past
	s.Require().NoError(s.GetStores().ReferralRepo.Update(s.GetContext(), stored))

	summary, err := s.service.MaturationSweep(s.GetContext(), true)
	s.NoError(err)
	s.Equal(1, summary.Affected)

	stored, err = s.GetStores().ReferralRepo.Get(s.GetContext(), ref.ID)
	s.NoError(err)
	s.Equal(types.ReferralStatusConverted, stored.ReferralStatus)
}

func (s *ReferralServiceSuite) TestCreatePayoutBatchesMatured() {
	s.seedReferral("ws_referrer", "ws_buyer")
	first := s.paidOrder("ord_pay_1", "ws_buyer", 100)
	second := s.paidOrder("ord_pay_2", "ws_buyer", 50)
	s.NoError(s.service.RecordConversion(s.GetContext(), first))
	s.NoError(s.service.RecordConversion(s.GetContext(), second))

	past := s.GetNow().AddDate(0, 0, -1)
	for _, orderID := range []string{first.ID, second.ID} {
		commission, err := s.GetStores().CommissionRepo.GetByOrder(s.GetContext(), orderID)
		s.Require().NoError(err)
		commission.CommissionStatus = types.CommissionStatusMatured
		commission.MaturesAt = past
		s.Require().NoError(s.GetStores().CommissionRepo.Update(s.GetContext(), commission))
	}

	resp, err := s.service.CreatePayout(s.GetContext(), "ws_referrer")
	s.NoError(err)
	s.Len(resp.Commissions, 2)
	// 10 + 5 from the two orders.
	s.True(resp.Amount.Equal(decimal.NewFromInt(15)))
	s.Equal(types.PayoutStatusPending, resp.PayoutStatus)

	for _, orderID := range []string{first.ID, second.ID} {
		commission, err := s.GetStores().CommissionRepo.GetByOrder(s.GetContext(), orderID)
		s.NoError(err)
		s.Equal(types.CommissionStatusPaid, commission.CommissionStatus)
		s.Equal(resp.ID, commission.PayoutID)
	}

	// Everything payable is already batched.
	_, err = s.service.CreatePayout(s.GetContext(), "ws_referrer")
	s.True(ierr.IsInvalidOperation(err))
}

func (s *ReferralServiceSuite) TestEarningsBuckets() {
	ref := s.seedReferral("ws_referrer", "ws_buyer")
	now := s.GetNow()
	amounts := map[types.CommissionStatus]int64{
		types.CommissionStatusPending: 10,
		types.CommissionStatusMatured: 20,
		types.CommissionStatusPaid:    30,
	}
	i := 0
	for status, amount := range amounts {
		i++
		s.Require().NoError(s.GetStores().CommissionRepo.Create(s.GetContext(), &referral.Commission{
			ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COMMISSION),
			ReferralID:       ref.ID,
			OrderID:          "ord_earn_" + string(rune('0'+i)),
			CommissionStatus: status,
			Amount:           decimal.NewFromInt(amount),
			Currency:         "USD",
			MaturesAt:        now,
			BaseModel: types.BaseModel{
				WorkspaceID: "ws_referrer",
				Status:      types.StatusActive,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		}))
	}

	earnings, err := s.service.Earnings(s.GetContext(), "ws_referrer")
	s.NoError(err)
	s.True(earnings.PendingAmount.Equal(decimal.NewFromInt(10)))
	s.True(earnings.MaturedAmount.Equal(decimal.NewFromInt(20)))
	s.True(earnings.PaidAmount.Equal(decimal.NewFromInt(30)))
	s.Equal("USD", earnings.Currency)
}
