package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/referral"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// Commission policy. Commissions mature after a holding window so refunds
// and chargebacks inside it can still claw them back.
const (
	commissionRatePercent  = 10
	commissionMaturityDays = 30
	qualificationDays      = 30
)

// ReferralService tracks referral attribution and the commission ledger:
// conversion on first paid order, qualification after the holding window,
// maturation sweeps, and payout batching.
type ReferralService interface {
	Create(ctx context.Context, req *dto.CreateReferralRequest) (*referral.Referral, error)
	Get(ctx context.Context, id string) (*referral.Referral, error)

	// RecordConversion converts the referee's referral on its first paid
	// order and books a commission. Runs inside the fulfilment
	// transaction; no-op when the workspace was not referred.
	RecordConversion(ctx context.Context, o *order.Order) error

	// ReverseCommissionForOrder claws back the commission an order earned
	// and disqualifies the referral when it was still unqualified.
	ReverseCommissionForOrder(ctx context.Context, orderID string) error

	// MaturationSweep qualifies referrals past the holding window and
	// matures pending commissions whose window has passed.
	MaturationSweep(ctx context.Context, dryRun bool) (*dto.SweepSummary, error)

	// CreatePayout batches a referrer's payable commissions into one payout.
	CreatePayout(ctx context.Context, referrerWorkspaceID string) (*dto.PayoutResponse, error)

	Earnings(ctx context.Context, referrerWorkspaceID string) (*dto.ReferralEarningsResponse, error)
}

type referralService struct {
	ServiceParams
}

func NewReferralService(params ServiceParams) ReferralService {
	return &referralService{ServiceParams: params}
}

func (s *referralService) Create(ctx context.Context, req *dto.CreateReferralRequest) (*referral.Referral, error) {
	if req.ReferrerWorkspaceID == req.RefereeWorkspaceID {
		return nil, ierr.NewError("self referral").
			WithHint("A workspace cannot refer itself").
			Mark(ierr.ErrValidation)
	}

	if _, err := s.ReferralRepo.GetByReferee(ctx, req.RefereeWorkspaceID); err == nil {
		return nil, ierr.NewError("referee already attributed").
			WithHint("This workspace already has a referral").
			Mark(ierr.ErrAlreadyExists)
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	ref := &referral.Referral{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFERRAL),
		ReferrerWorkspaceID: req.ReferrerWorkspaceID,
		RefereeWorkspaceID:  req.RefereeWorkspaceID,
		Code:                req.Code,
		ReferralStatus:      types.ReferralStatusPending,
		BaseModel: types.BaseModel{
			WorkspaceID: req.ReferrerWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if err := s.ReferralRepo.Create(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *referralService) Get(ctx context.Context, id string) (*referral.Referral, error) {
	return s.ReferralRepo.Get(ctx, id)
}

func (s *referralService) RecordConversion(ctx context.Context, o *order.Order) error {
	ref, err := s.ReferralRepo.GetByReferee(ctx, o.WorkspaceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if ref.ReferralStatus == types.ReferralStatusDisqualified {
		return nil
	}

	// One commission per order, replay-safe.
	if _, err := s.CommissionRepo.GetByOrder(ctx, o.ID); err == nil {
		return nil
	} else if !ierr.IsNotFound(err) {
		return err
	}

	now := time.Now().UTC()
	if ref.ReferralStatus == types.ReferralStatusPending {
		ref.ReferralStatus = types.ReferralStatusConverted
		ref.ConvertedAt = &now
		if err := s.ReferralRepo.Update(ctx, ref); err != nil {
			return err
		}
	}

	amount := o.BaseCurrencyTotal.
		Mul(decimal.NewFromInt(commissionRatePercent)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	if !amount.GreaterThan(decimal.Zero) {
		return nil
	}

	commission := &referral.Commission{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COMMISSION),
		ReferralID:       ref.ID,
		OrderID:          o.ID,
		CommissionStatus: types.CommissionStatusPending,
		Amount:           amount,
		Currency:         s.Config.Currency.BaseCurrency,
		MaturesAt:        now.AddDate(0, 0, commissionMaturityDays),
		BaseModel: types.BaseModel{
			WorkspaceID: ref.ReferrerWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	if err := s.CommissionRepo.Create(ctx, commission); err != nil {
		return err
	}

	s.Logger.Infow("commission booked",
		"commission_id", commission.ID,
		"referral_id", ref.ID,
		"order_id", o.ID,
		"amount", amount,
	)
	return nil
}

func (s *referralService) ReverseCommissionForOrder(ctx context.Context, orderID string) error {
	commission, err := s.CommissionRepo.GetByOrder(ctx, orderID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if commission.CommissionStatus == types.CommissionStatusReversed {
		return nil
	}
	if commission.CommissionStatus == types.CommissionStatusPaid {
		// Paid out already: record the reversal for the next payout to net
		// off, but never silently rewrite history.
		s.Logger.Warnw("reversing an already-paid commission",
			"commission_id", commission.ID,
			"order_id", orderID,
		)
	}

	now := time.Now().UTC()
	commission.CommissionStatus = types.CommissionStatusReversed
	commission.ReversedAt = &now
	if err := s.CommissionRepo.Update(ctx, commission); err != nil {
		return err
	}

	ref, err := s.ReferralRepo.Get(ctx, commission.ReferralID)
	if err != nil {
		return err
	}
	if ref.ReferralStatus == types.ReferralStatusConverted {
		ref.ReferralStatus = types.ReferralStatusDisqualified
		ref.DisqualifiedAt = &now
		return s.ReferralRepo.Update(ctx, ref)
	}
	return nil
}

func (s *referralService) MaturationSweep(ctx context.Context, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary("referral-maturation", dryRun)
	now := time.Now().UTC()

	// Qualify referrals whose conversion survived the holding window.
	cutoff := now.AddDate(0, 0, -qualificationDays)
	converted, err := s.ReferralRepo.ListConvertedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, ref := range converted {
		summary.Examined++
		summary.AffectedIDs = append(summary.AffectedIDs, ref.ID)
		if dryRun {
			summary.Affected++
			continue
		}
		ref.ReferralStatus = types.ReferralStatusQualified
		ref.QualifiedAt = &now
		if err := s.ReferralRepo.Update(ctx, ref); err != nil {
			s.Logger.Errorw("referral qualification failed", "referral_id", ref.ID, "error", err)
			summary.Failed++
			continue
		}
		summary.Affected++
	}

	// Mature commissions whose window has passed.
	pending, err := s.CommissionRepo.ListMaturablePending(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, commission := range pending {
		summary.Examined++
		summary.AffectedIDs = append(summary.AffectedIDs, commission.ID)
		if dryRun {
			summary.Affected++
			continue
		}
		commission.CommissionStatus = types.CommissionStatusMatured
		if err := s.CommissionRepo.Update(ctx, commission); err != nil {
			s.Logger.Errorw("commission maturation failed", "commission_id", commission.ID, "error", err)
			summary.Failed++
			continue
		}
		summary.Affected++
	}

	s.Logger.Infow("referral maturation sweep finished",
		"examined", summary.Examined,
		"affected", summary.Affected,
		"failed", summary.Failed,
		"dry_run", dryRun,
	)
	return summary, nil
}

func (s *referralService) CreatePayout(ctx context.Context, referrerWorkspaceID string) (*dto.PayoutResponse, error) {
	now := time.Now().UTC()
	payable, err := s.CommissionRepo.ListPayable(ctx, referrerWorkspaceID, now)
	if err != nil {
		return nil, err
	}
	if len(payable) == 0 {
		return nil, ierr.NewError("nothing to pay out").
			WithHint("No matured commissions to pay out").
			Mark(ierr.ErrInvalidOperation)
	}

	total := decimal.Zero
	for _, commission := range payable {
		total = total.Add(commission.Amount)
	}

	payout := &referral.Payout{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYOUT),
		ReferrerWorkspaceID: referrerWorkspaceID,
		PayoutStatus:        types.PayoutStatusPending,
		Amount:              total,
		Currency:            s.Config.Currency.BaseCurrency,
		BaseModel: types.BaseModel{
			WorkspaceID: referrerWorkspaceID,
			Status:      types.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PayoutRepo.Create(ctx, payout); err != nil {
			return err
		}
		for _, commission := range payable {
			commission.PayoutID = payout.ID
			commission.CommissionStatus = types.CommissionStatusPaid
			if err := s.CommissionRepo.Update(ctx, commission); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("payout created",
		"payout_id", payout.ID,
		"referrer_workspace_id", referrerWorkspaceID,
		"amount", total,
		"commissions", len(payable),
	)
	return &dto.PayoutResponse{Payout: payout, Commissions: payable}, nil
}

func (s *referralService) Earnings(ctx context.Context, referrerWorkspaceID string) (*dto.ReferralEarningsResponse, error) {
	out := &dto.ReferralEarningsResponse{
		PendingAmount: decimal.Zero,
		MaturedAmount: decimal.Zero,
		PaidAmount:    decimal.Zero,
		Currency:      s.Config.Currency.BaseCurrency,
	}

	commissions, err := s.CommissionRepo.ListByReferrer(ctx, referrerWorkspaceID)
	if err != nil {
		return nil, err
	}
	for _, commission := range commissions {
		switch commission.CommissionStatus {
		case types.CommissionStatusPending:
			out.PendingAmount = out.PendingAmount.Add(commission.Amount)
		case types.CommissionStatusMatured:
			out.MaturedAmount = out.MaturedAmount.Add(commission.Amount)
		case types.CommissionStatusPaid:
			out.PaidAmount = out.PaidAmount.Add(commission.Amount)
		}
	}

	return out, nil
}
