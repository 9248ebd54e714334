package dto

import (
	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/referral"
)

// CreateReferralRequest attributes a new workspace to a referrer's code.
type CreateReferralRequest struct {
	ReferrerWorkspaceID string `json:"referrer_workspace_id" binding:"required"`
	RefereeWorkspaceID  string `json:"referee_workspace_id" binding:"required"`
	Code                string `json:"code" binding:"required"`
}

// ReferralResponse is the API shape of a referral.
type ReferralResponse struct {
	*referral.Referral
}

// CommissionResponse is the API shape of a commission.
type CommissionResponse struct {
	*referral.Commission
}

// PayoutResponse is a payout batch plus its line items.
type PayoutResponse struct {
	*referral.Payout
	Commissions []*referral.Commission `json:"commissions,omitempty"`
}

// ReferralEarningsResponse summarizes a referrer's standing.
type ReferralEarningsResponse struct {
	PendingAmount decimal.Decimal `json:"pending_amount"`
	MaturedAmount decimal.Decimal `json:"matured_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Currency      string          `json:"currency"`
}
