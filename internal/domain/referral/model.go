package referral

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/types"
)

// Referral attributes a referee workspace to a referrer. Status walks
// pending -> converted (first paid order) -> qualified (after the
// maturation window) or disqualified (refund/chargeback).
type Referral struct {
	// ID is the unique identifier for the referral
	ID string `db:"id" json:"id"`

	// ReferrerWorkspaceID is the workspace earning commissions
	ReferrerWorkspaceID string `db:"referrer_workspace_id" json:"referrer_workspace_id"`

	// RefereeWorkspaceID is the referred workspace
	RefereeWorkspaceID string `db:"referee_workspace_id" json:"referee_workspace_id"`

	// Code is the referral code used at signup
	Code string `db:"code" json:"code"`

	// ReferralStatus is the attribution state
	ReferralStatus types.ReferralStatus `db:"referral_status" json:"referral_status"`

	ConvertedAt    *time.Time `db:"converted_at" json:"converted_at"`
	QualifiedAt    *time.Time `db:"qualified_at" json:"qualified_at"`
	DisqualifiedAt *time.Time `db:"disqualified_at" json:"disqualified_at"`

	types.BaseModel
}

// Commission is a single earned commission. It matures MaturesAt so a
// refund or chargeback inside the window can still reverse it before it
// becomes payable.
type Commission struct {
	// ID is the unique identifier for the commission
	ID string `db:"id" json:"id"`

	// ReferralID is the referral that earned the commission
	ReferralID string `db:"referral_id" json:"referral_id"`

	// OrderID is the order the commission was computed from
	OrderID string `db:"order_id" json:"order_id"`

	// PayoutID is set once the commission is included in a payout batch
	PayoutID string `db:"payout_id" json:"payout_id"`

	// CommissionStatus is the maturation/payout state
	CommissionStatus types.CommissionStatus `db:"commission_status" json:"commission_status"`

	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Currency string          `db:"currency" json:"currency"`

	MaturesAt  time.Time  `db:"matures_at" json:"matures_at"`
	ReversedAt *time.Time `db:"reversed_at" json:"reversed_at"`

	types.BaseModel
}

// IsPayable reports whether the commission can enter a payout batch at t.
func (c *Commission) IsPayable(t time.Time) bool {
	return c.CommissionStatus == types.CommissionStatusMatured && !c.MaturesAt.After(t)
}

// Payout is a batch of matured commissions paid to one referrer.
type Payout struct {
	// ID is the unique identifier for the payout
	ID string `db:"id" json:"id"`

	// ReferrerWorkspaceID is the workspace being paid
	ReferrerWorkspaceID string `db:"referrer_workspace_id" json:"referrer_workspace_id"`

	// PayoutStatus is the batch state
	PayoutStatus types.PayoutStatus `db:"payout_status" json:"payout_status"`

	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Currency string          `db:"currency" json:"currency"`

	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`

	types.BaseModel
}
