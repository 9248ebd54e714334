package types

// ReferralStatus is the attribution state of a referral.
type ReferralStatus string

const (
	ReferralStatusPending      ReferralStatus = "pending"
	ReferralStatusConverted    ReferralStatus = "converted"
	ReferralStatusQualified    ReferralStatus = "qualified"
	ReferralStatusDisqualified ReferralStatus = "disqualified"
)

// CommissionStatus tracks a referral commission from creation to payout.
// Commissions mature after a fixed window so refunds and chargebacks can
// still reverse them before they become payable.
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusMatured  CommissionStatus = "matured"
	CommissionStatusPaid     CommissionStatus = "paid"
	CommissionStatusReversed CommissionStatus = "reversed"
)

// PayoutStatus is the state of a commission payout batch.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
)
