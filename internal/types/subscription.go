package types

import "time"

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusPaused     SubscriptionStatus = "paused"
	SubscriptionStatusCancelled  SubscriptionStatus = "cancelled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusExpired    SubscriptionStatus = "expired"
)

// LiveSubscriptionStatuses are the statuses under which a subscription still
// grants entitlements. Callers resolving "the" subscription for a workspace
// query the latest subscription whose status is in this set.
func LiveSubscriptionStatuses() []SubscriptionStatus {
	return []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusPaused,
	}
}

func (s SubscriptionStatus) IsLive() bool {
	for _, live := range LiveSubscriptionStatuses() {
		if s == live {
			return true
		}
	}
	return false
}

func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

// BillingCycle is the recurrence unit of a subscription.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

func (b BillingCycle) Validate() bool {
	return b == BillingCycleMonthly || b == BillingCycleYearly
}

// NextPeriodEnd advances from the previous period end by one billing cycle
// unit. Renewals always extend from the previous period end, not from the
// processing time, so delayed webhooks do not drift the billing anchor.
func (b BillingCycle) NextPeriodEnd(previousEnd time.Time) time.Time {
	switch b {
	case BillingCycleYearly:
		return previousEnd.AddDate(1, 0, 0)
	default:
		return previousEnd.AddDate(0, 1, 0)
	}
}

// SubscriptionFilter narrows subscription list queries.
type SubscriptionFilter struct {
	WorkspaceID       string
	Gateway           PaymentGateway
	SubscriptionIDs   []string
	Statuses          []SubscriptionStatus
	CancelAtPeriodEnd *bool
	PeriodEndBefore   *time.Time
	PausedBefore      *time.Time
	SuspendedBefore   *time.Time
	Limit             int
}
