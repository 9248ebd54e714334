package referral

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, referral *Referral) error
	Get(ctx context.Context, id string) (*Referral, error)
	GetByReferee(ctx context.Context, refereeWorkspaceID string) (*Referral, error)
	Update(ctx context.Context, referral *Referral) error

	// ListConvertedBefore returns converted referrals whose conversion is
	// older than the cutoff, the qualification sweep's selection query.
	ListConvertedBefore(ctx context.Context, cutoff time.Time) ([]*Referral, error)
}

type CommissionRepository interface {
	Create(ctx context.Context, commission *Commission) error
	Get(ctx context.Context, id string) (*Commission, error)
	Update(ctx context.Context, commission *Commission) error
	ListByReferral(ctx context.Context, referralID string) ([]*Commission, error)
	ListByReferrer(ctx context.Context, referrerWorkspaceID string) ([]*Commission, error)
	GetByOrder(ctx context.Context, orderID string) (*Commission, error)

	// ListMaturablePending returns pending commissions whose maturation time
	// has passed.
	ListMaturablePending(ctx context.Context, now time.Time) ([]*Commission, error)

	// ListPayable returns matured, unbatched commissions for a referrer.
	ListPayable(ctx context.Context, referrerWorkspaceID string, now time.Time) ([]*Commission, error)
}

type PayoutRepository interface {
	Create(ctx context.Context, payout *Payout) error
	Get(ctx context.Context, id string) (*Payout, error)
	Update(ctx context.Context, payout *Payout) error
	ListByReferrer(ctx context.Context, referrerWorkspaceID string) ([]*Payout, error)
}
