package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/stackbill/stackbill/internal/domain/referral"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// InMemoryReferralStore implements referral.Repository
type InMemoryReferralStore struct {
	*InMemoryStore[*referral.Referral]
}

func NewInMemoryReferralStore() *InMemoryReferralStore {
	return &InMemoryReferralStore{
		InMemoryStore: NewInMemoryStore[*referral.Referral](),
	}
}

func (s *InMemoryReferralStore) Create(ctx context.Context, ref *referral.Referral) error {
	if ref == nil {
		return ierr.NewError("referral cannot be nil").
			WithHint("Referral cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, ref.ID, copyReferral(ref))
}

func (s *InMemoryReferralStore) Get(ctx context.Context, id string) (*referral.Referral, error) {
	ref, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyReferral(ref), nil
}

func (s *InMemoryReferralStore) GetByReferee(ctx context.Context, refereeWorkspaceID string) (*referral.Referral, error) {
	referrals, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, ref *referral.Referral, _ interface{}) bool {
		return ref.RefereeWorkspaceID == refereeWorkspaceID
	}, nil)
	if len(referrals) == 0 {
		return nil, ierr.NewError("referral not found").
			WithHint("No referral for this workspace").
			Mark(ierr.ErrNotFound)
	}
	return copyReferral(referrals[0]), nil
}

func (s *InMemoryReferralStore) Update(ctx context.Context, ref *referral.Referral) error {
	return s.InMemoryStore.Update(ctx, ref.ID, copyReferral(ref))
}

func (s *InMemoryReferralStore) ListConvertedBefore(ctx context.Context, cutoff time.Time) ([]*referral.Referral, error) {
	referrals, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, ref *referral.Referral, _ interface{}) bool {
		return ref.ReferralStatus == types.ReferralStatusConverted &&
			ref.ConvertedAt != nil && ref.ConvertedAt.Before(cutoff)
	}, func(i, j *referral.Referral) bool {
		return i.ConvertedAt.Before(*j.ConvertedAt)
	})
	return lo.Map(referrals, func(ref *referral.Referral, _ int) *referral.Referral {
		return copyReferral(ref)
	}), nil
}

func copyReferral(ref *referral.Referral) *referral.Referral {
	clone := *ref
	return &clone
}

// InMemoryCommissionStore implements referral.CommissionRepository. The
// referrer-scoped queries need the referral store to resolve ownership.
type InMemoryCommissionStore struct {
	*InMemoryStore[*referral.Commission]
	referrals *InMemoryReferralStore
}

func NewInMemoryCommissionStore(referrals *InMemoryReferralStore) *InMemoryCommissionStore {
	return &InMemoryCommissionStore{
		InMemoryStore: NewInMemoryStore[*referral.Commission](),
		referrals:     referrals,
	}
}

func (s *InMemoryCommissionStore) Create(ctx context.Context, c *referral.Commission) error {
	if c == nil {
		return ierr.NewError("commission cannot be nil").
			WithHint("Commission cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, c.ID, copyCommission(c))
}

func (s *InMemoryCommissionStore) Get(ctx context.Context, id string) (*referral.Commission, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyCommission(c), nil
}

func (s *InMemoryCommissionStore) Update(ctx context.Context, c *referral.Commission) error {
	return s.InMemoryStore.Update(ctx, c.ID, copyCommission(c))
}

func (s *InMemoryCommissionStore) ListByReferral(ctx context.Context, referralID string) ([]*referral.Commission, error) {
	return s.listWhere(ctx, func(c *referral.Commission) bool { return c.ReferralID == referralID })
}

func (s *InMemoryCommissionStore) ListByReferrer(ctx context.Context, referrerWorkspaceID string) ([]*referral.Commission, error) {
	return s.listWhere(ctx, func(c *referral.Commission) bool {
		return s.belongsToReferrer(ctx, c, referrerWorkspaceID)
	})
}

func (s *InMemoryCommissionStore) GetByOrder(ctx context.Context, orderID string) (*referral.Commission, error) {
	commissions, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, c *referral.Commission, _ interface{}) bool {
		return c.OrderID == orderID
	}, nil)
	if len(commissions) == 0 {
		return nil, ierr.NewError("commission not found").
			WithHint("No commission for this order").
			Mark(ierr.ErrNotFound)
	}
	return copyCommission(commissions[0]), nil
}

func (s *InMemoryCommissionStore) ListMaturablePending(ctx context.Context, now time.Time) ([]*referral.Commission, error) {
	return s.listWhere(ctx, func(c *referral.Commission) bool {
		return c.CommissionStatus == types.CommissionStatusPending && !c.MaturesAt.After(now)
	})
}

func (s *InMemoryCommissionStore) ListPayable(ctx context.Context, referrerWorkspaceID string, now time.Time) ([]*referral.Commission, error) {
	return s.listWhere(ctx, func(c *referral.Commission) bool {
		return c.CommissionStatus == types.CommissionStatusMatured &&
			c.PayoutID == "" &&
			!c.MaturesAt.After(now) &&
			s.belongsToReferrer(ctx, c, referrerWorkspaceID)
	})
}

func (s *InMemoryCommissionStore) belongsToReferrer(ctx context.Context, c *referral.Commission, referrerWorkspaceID string) bool {
	ref, err := s.referrals.Get(ctx, c.ReferralID)
	return err == nil && ref.ReferrerWorkspaceID == referrerWorkspaceID
}

func (s *InMemoryCommissionStore) listWhere(ctx context.Context, match func(*referral.Commission) bool) ([]*referral.Commission, error) {
	commissions, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, c *referral.Commission, _ interface{}) bool {
		return match(c)
	}, func(i, j *referral.Commission) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	})
	return lo.Map(commissions, func(c *referral.Commission, _ int) *referral.Commission {
		return copyCommission(c)
	}), nil
}

func copyCommission(c *referral.Commission) *referral.Commission {
	clone := *c
	return &clone
}

// InMemoryPayoutStore implements referral.PayoutRepository
type InMemoryPayoutStore struct {
	*InMemoryStore[*referral.Payout]
}

func NewInMemoryPayoutStore() *InMemoryPayoutStore {
	return &InMemoryPayoutStore{
		InMemoryStore: NewInMemoryStore[*referral.Payout](),
	}
}

func (s *InMemoryPayoutStore) Create(ctx context.Context, p *referral.Payout) error {
	clone := *p
	return s.InMemoryStore.Create(ctx, p.ID, &clone)
}

func (s *InMemoryPayoutStore) Get(ctx context.Context, id string) (*referral.Payout, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	clone := *p
	return &clone, nil
}

func (s *InMemoryPayoutStore) Update(ctx context.Context, p *referral.Payout) error {
	clone := *p
	return s.InMemoryStore.Update(ctx, p.ID, &clone)
}

func (s *InMemoryPayoutStore) ListByReferrer(ctx context.Context, referrerWorkspaceID string) ([]*referral.Payout, error) {
	payouts, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, p *referral.Payout, _ interface{}) bool {
		return p.ReferrerWorkspaceID == referrerWorkspaceID
	}, func(i, j *referral.Payout) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	return lo.Map(payouts, func(p *referral.Payout, _ int) *referral.Payout {
		clone := *p
		return &clone
	}), nil
}
