package testutil

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/stackbill/stackbill/internal/domain/subscription"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository, including
// the optimistic concurrency behavior of the postgres implementation: an
// update with a stale Version fails with ErrVersionConflict.
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
	mu sync.Mutex
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) GetByGatewaySubscriptionID(ctx context.Context, gateway types.PaymentGateway, gatewaySubscriptionID string) (*subscription.Subscription, error) {
	subs, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.Gateway == gateway && sub.GatewaySubscriptionID == gatewaySubscriptionID
	}, nil)
	if len(subs) == 0 {
		return nil, ierr.NewError("subscription not found").
			WithHint("No subscription for this gateway subscription").
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(subs[0]), nil
}

func (s *InMemorySubscriptionStore) GetByGatewayCustomerID(ctx context.Context, gateway types.PaymentGateway, gatewayCustomerID string) (*subscription.Subscription, error) {
	subs, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.Gateway == gateway && sub.GatewayCustomerID == gatewayCustomerID
	}, func(i, j *subscription.Subscription) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if len(subs) == 0 {
		return nil, ierr.NewError("subscription not found").
			WithHint("No subscription for this gateway customer").
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(subs[0]), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return err
	}
	if current.Version != sub.Version {
		return ierr.NewError("subscription was modified concurrently").
			WithHint("The subscription changed since it was read; retry with fresh state").
			Mark(ierr.ErrVersionConflict)
	}

	stored := copySubscription(sub)
	stored.Version++
	if err := s.InMemoryStore.Update(ctx, sub.ID, stored); err != nil {
		return err
	}
	sub.Version++
	return nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, filter, subscriptionMatches, func(i, j *subscription.Subscription) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if filter != nil && filter.Limit > 0 && len(subs) > filter.Limit {
		subs = subs[:filter.Limit]
	}
	return lo.Map(subs, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionMatches)
}

func (s *InMemorySubscriptionStore) GetLatestLive(ctx context.Context, workspaceID string) (*subscription.Subscription, error) {
	subs, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.WorkspaceID == workspaceID && sub.SubscriptionStatus.IsLive()
	}, func(i, j *subscription.Subscription) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if len(subs) == 0 {
		return nil, ierr.NewError("no live subscription").
			WithHint("The workspace has no live subscription").
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(subs[0]), nil
}

func subscriptionMatches(_ context.Context, sub *subscription.Subscription, rawFilter interface{}) bool {
	filter, ok := rawFilter.(*types.SubscriptionFilter)
	if !ok || filter == nil {
		return true
	}
	if filter.WorkspaceID != "" && sub.WorkspaceID != filter.WorkspaceID {
		return false
	}
	if filter.Gateway != "" && sub.Gateway != filter.Gateway {
		return false
	}
	if len(filter.SubscriptionIDs) > 0 && !lo.Contains(filter.SubscriptionIDs, sub.ID) {
		return false
	}
	if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, sub.SubscriptionStatus) {
		return false
	}
	if filter.CancelAtPeriodEnd != nil && sub.CancelAtPeriodEnd != *filter.CancelAtPeriodEnd {
		return false
	}
	if filter.PeriodEndBefore != nil && !sub.CurrentPeriodEnd.Before(*filter.PeriodEndBefore) {
		return false
	}
	if filter.PausedBefore != nil && (sub.PausedAt == nil || !sub.PausedAt.Before(*filter.PausedBefore)) {
		return false
	}
	if filter.SuspendedBefore != nil && (sub.SuspendedAt == nil || !sub.SuspendedAt.Before(*filter.SuspendedBefore)) {
		return false
	}
	return true
}

// copySubscription keeps stored state isolated from caller mutations, the
// same way rows read from postgres are.
func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	clone := *sub
	return &clone
}
