package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/stackbill/stackbill/internal/domain/coupon"
	ierr "github.com/stackbill/stackbill/internal/errors"
)

// InMemoryCouponStore implements coupon.Repository
type InMemoryCouponStore struct {
	*InMemoryStore[*coupon.Coupon]
	mu sync.Mutex
}

func NewInMemoryCouponStore() *InMemoryCouponStore {
	return &InMemoryCouponStore{
		InMemoryStore: NewInMemoryStore[*coupon.Coupon](),
	}
}

func (s *InMemoryCouponStore) Create(ctx context.Context, c *coupon.Coupon) error {
	if c == nil {
		return ierr.NewError("coupon cannot be nil").
			WithHint("Coupon cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, c.ID, copyCoupon(c))
}

func (s *InMemoryCouponStore) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyCoupon(c), nil
}

func (s *InMemoryCouponStore) GetByCode(ctx context.Context, workspaceID string, code string) (*coupon.Coupon, error) {
	coupons, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, c *coupon.Coupon, _ interface{}) bool {
		return c.WorkspaceID == workspaceID && strings.EqualFold(c.Code, code)
	}, nil)
	if len(coupons) == 0 {
		return nil, ierr.NewError("coupon not found").
			WithHint("No coupon with this code").
			Mark(ierr.ErrNotFound)
	}
	return copyCoupon(coupons[0]), nil
}

func (s *InMemoryCouponStore) Update(ctx context.Context, c *coupon.Coupon) error {
	return s.InMemoryStore.Update(ctx, c.ID, copyCoupon(c))
}

func (s *InMemoryCouponStore) IncrementRedemptions(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.MaxRedemptions > 0 && c.Redemptions >= c.MaxRedemptions {
		return ierr.NewError("coupon redemption limit reached").
			WithHint("The coupon has no redemptions left").
			Mark(ierr.ErrInvalidOperation)
	}
	c.Redemptions++
	return s.InMemoryStore.Update(ctx, id, c)
}

func copyCoupon(c *coupon.Coupon) *coupon.Coupon {
	clone := *c
	clone.AppliesTo = append([]string{}, c.AppliesTo...)
	return &clone
}
