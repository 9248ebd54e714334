package testutil

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/stackbill/stackbill/internal/domain/order"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// InMemoryOrderStore implements order.Repository
type InMemoryOrderStore struct {
	*InMemoryStore[*order.Order]
	mu    sync.RWMutex
	items map[string][]*order.OrderItem
}

func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		InMemoryStore: NewInMemoryStore[*order.Order](),
		items:         make(map[string][]*order.OrderItem),
	}
}

func (s *InMemoryOrderStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.items = make(map[string][]*order.OrderItem)
}

func (s *InMemoryOrderStore) Create(ctx context.Context, o *order.Order) error {
	if o == nil {
		return ierr.NewError("order cannot be nil").
			WithHint("Order cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, o.ID, copyOrder(o))
}

func (s *InMemoryOrderStore) CreateWithItems(ctx context.Context, o *order.Order, items []*order.OrderItem) error {
	if err := s.Create(ctx, o); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]*order.OrderItem, 0, len(items))
	for _, item := range items {
		clone := *item
		stored = append(stored, &clone)
	}
	s.items[o.ID] = stored
	return nil
}

func (s *InMemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	o, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyOrder(o), nil
}

func (s *InMemoryOrderStore) GetWithItems(ctx context.Context, id string) (*order.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	o.Items = append([]*order.OrderItem{}, s.items[id]...)
	return o, nil
}

func (s *InMemoryOrderStore) GetByGatewaySession(ctx context.Context, gateway types.PaymentGateway, gatewaySessionID string) (*order.Order, error) {
	orders, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, o *order.Order, _ interface{}) bool {
		return o.Gateway == gateway && o.GatewaySessionID == gatewaySessionID
	}, nil)
	if len(orders) == 0 {
		return nil, ierr.NewError("order not found").
			WithHint("No order for this gateway session").
			Mark(ierr.ErrNotFound)
	}
	return copyOrder(orders[0]), nil
}

func (s *InMemoryOrderStore) Update(ctx context.Context, o *order.Order) error {
	return s.InMemoryStore.Update(ctx, o.ID, copyOrder(o))
}

func (s *InMemoryOrderStore) List(ctx context.Context, filter *types.OrderFilter) ([]*order.Order, error) {
	orders, err := s.InMemoryStore.List(ctx, filter, orderMatches, func(i, j *order.Order) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if filter != nil && filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return lo.Map(orders, func(o *order.Order, _ int) *order.Order {
		return copyOrder(o)
	}), nil
}

func (s *InMemoryOrderStore) Count(ctx context.Context, filter *types.OrderFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, orderMatches)
}

func orderMatches(_ context.Context, o *order.Order, rawFilter interface{}) bool {
	filter, ok := rawFilter.(*types.OrderFilter)
	if !ok || filter == nil {
		return true
	}
	if filter.WorkspaceID != "" && o.WorkspaceID != filter.WorkspaceID {
		return false
	}
	if filter.Gateway != "" && o.Gateway != filter.Gateway {
		return false
	}
	if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, o.OrderStatus) {
		return false
	}
	if filter.CreatedBefore != nil && !o.CreatedAt.Before(*filter.CreatedBefore) {
		return false
	}
	return true
}

func copyOrder(o *order.Order) *order.Order {
	clone := *o
	clone.Items = nil
	return &clone
}
