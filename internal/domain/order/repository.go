package order

import (
	"context"

	"github.com/stackbill/stackbill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, order *Order) error
	CreateWithItems(ctx context.Context, order *Order, items []*OrderItem) error
	Get(ctx context.Context, id string) (*Order, error)
	GetWithItems(ctx context.Context, id string) (*Order, error)
	GetByGatewaySession(ctx context.Context, gateway types.PaymentGateway, gatewaySessionID string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	List(ctx context.Context, filter *types.OrderFilter) ([]*Order, error)
	Count(ctx context.Context, filter *types.OrderFilter) (int, error)
}
