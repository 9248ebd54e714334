package subscription

import (
	"context"

	"github.com/stackbill/stackbill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByGatewaySubscriptionID(ctx context.Context, gateway types.PaymentGateway, gatewaySubscriptionID string) (*Subscription, error)

	// GetByGatewayCustomerID returns the newest subscription tied to the
	// gateway customer; used to map customer-scoped webhooks to a workspace.
	GetByGatewayCustomerID(ctx context.Context, gateway types.PaymentGateway, gatewayCustomerID string) (*Subscription, error)

	// Update persists the subscription with an optimistic concurrency check
	// on Version; a stale write fails with ErrVersionConflict.
	Update(ctx context.Context, subscription *Subscription) error

	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)

	// GetLatestLive returns the newest subscription for the workspace whose
	// status is in the live set, or ErrNotFound.
	GetLatestLive(ctx context.Context, workspaceID string) (*Subscription, error)
}
