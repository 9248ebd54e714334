package webhookevent

import (
	"context"

	"github.com/stackbill/stackbill/internal/types"
)

type Repository interface {
	// Insert stores a new event row. A second insert for the same
	// (gateway, event_id) fails with ErrAlreadyExists — the storage-level
	// mutex that makes concurrent duplicate deliveries a no-op.
	Insert(ctx context.Context, event *WebhookEvent) error

	Get(ctx context.Context, id string) (*WebhookEvent, error)
	GetByEventID(ctx context.Context, gateway types.PaymentGateway, eventID string) (*WebhookEvent, error)

	// Update persists status/attempt changes. Called outside the
	// reconciliation transaction so a failed attempt is still recorded.
	Update(ctx context.Context, event *WebhookEvent) error
}
