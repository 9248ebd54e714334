package payment

import (
	"context"

	"github.com/stackbill/stackbill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByGatewayPaymentID(ctx context.Context, gateway types.PaymentGateway, gatewayPaymentID string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	ListByOrder(ctx context.Context, orderID string) ([]*Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Payment, error)
}

type MethodRepository interface {
	// Upsert creates or refreshes an instrument keyed by
	// (gateway, gateway_payment_method_id); idempotent under webhook replay.
	Upsert(ctx context.Context, method *PaymentMethod) error

	Get(ctx context.Context, id string) (*PaymentMethod, error)
	GetByGatewayMethodID(ctx context.Context, gateway types.PaymentGateway, gatewayMethodID string) (*PaymentMethod, error)

	// Deactivate soft-deactivates an instrument; rows are never deleted.
	Deactivate(ctx context.Context, gateway types.PaymentGateway, gatewayMethodID string) error

	SetDefault(ctx context.Context, workspaceID string, id string) error
	GetDefault(ctx context.Context, workspaceID string, gateway types.PaymentGateway) (*PaymentMethod, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*PaymentMethod, error)
}
