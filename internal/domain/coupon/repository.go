package coupon

import "context"

type Repository interface {
	Create(ctx context.Context, coupon *Coupon) error
	Get(ctx context.Context, id string) (*Coupon, error)

	// GetByCode resolves a coupon by its case-insensitive code.
	GetByCode(ctx context.Context, workspaceID string, code string) (*Coupon, error)

	Update(ctx context.Context, coupon *Coupon) error

	// IncrementRedemptions bumps the usage counter inside the order's
	// transaction so the usage limit holds under concurrent checkouts.
	IncrementRedemptions(ctx context.Context, id string) error
}
