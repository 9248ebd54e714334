package postgres

import (
	"context"
	"encoding/json"

	"github.com/stackbill/stackbill/internal/domain/coupon"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

type couponRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewCouponRepository(db postgres.IClient, logger *logger.Logger) coupon.Repository {
	return &couponRepository{db: db, logger: logger}
}

func (r *couponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	query := `
	INSERT INTO coupons (
		id, code, coupon_type, value, currency, min_order_total,
		max_redemptions, redemptions, starts_at, expires_at, applies_to,
		workspace_id, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
	)`

	appliesJSON, err := json.Marshal(c.AppliesTo)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode coupon targets").
			Mark(ierr.ErrDatabase)
	}

	_, err = r.db.Querier(ctx).ExecContext(ctx, query,
		c.ID, c.Code, c.CouponType, c.Value, c.Currency, c.MinOrderTotal,
		c.MaxRedemptions, c.Redemptions, c.StartsAt, c.ExpiresAt, appliesJSON,
		c.WorkspaceID, c.Status, c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy,
	)
	if err != nil {
		return wrapExecErr(err, "coupon")
	}
	return nil
}

const couponSelect = `
	SELECT id, code, coupon_type, value, currency, min_order_total,
		max_redemptions, redemptions, starts_at, expires_at, applies_to,
		workspace_id, status, created_at, updated_at, created_by, updated_by
	FROM coupons`

func (r *couponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.getOne(ctx, couponSelect+` WHERE id = $1 AND status != $2`, id, types.StatusDeleted)
}

func (r *couponRepository) GetByCode(ctx context.Context, workspaceID string, code string) (*coupon.Coupon, error) {
	return r.getOne(ctx, couponSelect+` WHERE workspace_id = $1 AND UPPER(code) = UPPER($2) AND status != $3`,
		workspaceID, code, types.StatusDeleted)
}

func (r *couponRepository) getOne(ctx context.Context, query string, args ...interface{}) (*coupon.Coupon, error) {
	var c coupon.Coupon
	var appliesJSON []byte

	row := r.db.Querier(ctx).QueryRowxContext(ctx, query, args...)
	err := row.Scan(
		&c.ID, &c.Code, &c.CouponType, &c.Value, &c.Currency, &c.MinOrderTotal,
		&c.MaxRedemptions, &c.Redemptions, &c.StartsAt, &c.ExpiresAt, &appliesJSON,
		&c.WorkspaceID, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy,
	)
	if err != nil {
		return nil, wrapGetErr(err, "coupon")
	}

	if len(appliesJSON) > 0 {
		if err := json.Unmarshal(appliesJSON, &c.AppliesTo); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to decode coupon targets").
				Mark(ierr.ErrDatabase)
		}
	}
	return &c, nil
}

func (r *couponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	query := `
	UPDATE coupons SET
		value = $1, min_order_total = $2, max_redemptions = $3,
		starts_at = $4, expires_at = $5, applies_to = $6,
		status = $7, updated_at = NOW(), updated_by = $8
	WHERE id = $9`

	appliesJSON, err := json.Marshal(c.AppliesTo)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode coupon targets").
			Mark(ierr.ErrDatabase)
	}

	_, err = r.db.Querier(ctx).ExecContext(ctx, query,
		c.Value, c.MinOrderTotal, c.MaxRedemptions,
		c.StartsAt, c.ExpiresAt, appliesJSON,
		c.Status, c.UpdatedBy, c.ID,
	)
	if err != nil {
		return wrapExecErr(err, "coupon")
	}
	return nil
}

// IncrementRedemptions enforces the usage cap in SQL so two checkouts
// racing on the last redemption cannot both win.
func (r *couponRepository) IncrementRedemptions(ctx context.Context, id string) error {
	query := `
	UPDATE coupons
	SET redemptions = redemptions + 1, updated_at = NOW()
	WHERE id = $1 AND (max_redemptions = 0 OR redemptions < max_redemptions)`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return wrapExecErr(err, "coupon")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ierr.NewError("coupon redemption limit reached").
			WithHint("The coupon has no redemptions left").
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}
