package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stackbill/stackbill/internal/domain/referral"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

const referralColumns = `
	id, referrer_workspace_id, referee_workspace_id, code, referral_status,
	converted_at, qualified_at, disqualified_at,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

const commissionColumns = `
	id, referral_id, order_id, payout_id, commission_status, amount, currency,
	matures_at, reversed_at,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

const payoutColumns = `
	id, referrer_workspace_id, payout_status, amount, currency, completed_at,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

type referralRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewReferralRepository(db postgres.IClient, logger *logger.Logger) referral.Repository {
	return &referralRepository{db: db, logger: logger}
}

func (r *referralRepository) Create(ctx context.Context, ref *referral.Referral) error {
	query := `
	INSERT INTO referrals (` + referralColumns + `
	) VALUES (
		:id, :referrer_workspace_id, :referee_workspace_id, :code, :referral_status,
		:converted_at, :qualified_at, :disqualified_at,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, ref); err != nil {
		return wrapExecErr(err, "referral")
	}
	return nil
}

func (r *referralRepository) Get(ctx context.Context, id string) (*referral.Referral, error) {
	query := `SELECT` + referralColumns + ` FROM referrals WHERE id = $1 AND status != $2`

	var ref referral.Referral
	if err := r.db.Querier(ctx).GetContext(ctx, &ref, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "referral")
	}
	return &ref, nil
}

func (r *referralRepository) GetByReferee(ctx context.Context, refereeWorkspaceID string) (*referral.Referral, error) {
	query := `SELECT` + referralColumns + ` FROM referrals WHERE referee_workspace_id = $1 AND status != $2`

	var ref referral.Referral
	if err := r.db.Querier(ctx).GetContext(ctx, &ref, query, refereeWorkspaceID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "referral")
	}
	return &ref, nil
}

func (r *referralRepository) Update(ctx context.Context, ref *referral.Referral) error {
	query := `
	UPDATE referrals SET
		referral_status = :referral_status,
		converted_at = :converted_at,
		qualified_at = :qualified_at,
		disqualified_at = :disqualified_at,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, ref); err != nil {
		return wrapExecErr(err, "referral")
	}
	return nil
}

func (r *referralRepository) ListConvertedBefore(ctx context.Context, cutoff time.Time) ([]*referral.Referral, error) {
	query := `SELECT` + referralColumns + `
	FROM referrals
	WHERE referral_status = $1 AND converted_at < $2 AND status != $3
	ORDER BY converted_at ASC`

	referrals := []*referral.Referral{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &referrals, query,
		types.ReferralStatusConverted, cutoff, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "referrals")
	}
	return referrals, nil
}

type commissionRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewCommissionRepository(db postgres.IClient, logger *logger.Logger) referral.CommissionRepository {
	return &commissionRepository{db: db, logger: logger}
}

func (r *commissionRepository) Create(ctx context.Context, c *referral.Commission) error {
	query := `
	INSERT INTO commissions (` + commissionColumns + `
	) VALUES (
		:id, :referral_id, :order_id, :payout_id, :commission_status, :amount, :currency,
		:matures_at, :reversed_at,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, c); err != nil {
		return wrapExecErr(err, "commission")
	}
	return nil
}

func (r *commissionRepository) Get(ctx context.Context, id string) (*referral.Commission, error) {
	query := `SELECT` + commissionColumns + ` FROM commissions WHERE id = $1 AND status != $2`

	var c referral.Commission
	if err := r.db.Querier(ctx).GetContext(ctx, &c, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "commission")
	}
	return &c, nil
}

func (r *commissionRepository) Update(ctx context.Context, c *referral.Commission) error {
	query := `
	UPDATE commissions SET
		commission_status = :commission_status,
		payout_id = :payout_id,
		reversed_at = :reversed_at,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, c); err != nil {
		return wrapExecErr(err, "commission")
	}
	return nil
}

func (r *commissionRepository) ListByReferral(ctx context.Context, referralID string) ([]*referral.Commission, error) {
	query := `SELECT` + commissionColumns + ` FROM commissions WHERE referral_id = $1 AND status != $2 ORDER BY created_at ASC`

	commissions := []*referral.Commission{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &commissions, query, referralID, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "commissions")
	}
	return commissions, nil
}

// ListByReferrer joins through referrals; commissions do not carry the
// referrer directly.
func (r *commissionRepository) ListByReferrer(ctx context.Context, referrerWorkspaceID string) ([]*referral.Commission, error) {
	query := `
	SELECT c.id, c.referral_id, c.order_id, c.payout_id, c.commission_status,
		c.amount, c.currency, c.matures_at, c.reversed_at,
		c.workspace_id, c.status, c.created_at, c.updated_at, c.created_by, c.updated_by
	FROM commissions c
	JOIN referrals ref ON ref.id = c.referral_id
	WHERE ref.referrer_workspace_id = $1 AND c.status != $2
	ORDER BY c.created_at DESC`

	commissions := []*referral.Commission{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &commissions, query, referrerWorkspaceID, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "commissions")
	}
	return commissions, nil
}

func (r *commissionRepository) GetByOrder(ctx context.Context, orderID string) (*referral.Commission, error) {
	query := `SELECT` + commissionColumns + ` FROM commissions WHERE order_id = $1 AND status != $2`

	var c referral.Commission
	if err := r.db.Querier(ctx).GetContext(ctx, &c, query, orderID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "commission")
	}
	return &c, nil
}

func (r *commissionRepository) ListMaturablePending(ctx context.Context, now time.Time) ([]*referral.Commission, error) {
	query := `SELECT` + commissionColumns + `
	FROM commissions
	WHERE commission_status = $1 AND matures_at <= $2 AND status != $3
	ORDER BY matures_at ASC`

	commissions := []*referral.Commission{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &commissions, query,
		types.CommissionStatusPending, now, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "commissions")
	}
	return commissions, nil
}

func (r *commissionRepository) ListPayable(ctx context.Context, referrerWorkspaceID string, now time.Time) ([]*referral.Commission, error) {
	query := `
	SELECT c.id, c.referral_id, c.order_id, c.payout_id, c.commission_status,
		c.amount, c.currency, c.matures_at, c.reversed_at,
		c.workspace_id, c.status, c.created_at, c.updated_at, c.created_by, c.updated_by
	FROM commissions c
	JOIN referrals ref ON ref.id = c.referral_id
	WHERE ref.referrer_workspace_id = $1
	  AND c.commission_status = $2
	  AND c.payout_id = ''
	  AND c.matures_at <= $3
	  AND c.status != $4
	ORDER BY c.matures_at ASC`

	commissions := []*referral.Commission{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &commissions, query,
		referrerWorkspaceID, types.CommissionStatusMatured, now, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "commissions")
	}
	return commissions, nil
}

type payoutRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewPayoutRepository(db postgres.IClient, logger *logger.Logger) referral.PayoutRepository {
	return &payoutRepository{db: db, logger: logger}
}

func (r *payoutRepository) Create(ctx context.Context, p *referral.Payout) error {
	query := `
	INSERT INTO payouts (` + payoutColumns + `
	) VALUES (
		:id, :referrer_workspace_id, :payout_status, :amount, :currency, :completed_at,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, p); err != nil {
		return wrapExecErr(err, "payout")
	}
	return nil
}

func (r *payoutRepository) Get(ctx context.Context, id string) (*referral.Payout, error) {
	query := `SELECT` + payoutColumns + ` FROM payouts WHERE id = $1 AND status != $2`

	var p referral.Payout
	if err := r.db.Querier(ctx).GetContext(ctx, &p, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "payout")
	}
	return &p, nil
}

func (r *payoutRepository) Update(ctx context.Context, p *referral.Payout) error {
	query := `
	UPDATE payouts SET
		payout_status = :payout_status,
		completed_at = :completed_at,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, p); err != nil {
		return wrapExecErr(err, "payout")
	}
	return nil
}

func (r *payoutRepository) ListByReferrer(ctx context.Context, referrerWorkspaceID string) ([]*referral.Payout, error) {
	query := `SELECT` + payoutColumns + `
	FROM payouts
	WHERE referrer_workspace_id = $1 AND status != $2
	ORDER BY created_at DESC`

	payouts := []*referral.Payout{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &payouts, query, referrerWorkspaceID, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "payouts")
	}
	return payouts, nil
}
