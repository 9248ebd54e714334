package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/stackbill/stackbill/internal/domain/subscription"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

const subscriptionColumns = `
	id, plan_code, plan_price, currency, gateway, gateway_subscription_id,
	gateway_customer_id, gateway_price_id, subscription_status, billing_cycle,
	current_period_start, current_period_end, cancel_at_period_end,
	cancelled_at, ended_at, trial_ends_at, paused_at, suspended_at,
	pause_cycles, scheduled_plan_code, scheduled_plan_price, version,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

type subscriptionRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(db postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	INSERT INTO subscriptions (` + subscriptionColumns + `
	) VALUES (
		:id, :plan_code, :plan_price, :currency, :gateway, :gateway_subscription_id,
		:gateway_customer_id, :gateway_price_id, :subscription_status, :billing_cycle,
		:current_period_start, :current_period_end, :cancel_at_period_end,
		:cancelled_at, :ended_at, :trial_ends_at, :paused_at, :suspended_at,
		:pause_cycles, :scheduled_plan_code, :scheduled_plan_price, :version,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, sub); err != nil {
		return wrapExecErr(err, "subscription")
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 AND status != $2`

	var sub subscription.Subscription
	if err := r.db.Querier(ctx).GetContext(ctx, &sub, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByGatewaySubscriptionID(ctx context.Context, gateway types.PaymentGateway, gatewaySubscriptionID string) (*subscription.Subscription, error) {
	query := `SELECT` + subscriptionColumns + `
	FROM subscriptions
	WHERE gateway = $1 AND gateway_subscription_id = $2 AND status != $3`

	var sub subscription.Subscription
	if err := r.db.Querier(ctx).GetContext(ctx, &sub, query, gateway, gatewaySubscriptionID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByGatewayCustomerID(ctx context.Context, gateway types.PaymentGateway, gatewayCustomerID string) (*subscription.Subscription, error) {
	query := `SELECT` + subscriptionColumns + `
	FROM subscriptions
	WHERE gateway = $1 AND gateway_customer_id = $2 AND status != $3
	ORDER BY created_at DESC
	LIMIT 1`

	var sub subscription.Subscription
	if err := r.db.Querier(ctx).GetContext(ctx, &sub, query, gateway, gatewayCustomerID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetLatestLive(ctx context.Context, workspaceID string) (*subscription.Subscription, error) {
	query, args, err := sqlx.In(`SELECT`+subscriptionColumns+`
	FROM subscriptions
	WHERE workspace_id = ? AND subscription_status IN (?)
	ORDER BY created_at DESC
	LIMIT 1`, workspaceID, types.LiveSubscriptionStatuses())
	if err != nil {
		return nil, wrapListErr(err, "subscriptions")
	}

	q := r.db.Querier(ctx)
	var sub subscription.Subscription
	if err := q.GetContext(ctx, &sub, q.Rebind(query), args...); err != nil {
		return nil, wrapGetErr(err, "subscription")
	}
	return &sub, nil
}

// Update writes the row conditionally on the version the caller read. A
// zero-row update against an existing row means a concurrent writer won.
func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	UPDATE subscriptions SET
		plan_code = :plan_code,
		plan_price = :plan_price,
		gateway_subscription_id = :gateway_subscription_id,
		gateway_customer_id = :gateway_customer_id,
		gateway_price_id = :gateway_price_id,
		subscription_status = :subscription_status,
		billing_cycle = :billing_cycle,
		current_period_start = :current_period_start,
		current_period_end = :current_period_end,
		cancel_at_period_end = :cancel_at_period_end,
		cancelled_at = :cancelled_at,
		ended_at = :ended_at,
		trial_ends_at = :trial_ends_at,
		paused_at = :paused_at,
		suspended_at = :suspended_at,
		pause_cycles = :pause_cycles,
		scheduled_plan_code = :scheduled_plan_code,
		scheduled_plan_price = :scheduled_plan_price,
		version = :version + 1,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id AND version = :version`

	result, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, sub)
	if err != nil {
		return wrapExecErr(err, "subscription")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapExecErr(err, "subscription")
	}
	if affected == 0 {
		if _, getErr := r.Get(ctx, sub.ID); getErr != nil {
			return getErr
		}
		return ierr.NewError("subscription was modified concurrently").
			WithHint("The subscription changed since it was read; retry with fresh state").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"version":         sub.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	sub.Version++
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	query, args := buildSubscriptionQuery(`SELECT`+subscriptionColumns+` FROM subscriptions`, filter, true)

	q := r.db.Querier(ctx)
	subs := []*subscription.Subscription{}
	if err := q.SelectContext(ctx, &subs, q.Rebind(query), args...); err != nil {
		return nil, wrapListErr(err, "subscriptions")
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	query, args := buildSubscriptionQuery(`SELECT COUNT(*) FROM subscriptions`, filter, false)

	q := r.db.Querier(ctx)
	var count int
	if err := q.GetContext(ctx, &count, q.Rebind(query), args...); err != nil {
		return 0, wrapListErr(err, "subscriptions")
	}
	return count, nil
}

func buildSubscriptionQuery(base string, filter *types.SubscriptionFilter, ordered bool) (string, []interface{}) {
	conditions := []string{"status != ?"}
	args := []interface{}{types.StatusDeleted}

	if filter.WorkspaceID != "" {
		conditions = append(conditions, "workspace_id = ?")
		args = append(args, filter.WorkspaceID)
	}
	if filter.Gateway != "" {
		conditions = append(conditions, "gateway = ?")
		args = append(args, filter.Gateway)
	}
	if len(filter.SubscriptionIDs) > 0 {
		in, inArgs, _ := sqlx.In("id IN (?)", filter.SubscriptionIDs)
		conditions = append(conditions, in)
		args = append(args, inArgs...)
	}
	if len(filter.Statuses) > 0 {
		in, inArgs, _ := sqlx.In("subscription_status IN (?)", filter.Statuses)
		conditions = append(conditions, in)
		args = append(args, inArgs...)
	}
	if filter.CancelAtPeriodEnd != nil {
		conditions = append(conditions, "cancel_at_period_end = ?")
		args = append(args, *filter.CancelAtPeriodEnd)
	}
	if filter.PeriodEndBefore != nil {
		conditions = append(conditions, "current_period_end < ?")
		args = append(args, *filter.PeriodEndBefore)
	}
	if filter.PausedBefore != nil {
		conditions = append(conditions, "paused_at IS NOT NULL AND paused_at < ?")
		args = append(args, *filter.PausedBefore)
	}
	if filter.SuspendedBefore != nil {
		conditions = append(conditions, "suspended_at IS NOT NULL AND suspended_at < ?")
		args = append(args, *filter.SuspendedBefore)
	}

	query := base + " WHERE " + strings.Join(conditions, " AND ")
	if ordered {
		query += " ORDER BY created_at DESC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return query, args
}
