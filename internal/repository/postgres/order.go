package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

const orderColumns = `
	id, order_number, order_status, gateway, gateway_session_id, currency,
	subtotal, discount, tax, total, coupon_code, display_currency,
	exchange_rate, base_currency_total,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

const orderItemColumns = `
	id, order_id, sku, name, unit_price, quantity, billing_cycle,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

type orderRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewOrderRepository(db postgres.IClient, logger *logger.Logger) order.Repository {
	return &orderRepository{db: db, logger: logger}
}

func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	query := `
	INSERT INTO orders (` + orderColumns + `
	) VALUES (
		:id, :order_number, :order_status, :gateway, :gateway_session_id, :currency,
		:subtotal, :discount, :tax, :total, :coupon_code, :display_currency,
		:exchange_rate, :base_currency_total,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, o); err != nil {
		return wrapExecErr(err, "order")
	}
	return nil
}

// CreateWithItems writes the order and its lines in the caller's
// transaction so a partially written order is never observable.
func (r *orderRepository) CreateWithItems(ctx context.Context, o *order.Order, items []*order.OrderItem) error {
	if err := r.Create(ctx, o); err != nil {
		return err
	}

	itemQuery := `
	INSERT INTO order_items (` + orderItemColumns + `
	) VALUES (
		:id, :order_id, :sku, :name, :unit_price, :quantity, :billing_cycle,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	for _, item := range items {
		if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), itemQuery, item); err != nil {
			return wrapExecErr(err, "order item")
		}
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1 AND status != $2`

	var o order.Order
	if err := r.db.Querier(ctx).GetContext(ctx, &o, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "order")
	}
	return &o, nil
}

func (r *orderRepository) GetWithItems(ctx context.Context, id string) (*order.Order, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	itemQuery := `SELECT` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at ASC`

	items := []*order.OrderItem{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &items, itemQuery, id); err != nil {
		return nil, wrapListErr(err, "order items")
	}
	o.Items = items
	return o, nil
}

func (r *orderRepository) GetByGatewaySession(ctx context.Context, gateway types.PaymentGateway, gatewaySessionID string) (*order.Order, error) {
	query := `SELECT` + orderColumns + `
	FROM orders
	WHERE gateway = $1 AND gateway_session_id = $2 AND status != $3`

	var o order.Order
	if err := r.db.Querier(ctx).GetContext(ctx, &o, query, gateway, gatewaySessionID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "order")
	}
	return &o, nil
}

func (r *orderRepository) Update(ctx context.Context, o *order.Order) error {
	query := `
	UPDATE orders SET
		order_status = :order_status,
		gateway_session_id = :gateway_session_id,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, o); err != nil {
		return wrapExecErr(err, "order")
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter *types.OrderFilter) ([]*order.Order, error) {
	query, args := buildOrderQuery(`SELECT`+orderColumns+` FROM orders`, filter, true)

	q := r.db.Querier(ctx)
	orders := []*order.Order{}
	if err := q.SelectContext(ctx, &orders, q.Rebind(query), args...); err != nil {
		return nil, wrapListErr(err, "orders")
	}
	return orders, nil
}

func (r *orderRepository) Count(ctx context.Context, filter *types.OrderFilter) (int, error) {
	query, args := buildOrderQuery(`SELECT COUNT(*) FROM orders`, filter, false)

	q := r.db.Querier(ctx)
	var count int
	if err := q.GetContext(ctx, &count, q.Rebind(query), args...); err != nil {
		return 0, wrapListErr(err, "orders")
	}
	return count, nil
}

func buildOrderQuery(base string, filter *types.OrderFilter, ordered bool) (string, []interface{}) {
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
	if len(filter.Statuses) > 0 {
		in, inArgs, _ := sqlx.In("order_status IN (?)", filter.Statuses)
		conditions = append(conditions, in)
		args = append(args, inArgs...)
	}
	if filter.CreatedBefore != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, *filter.CreatedBefore)
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
