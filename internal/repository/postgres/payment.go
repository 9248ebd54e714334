package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

const paymentColumns = `
	id, order_id, invoice_id, gateway, gateway_payment_id, payment_status,
	amount, currency, paid_at, gateway_response,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

const paymentMethodColumns = `
	id, gateway, gateway_payment_method_id, method_type, is_default, last4,
	expiry_month, expiry_year,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

type paymentRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewPaymentRepository(db postgres.IClient, logger *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
	INSERT INTO payments (` + paymentColumns + `
	) VALUES (
		:id, :order_id, :invoice_id, :gateway, :gateway_payment_id, :payment_status,
		:amount, :currency, :paid_at, :gateway_response,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, p); err != nil {
		return wrapExecErr(err, "payment")
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE id = $1 AND status != $2`

	var p payment.Payment
	if err := r.db.Querier(ctx).GetContext(ctx, &p, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "payment")
	}
	return &p, nil
}

func (r *paymentRepository) GetByGatewayPaymentID(ctx context.Context, gateway types.PaymentGateway, gatewayPaymentID string) (*payment.Payment, error) {
	query := `SELECT` + paymentColumns + `
	FROM payments
	WHERE gateway = $1 AND gateway_payment_id = $2 AND status != $3`

	var p payment.Payment
	if err := r.db.Querier(ctx).GetContext(ctx, &p, query, gateway, gatewayPaymentID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "payment")
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
	UPDATE payments SET
		payment_status = :payment_status,
		invoice_id = :invoice_id,
		paid_at = :paid_at,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, p); err != nil {
		return wrapExecErr(err, "payment")
	}
	return nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*payment.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE order_id = $1 AND status != $2 ORDER BY created_at ASC`

	payments := []*payment.Payment{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &payments, query, orderID, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "payments")
	}
	return payments, nil
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE invoice_id = $1 AND status != $2 ORDER BY created_at ASC`

	payments := []*payment.Payment{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &payments, query, invoiceID, types.StatusDeleted); err != nil {
		return nil, wrapListErr(err, "payments")
	}
	return payments, nil
}

type paymentMethodRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewPaymentMethodRepository(db postgres.IClient, logger *logger.Logger) payment.MethodRepository {
	return &paymentMethodRepository{db: db, logger: logger}
}

// Upsert is keyed on (gateway, gateway_payment_method_id) so a replayed
// attach webhook refreshes the row instead of duplicating it.
func (r *paymentMethodRepository) Upsert(ctx context.Context, m *payment.PaymentMethod) error {
	query := `
	INSERT INTO payment_methods (` + paymentMethodColumns + `
	) VALUES (
		:id, :gateway, :gateway_payment_method_id, :method_type, :is_default, :last4,
		:expiry_month, :expiry_year,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)
	ON CONFLICT (gateway, gateway_payment_method_id)
	DO UPDATE SET
		method_type = EXCLUDED.method_type,
		last4 = EXCLUDED.last4,
		expiry_month = EXCLUDED.expiry_month,
		expiry_year = EXCLUDED.expiry_year,
		status = EXCLUDED.status,
		updated_at = NOW()`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, m); err != nil {
		return wrapExecErr(err, "payment method")
	}
	return nil
}

func (r *paymentMethodRepository) Get(ctx context.Context, id string) (*payment.PaymentMethod, error) {
	query := `SELECT` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1 AND status != $2`

	var m payment.PaymentMethod
	if err := r.db.Querier(ctx).GetContext(ctx, &m, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "payment method")
	}
	return &m, nil
}

func (r *paymentMethodRepository) GetByGatewayMethodID(ctx context.Context, gateway types.PaymentGateway, gatewayMethodID string) (*payment.PaymentMethod, error) {
	query := `SELECT` + paymentMethodColumns + `
	FROM payment_methods
	WHERE gateway = $1 AND gateway_payment_method_id = $2 AND status != $3`

	var m payment.PaymentMethod
	if err := r.db.Querier(ctx).GetContext(ctx, &m, query, gateway, gatewayMethodID, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "payment method")
	}
	return &m, nil
}

func (r *paymentMethodRepository) Deactivate(ctx context.Context, gateway types.PaymentGateway, gatewayMethodID string) error {
	query := `
	UPDATE payment_methods
	SET status = $1, is_default = FALSE, updated_at = NOW()
	WHERE gateway = $2 AND gateway_payment_method_id = $3 AND status != $1`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, types.StatusInactive, gateway, gatewayMethodID)
	if err != nil {
		return wrapExecErr(err, "payment method")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return wrapGetErr(sql.ErrNoRows, "payment method")
	}
	return nil
}

// SetDefault clears the previous default in the same statement pair; both
// run in the caller's transaction.
func (r *paymentMethodRepository) SetDefault(ctx context.Context, workspaceID string, id string) error {
	clear := `UPDATE payment_methods SET is_default = FALSE, updated_at = NOW() WHERE workspace_id = $1 AND is_default = TRUE`
	if _, err := r.db.Querier(ctx).ExecContext(ctx, clear, workspaceID); err != nil {
		return wrapExecErr(err, "payment method")
	}

	set := `UPDATE payment_methods SET is_default = TRUE, updated_at = NOW() WHERE id = $1 AND workspace_id = $2 AND status = $3`
	result, err := r.db.Querier(ctx).ExecContext(ctx, set, id, workspaceID, types.StatusActive)
	if err != nil {
		return wrapExecErr(err, "payment method")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return wrapGetErr(sql.ErrNoRows, "payment method")
	}
	return nil
}

func (r *paymentMethodRepository) GetDefault(ctx context.Context, workspaceID string, gateway types.PaymentGateway) (*payment.PaymentMethod, error) {
	query := `SELECT` + paymentMethodColumns + `
	FROM payment_methods
	WHERE workspace_id = $1 AND gateway = $2 AND is_default = TRUE AND status = $3`

	var m payment.PaymentMethod
	if err := r.db.Querier(ctx).GetContext(ctx, &m, query, workspaceID, gateway, types.StatusActive); err != nil {
		return nil, wrapGetErr(err, "payment method")
	}
	return &m, nil
}

func (r *paymentMethodRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*payment.PaymentMethod, error) {
	query := `SELECT` + paymentMethodColumns + `
	FROM payment_methods
	WHERE workspace_id = $1 AND status = $2
	ORDER BY is_default DESC, created_at DESC`

	methods := []*payment.PaymentMethod{}
	if err := r.db.Querier(ctx).SelectContext(ctx, &methods, query, workspaceID, types.StatusActive); err != nil {
		return nil, wrapListErr(err, "payment methods")
	}
	return methods, nil
}
