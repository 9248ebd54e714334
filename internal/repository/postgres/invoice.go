package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

const invoiceColumns = `
	id, invoice_number, order_id, subscription_id, gateway, invoice_status,
	currency, subtotal, discount, tax, total, amount_paid, issue_date,
	due_date, paid_at, charge_attempts, last_attempt_at,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

type invoiceRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewInvoiceRepository(db postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
	INSERT INTO invoices (` + invoiceColumns + `
	) VALUES (
		:id, :invoice_number, :order_id, :subscription_id, :gateway, :invoice_status,
		:currency, :subtotal, :discount, :tax, :total, :amount_paid, :issue_date,
		:due_date, :paid_at, :charge_attempts, :last_attempt_at,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, inv); err != nil {
		return wrapExecErr(err, "invoice")
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = $1 AND status != $2`

	var inv invoice.Invoice
	if err := r.db.Querier(ctx).GetContext(ctx, &inv, query, id, types.StatusDeleted); err != nil {
		return nil, wrapGetErr(err, "invoice")
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
	UPDATE invoices SET
		invoice_status = :invoice_status,
		amount_paid = :amount_paid,
		due_date = :due_date,
		paid_at = :paid_at,
		charge_attempts = :charge_attempts,
		last_attempt_at = :last_attempt_at,
		status = :status,
		updated_at = NOW(),
		updated_by = :updated_by
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, inv); err != nil {
		return wrapExecErr(err, "invoice")
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	query, args := buildInvoiceQuery(`SELECT`+invoiceColumns+` FROM invoices`, filter, true)

	q := r.db.Querier(ctx)
	invoices := []*invoice.Invoice{}
	if err := q.SelectContext(ctx, &invoices, q.Rebind(query), args...); err != nil {
		return nil, wrapListErr(err, "invoices")
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	query, args := buildInvoiceQuery(`SELECT COUNT(*) FROM invoices`, filter, false)

	q := r.db.Querier(ctx)
	var count int
	if err := q.GetContext(ctx, &count, q.Rebind(query), args...); err != nil {
		return 0, wrapListErr(err, "invoices")
	}
	return count, nil
}

// NextInvoiceNumber bumps the per-workspace, per-year counter and formats
// the result. The upsert takes a row lock, so concurrent reservations in
// the same workspace serialize instead of duplicating.
func (r *invoiceRepository) NextInvoiceNumber(ctx context.Context, workspaceID string, year string) (string, error) {
	query := `
	INSERT INTO invoice_sequences (workspace_id, year, last_value)
	VALUES ($1, $2, 1)
	ON CONFLICT (workspace_id, year)
	DO UPDATE SET last_value = invoice_sequences.last_value + 1
	RETURNING last_value`

	var seq int64
	if err := r.db.Querier(ctx).GetContext(ctx, &seq, query, workspaceID, year); err != nil {
		return "", wrapExecErr(err, "invoice number")
	}
	return fmt.Sprintf("INV-%s-%06d", year, seq), nil
}

func (r *invoiceRepository) ListRetryable(ctx context.Context, maxAttempts int, now time.Time) ([]*invoice.Invoice, error) {
	query, args, err := sqlx.In(`SELECT`+invoiceColumns+`
	FROM invoices
	WHERE invoice_status IN (?)
	  AND charge_attempts < ?
	  AND due_date < ?
	  AND status != ?
	ORDER BY due_date ASC`,
		[]types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusOverdue},
		maxAttempts, now, types.StatusDeleted)
	if err != nil {
		return nil, wrapListErr(err, "invoices")
	}

	q := r.db.Querier(ctx)
	invoices := []*invoice.Invoice{}
	if err := q.SelectContext(ctx, &invoices, q.Rebind(query), args...); err != nil {
		return nil, wrapListErr(err, "invoices")
	}
	return invoices, nil
}

func (r *invoiceRepository) ListRetriesExhausted(ctx context.Context, maxAttempts int) ([]*invoice.Invoice, error) {
	query, args, err := sqlx.In(`SELECT`+invoiceColumns+`
	FROM invoices
	WHERE invoice_status IN (?)
	  AND charge_attempts >= ?
	  AND status != ?
	ORDER BY due_date ASC`,
		[]types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusOverdue},
		maxAttempts, types.StatusDeleted)
	if err != nil {
		return nil, wrapListErr(err, "invoices")
	}

	q := r.db.Querier(ctx)
	invoices := []*invoice.Invoice{}
	if err := q.SelectContext(ctx, &invoices, q.Rebind(query), args...); err != nil {
		return nil, wrapListErr(err, "invoices")
	}
	return invoices, nil
}

func buildInvoiceQuery(base string, filter *types.InvoiceFilter, ordered bool) (string, []interface{}) {
	conditions := []string{"status != ?"}
	args := []interface{}{types.StatusDeleted}

	if filter.WorkspaceID != "" {
		conditions = append(conditions, "workspace_id = ?")
		args = append(args, filter.WorkspaceID)
	}
	if filter.SubscriptionID != "" {
		conditions = append(conditions, "subscription_id = ?")
		args = append(args, filter.SubscriptionID)
	}
	if len(filter.Statuses) > 0 {
		in, inArgs, _ := sqlx.In("invoice_status IN (?)", filter.Statuses)
		conditions = append(conditions, in)
		args = append(args, inArgs...)
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, "due_date < ?")
		args = append(args, *filter.DueBefore)
	}
	if filter.MaxChargeAttempts != nil {
		conditions = append(conditions, "charge_attempts < ?")
		args = append(args, *filter.MaxChargeAttempts)
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
