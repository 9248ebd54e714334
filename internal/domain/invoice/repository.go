package invoice

import (
	"context"
	"time"

	"github.com/stackbill/stackbill/internal/types"
)

type Repository interface {
	Create(ctx context.Context, invoice *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, invoice *Invoice) error
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// NextInvoiceNumber reserves and returns the next sequential invoice
	// number for the workspace. Must be called inside the transaction that
	// creates the invoice.
	NextInvoiceNumber(ctx context.Context, workspaceID string, year string) (string, error)

	// ListRetryable returns unpaid invoices still inside the retry pool:
	// status pending/overdue, attempts below max, due before the cutoff.
	ListRetryable(ctx context.Context, maxAttempts int, now time.Time) ([]*Invoice, error)

	// ListRetriesExhausted returns unpaid invoices whose attempts reached max.
	ListRetriesExhausted(ctx context.Context, maxAttempts int) ([]*Invoice, error)
}
