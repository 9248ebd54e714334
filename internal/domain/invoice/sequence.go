package invoice

import (
	"fmt"
	"time"
)

// InvoiceSequence represents a workspace's invoice number sequence for a
// specific year. Incremented inside the transaction that creates the invoice
// so numbers stay gapless under concurrent creation.
type InvoiceSequence struct {
	ID          string
	WorkspaceID string
	Year        string
	LastValue   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FormatInvoiceNumber renders a sequence value as the human-facing number,
// e.g. INV-2026-000042.
func FormatInvoiceNumber(year string, value int64) string {
	return fmt.Sprintf("INV-%s-%06d", year, value)
}
