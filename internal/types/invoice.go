package types

import "time"

// InvoiceStatus is the collection state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// InvoiceFilter narrows invoice list queries.
type InvoiceFilter struct {
	WorkspaceID       string
	SubscriptionID    string
	Statuses          []InvoiceStatus
	DueBefore         *time.Time
	MaxChargeAttempts *int
	Limit             int
}
