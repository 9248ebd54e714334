package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/types"
)

type Invoice struct {
	// ID is the unique identifier for the invoice
	ID string `db:"id" json:"id"`

	// InvoiceNumber is the unique human-facing number, e.g. INV-2026-000042
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`

	// OrderID links the invoice to the order that produced it, if any
	OrderID string `db:"order_id" json:"order_id"`

	// SubscriptionID links renewal invoices to their subscription, if any
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// Gateway is the payment gateway collecting this invoice
	Gateway types.PaymentGateway `db:"gateway" json:"gateway"`

	// InvoiceStatus is the collection state of the invoice
	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	// Currency is the invoice currency in uppercase 3 letter ISO codes
	Currency string `db:"currency" json:"currency"`

	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	Tax        decimal.Decimal `db:"tax" json:"tax"`
	Total      decimal.Decimal `db:"total" json:"total"`
	AmountPaid decimal.Decimal `db:"amount_paid" json:"amount_paid"`

	IssueDate time.Time  `db:"issue_date" json:"issue_date"`
	DueDate   time.Time  `db:"due_date" json:"due_date"`
	PaidAt    *time.Time `db:"paid_at" json:"paid_at"`

	// ChargeAttempts counts dunning charge attempts against this invoice
	ChargeAttempts int `db:"charge_attempts" json:"charge_attempts"`

	// LastAttemptAt is when the last dunning charge attempt was made
	LastAttemptAt *time.Time `db:"last_attempt_at" json:"last_attempt_at"`

	types.BaseModel
}

// AmountDue is derived, never stored: total minus paid, floored at zero.
func (i *Invoice) AmountDue() decimal.Decimal {
	due := i.Total.Sub(i.AmountPaid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// ApplyPayment records a captured amount and settles the invoice when the
// balance reaches zero.
func (i *Invoice) ApplyPayment(amount decimal.Decimal, paidAt time.Time) {
	i.AmountPaid = i.AmountPaid.Add(amount)
	if i.AmountPaid.GreaterThanOrEqual(i.Total) {
		i.InvoiceStatus = types.InvoiceStatusPaid
		t := paidAt
		i.PaidAt = &t
	}
}

// IsSettled reports whether nothing further is collectible.
func (i *Invoice) IsSettled() bool {
	return i.InvoiceStatus == types.InvoiceStatusPaid || i.InvoiceStatus == types.InvoiceStatusVoid
}
