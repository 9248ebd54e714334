package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/types"
)

type Payment struct {
	// ID is the unique identifier for the payment
	ID string `db:"id" json:"id"`

	// OrderID links the payment to an order, if any
	OrderID string `db:"order_id" json:"order_id"`

	// InvoiceID links the payment to an invoice, if any
	InvoiceID string `db:"invoice_id" json:"invoice_id"`

	// Gateway is the payment gateway that captured the payment
	Gateway types.PaymentGateway `db:"gateway" json:"gateway"`

	// GatewayPaymentID is the external correlation key, unique per gateway
	GatewayPaymentID string `db:"gateway_payment_id" json:"gateway_payment_id"`

	// PaymentStatus is the state of the payment
	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`

	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Currency string          `db:"currency" json:"currency"`

	PaidAt *time.Time `db:"paid_at" json:"paid_at"`

	// GatewayResponse is the raw gateway payload kept for audit. Never
	// surfaced to callers.
	GatewayResponse string `db:"gateway_response" json:"-"`

	types.BaseModel
}

// PaymentMethod is a stored payment instrument at a gateway. Rows are
// soft-deactivated on detach, never deleted, to keep the audit trail.
type PaymentMethod struct {
	// ID is the unique identifier for the payment method
	ID string `db:"id" json:"id"`

	// Gateway is the gateway holding the instrument
	Gateway types.PaymentGateway `db:"gateway" json:"gateway"`

	// GatewayPaymentMethodID is the instrument identifier at the gateway,
	// unique per gateway
	GatewayPaymentMethodID string `db:"gateway_payment_method_id" json:"gateway_payment_method_id"`

	// MethodType is the kind of instrument
	MethodType types.PaymentMethodType `db:"method_type" json:"method_type"`

	// IsDefault marks the instrument used for off-session charges
	IsDefault bool `db:"is_default" json:"is_default"`

	// Last4 is the card suffix for display, when applicable
	Last4 string `db:"last4" json:"last4"`

	// ExpiryMonth/ExpiryYear are card expiry fields, when applicable
	ExpiryMonth int `db:"expiry_month" json:"expiry_month"`
	ExpiryYear  int `db:"expiry_year" json:"expiry_year"`

	types.BaseModel
}
