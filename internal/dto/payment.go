package dto

import (
	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/domain/payment"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// CreateSetupSessionRequest starts a flow to save a payment method.
type CreateSetupSessionRequest struct {
	Gateway   types.PaymentGateway `json:"gateway" binding:"required"`
	ReturnURL string               `json:"return_url" binding:"required"`
}

// SetupSessionResponse carries the URL to redirect the customer to.
type SetupSessionResponse struct {
	URL string `json:"url"`
}

// RefundRequest refunds a captured payment, fully when Amount is zero.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (r *RefundRequest) Validate() error {
	if r.Amount.IsNegative() {
		return ierr.NewError("negative refund amount").
			WithHint("Refund amount cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentResponse is the API shape of a payment.
type PaymentResponse struct {
	*payment.Payment
}

// PaymentMethodResponse is the API shape of a stored instrument.
type PaymentMethodResponse struct {
	*payment.PaymentMethod
}

// ListPaymentMethodsResponse lists a workspace's stored instruments.
type ListPaymentMethodsResponse struct {
	Items []*payment.PaymentMethod `json:"items"`
	Total int                      `json:"total"`
}

// InvoiceResponse is the API shape of an invoice, with the derived balance
// made explicit.
type InvoiceResponse struct {
	*invoice.Invoice
	AmountDue decimal.Decimal `json:"amount_due"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv, AmountDue: inv.AmountDue()}
}

// ListInvoicesResponse is a paginated invoice listing.
type ListInvoicesResponse struct {
	Items []*InvoiceResponse `json:"items"`
	Total int                `json:"total"`
}
