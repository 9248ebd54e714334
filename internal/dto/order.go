package dto

import (
	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/order"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// CreateOrderRequest starts a checkout: priced line items, an optional
// coupon, and the gateway that will collect payment.
type CreateOrderRequest struct {
	Gateway         types.PaymentGateway `json:"gateway" binding:"required"`
	Currency        string               `json:"currency" binding:"required"`
	DisplayCurrency string               `json:"display_currency"`
	CouponCode      string               `json:"coupon_code"`
	SuccessURL      string               `json:"success_url" binding:"required"`
	CancelURL       string               `json:"cancel_url" binding:"required"`

	Items []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest is one priced line of a checkout.
type OrderItemRequest struct {
	SKU       string          `json:"sku" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
	Quantity  int             `json:"quantity"`

	// BillingCycle marks the item as recurring; paying the order provisions
	// a subscription for it.
	BillingCycle types.BillingCycle `json:"billing_cycle"`
}

func (r *CreateOrderRequest) Validate() error {
	for i, item := range r.Items {
		if item.UnitPrice.IsNegative() {
			return ierr.NewError("negative unit price").
				WithHintf("Item %d has a negative unit price", i).
				Mark(ierr.ErrValidation)
		}
		if item.BillingCycle != "" && !item.BillingCycle.Validate() {
			return ierr.NewError("invalid billing cycle").
				WithHintf("Item %d has an invalid billing cycle", i).
				Mark(ierr.ErrValidation)
		}
	}
	if r.Gateway != types.PaymentGatewayStripe && r.Gateway != types.PaymentGatewayBTCPay {
		return ierr.NewError("unknown gateway").
			WithHint("Gateway must be stripe or btcpay").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// OrderResponse is an order plus the checkout URL to redirect the buyer to.
type OrderResponse struct {
	*order.Order
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// ListOrdersResponse is a paginated order listing.
type ListOrdersResponse struct {
	Items []*order.Order `json:"items"`
	Total int            `json:"total"`
}
