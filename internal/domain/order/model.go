package order

import (
	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/types"
)

type Order struct {
	// ID is the unique identifier for the order
	ID string `db:"id" json:"id"`

	// OrderNumber is the unique human-facing number, e.g. ORD-X2QA91
	OrderNumber string `db:"order_number" json:"order_number"`

	// OrderStatus is the fulfilment state of the order
	OrderStatus types.OrderStatus `db:"order_status" json:"order_status"`

	// Gateway is the payment gateway collecting this order
	Gateway types.PaymentGateway `db:"gateway" json:"gateway"`

	// GatewaySessionID is the checkout session identifier at the gateway.
	// Unique per gateway; the idempotent lookup key for webhook correlation.
	GatewaySessionID string `db:"gateway_session_id" json:"gateway_session_id"`

	// Currency is the settlement currency in uppercase 3 letter ISO codes
	Currency string `db:"currency" json:"currency"`

	Subtotal decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount decimal.Decimal `db:"discount" json:"discount"`
	Tax      decimal.Decimal `db:"tax" json:"tax"`
	Total    decimal.Decimal `db:"total" json:"total"`

	// CouponCode is the coupon applied at checkout, if any
	CouponCode string `db:"coupon_code" json:"coupon_code"`

	// DisplayCurrency is the currency the buyer saw, when it differs from
	// the settlement currency
	DisplayCurrency string `db:"display_currency" json:"display_currency"`

	// ExchangeRate is the base->display rate captured at checkout time
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`

	// BaseCurrencyTotal is the total converted to the base currency
	BaseCurrencyTotal decimal.Decimal `db:"base_currency_total" json:"base_currency_total"`

	Items []*OrderItem `db:"-" json:"items"`

	types.BaseModel
}

type OrderItem struct {
	// ID is the unique identifier for the order item
	ID string `db:"id" json:"id"`

	// OrderID is the parent order
	OrderID string `db:"order_id" json:"order_id"`

	// SKU is the compound SKU string for this line
	SKU string `db:"sku" json:"sku"`

	// Name is the display name captured at purchase time
	Name string `db:"name" json:"name"`

	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`

	// BillingCycle is set when the item provisions a subscription
	BillingCycle types.BillingCycle `db:"billing_cycle" json:"billing_cycle"`

	types.BaseModel
}

// IsPaid reports whether the order has already been fulfilled. Webhook
// handlers short-circuit on it to stay idempotent under replay.
func (o *Order) IsPaid() bool {
	return o.OrderStatus == types.OrderStatusPaid
}
