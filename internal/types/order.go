package types

import "time"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderFilter narrows order list queries.
type OrderFilter struct {
	WorkspaceID   string
	Gateway       PaymentGateway
	Statuses      []OrderStatus
	CreatedBefore *time.Time
	Limit         int
}
