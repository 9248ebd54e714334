package types

// WebhookEventStatus tracks the processing lifecycle of an inbound
// gateway webhook event.
type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
	WebhookEventStatusSkipped   WebhookEventStatus = "skipped"
)

// Canonical event types every gateway payload is normalized to before
// dispatch. Unmapped gateway types pass through unchanged and land in the
// reconciliation engine's default branch.
const (
	WebhookCheckoutCompleted     = "checkout.completed"
	WebhookInvoicePaid           = "invoice.paid"
	WebhookInvoiceFailed         = "invoice.failed"
	WebhookInvoiceExpired        = "invoice.expired"
	WebhookInvoiceProcessing     = "invoice.processing"
	WebhookInvoiceCreated        = "invoice.created"
	WebhookSubscriptionUpdated   = "subscription.updated"
	WebhookSubscriptionDeleted   = "subscription.deleted"
	WebhookPaymentMethodAttached = "payment_method.attached"
	WebhookPaymentMethodDetached = "payment_method.detached"
	WebhookPaymentRefunded       = "payment.refunded"
	WebhookUnknown               = "unknown"
)
