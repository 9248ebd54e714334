package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/logger"
)

// EntitlementService is the provisioning boundary. Billing decides WHEN a
// workspace gains or loses access; the entitlement layer decides WHAT that
// means and is invoked only after the billing state change has committed.
type EntitlementService interface {
	// GrantPackage provisions the package's entitlements for the workspace.
	GrantPackage(ctx context.Context, workspaceID string, planCode string) error

	// RevokePackage removes the package's entitlements. Used by dunning
	// suspension and by cancellation at period end.
	RevokePackage(ctx context.Context, workspaceID string, planCode string) error

	// ExpireCycleBoundBoosts removes time-boxed boosts that do not survive
	// a period boundary. Invoked on renewal and on expiry.
	ExpireCycleBoundBoosts(ctx context.Context, workspaceID string) error

	// InvalidateCache drops cached entitlement state for the workspace.
	InvalidateCache(ctx context.Context, workspaceID string)
}

// NotificationService delivers customer-facing messages. Send failures are
// logged, never propagated: a billing state change must not roll back
// because an email bounced.
type NotificationService interface {
	PaymentFailed(ctx context.Context, workspaceID string, invoiceID string, attempt int)
	SubscriptionPaused(ctx context.Context, workspaceID string, subscriptionID string)
	SubscriptionSuspended(ctx context.Context, workspaceID string, subscriptionID string)
	SubscriptionCancelled(ctx context.Context, workspaceID string, subscriptionID string)
	RenewalUpcoming(ctx context.Context, workspaceID string, subscriptionID string)
}

// TaxCalculator computes tax for an order subtotal after discounts.
type TaxCalculator interface {
	Calculate(ctx context.Context, workspaceID string, currency string, taxable decimal.Decimal) (decimal.Decimal, error)
}

// RateProvider fetches current exchange rates from an external source,
// keyed by currency code against the base currency.
type RateProvider interface {
	FetchRates(ctx context.Context, baseCurrency string) (map[string]decimal.Decimal, error)
}

// noopEntitlements is the default when no entitlement backend is wired.
type noopEntitlements struct {
	logger *logger.Logger
}

func NewNoopEntitlementService(logger *logger.Logger) EntitlementService {
	return &noopEntitlements{logger: logger}
}

func (s *noopEntitlements) GrantPackage(ctx context.Context, workspaceID string, planCode string) error {
	s.logger.Debugw("entitlement grant skipped", "workspace_id", workspaceID, "plan_code", planCode)
	return nil
}

func (s *noopEntitlements) RevokePackage(ctx context.Context, workspaceID string, planCode string) error {
	s.logger.Debugw("entitlement revoke skipped", "workspace_id", workspaceID, "plan_code", planCode)
	return nil
}

func (s *noopEntitlements) ExpireCycleBoundBoosts(ctx context.Context, workspaceID string) error {
	return nil
}

func (s *noopEntitlements) InvalidateCache(ctx context.Context, workspaceID string) {}

// noopNotifications logs instead of sending.
type noopNotifications struct {
	logger *logger.Logger
}

func NewNoopNotificationService(logger *logger.Logger) NotificationService {
	return &noopNotifications{logger: logger}
}

func (s *noopNotifications) PaymentFailed(ctx context.Context, workspaceID string, invoiceID string, attempt int) {
	s.logger.Infow("notification: payment failed", "workspace_id", workspaceID, "invoice_id", invoiceID, "attempt", attempt)
}

func (s *noopNotifications) SubscriptionPaused(ctx context.Context, workspaceID string, subscriptionID string) {
	s.logger.Infow("notification: subscription paused", "workspace_id", workspaceID, "subscription_id", subscriptionID)
}

func (s *noopNotifications) SubscriptionSuspended(ctx context.Context, workspaceID string, subscriptionID string) {
	s.logger.Infow("notification: subscription suspended", "workspace_id", workspaceID, "subscription_id", subscriptionID)
}

func (s *noopNotifications) SubscriptionCancelled(ctx context.Context, workspaceID string, subscriptionID string) {
	s.logger.Infow("notification: subscription cancelled", "workspace_id", workspaceID, "subscription_id", subscriptionID)
}

func (s *noopNotifications) RenewalUpcoming(ctx context.Context, workspaceID string, subscriptionID string) {
	s.logger.Infow("notification: renewal upcoming", "workspace_id", workspaceID, "subscription_id", subscriptionID)
}

// zeroTax applies no tax. Tax policy is owned by the storefront layer.
type zeroTax struct{}

func NewZeroTaxCalculator() TaxCalculator {
	return zeroTax{}
}

func (zeroTax) Calculate(ctx context.Context, workspaceID string, currency string, taxable decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
