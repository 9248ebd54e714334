package service

import (
	"github.com/stackbill/stackbill/internal/cache"
	"github.com/stackbill/stackbill/internal/config"
	"github.com/stackbill/stackbill/internal/domain/coupon"
	"github.com/stackbill/stackbill/internal/domain/entity"
	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/proration"
	"github.com/stackbill/stackbill/internal/domain/referral"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	"github.com/stackbill/stackbill/internal/domain/webhookevent"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/idempotency"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	Gateways      *gateway.Registry
	ProrationCalc proration.Calculator
	IdempGen      *idempotency.Generator

	// Repositories
	SubRepo           subscription.Repository
	InvoiceRepo       invoice.Repository
	OrderRepo         order.Repository
	PaymentRepo       payment.Repository
	PaymentMethodRepo payment.MethodRepository
	WebhookEventRepo  webhookevent.Repository
	CouponRepo        coupon.Repository
	EntityRepo        entity.Repository
	PermissionRepo    entity.PermissionRepository
	PermissionReqRepo entity.PermissionRequestRepository
	ReferralRepo      referral.Repository
	CommissionRepo    referral.CommissionRepository
	PayoutRepo        referral.PayoutRepository

	// Collaborators
	Entitlements  EntitlementService
	Notifications NotificationService
	Tax           TaxCalculator
	Rates         RateProvider
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cacheStore cache.Cache,
	gateways *gateway.Registry,
	prorationCalc proration.Calculator,
	idempGen *idempotency.Generator,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	orderRepo order.Repository,
	paymentRepo payment.Repository,
	paymentMethodRepo payment.MethodRepository,
	webhookEventRepo webhookevent.Repository,
	couponRepo coupon.Repository,
	entityRepo entity.Repository,
	permissionRepo entity.PermissionRepository,
	permissionReqRepo entity.PermissionRequestRepository,
	referralRepo referral.Repository,
	commissionRepo referral.CommissionRepository,
	payoutRepo referral.PayoutRepository,
	entitlements EntitlementService,
	notifications NotificationService,
	tax TaxCalculator,
	rates RateProvider,
) ServiceParams {
	return ServiceParams{
		Logger:            logger,
		Config:            config,
		DB:                db,
		Cache:             cacheStore,
		Gateways:          gateways,
		ProrationCalc:     prorationCalc,
		IdempGen:          idempGen,
		SubRepo:           subRepo,
		InvoiceRepo:       invoiceRepo,
		OrderRepo:         orderRepo,
		PaymentRepo:       paymentRepo,
		PaymentMethodRepo: paymentMethodRepo,
		WebhookEventRepo:  webhookEventRepo,
		CouponRepo:        couponRepo,
		EntityRepo:        entityRepo,
		PermissionRepo:    permissionRepo,
		PermissionReqRepo: permissionReqRepo,
		ReferralRepo:      referralRepo,
		CommissionRepo:    commissionRepo,
		PayoutRepo:        payoutRepo,
		Entitlements:      entitlements,
		Notifications:     notifications,
		Tax:               tax,
		Rates:             rates,
	}
}
