package service

import (
	"github.com/stackbill/stackbill/internal/domain/proration"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/idempotency"
	"github.com/stackbill/stackbill/internal/testutil"
)

// newTestParams assembles ServiceParams over the suite's in-memory stores.
// The configuration is copied so individual tests can tweak knobs without
// leaking into the rest of the suite.
func newTestParams(s *testutil.BaseServiceTestSuite, gateways *gateway.Registry) ServiceParams {
	stores := s.GetStores()
	cfg := *s.GetConfig()
	return ServiceParams{
		Logger:            s.GetLogger(),
		Config:            &cfg,
		DB:                s.GetDB(),
		Cache:             s.GetCache(),
		Gateways:          gateways,
		ProrationCalc:     proration.NewCalculator(),
		IdempGen:          idempotency.NewGenerator(),
		SubRepo:           stores.SubscriptionRepo,
		InvoiceRepo:       stores.InvoiceRepo,
		OrderRepo:         stores.OrderRepo,
		PaymentRepo:       stores.PaymentRepo,
		PaymentMethodRepo: stores.PaymentMethodRepo,
		WebhookEventRepo:  stores.WebhookEventRepo,
		CouponRepo:        stores.CouponRepo,
		EntityRepo:        stores.EntityRepo,
		PermissionRepo:    stores.PermissionRepo,
		PermissionReqRepo: stores.PermissionRequestRepo,
		ReferralRepo:      stores.ReferralRepo,
		CommissionRepo:    stores.CommissionRepo,
		PayoutRepo:        stores.PayoutRepo,
		Entitlements:      NewNoopEntitlementService(s.GetLogger()),
		Notifications:     NewNoopNotificationService(s.GetLogger()),
		Tax:               NewZeroTaxCalculator(),
	}
}
