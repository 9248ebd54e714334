package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stackbill/stackbill/internal/cache"
	"github.com/stackbill/stackbill/internal/config"
	"github.com/stackbill/stackbill/internal/domain/coupon"
	"github.com/stackbill/stackbill/internal/domain/entity"
	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/referral"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	"github.com/stackbill/stackbill/internal/domain/webhookevent"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo      subscription.Repository
	InvoiceRepo           invoice.Repository
	OrderRepo             order.Repository
	PaymentRepo           payment.Repository
	PaymentMethodRepo     payment.MethodRepository
	WebhookEventRepo      webhookevent.Repository
	CouponRepo            coupon.Repository
	EntityRepo            entity.Repository
	PermissionRepo        entity.PermissionRepository
	PermissionRequestRepo entity.PermissionRequestRepository
	ReferralRepo          referral.Repository
	CommissionRepo        referral.CommissionRepository
	PayoutRepo            referral.PayoutRepository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	cache  cache.Cache
	db     postgres.IClient
	logger *logger.Logger
	config *config.Configuration
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	var err error
	s.config = config.GetDefaultConfig()
	s.logger, err = logger.NewLogger(types.LogLevelInfo)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
	s.db = NewMockPostgresClient(s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.cache = cache.NewInMemoryCache()
	s.now = time.Now().UTC()
}

func (s *BaseServiceTestSuite) setupStores() {
	referrals := NewInMemoryReferralStore()
	s.stores = Stores{
		SubscriptionRepo:      NewInMemorySubscriptionStore(),
		InvoiceRepo:           NewInMemoryInvoiceStore(),
		OrderRepo:             NewInMemoryOrderStore(),
		PaymentRepo:           NewInMemoryPaymentStore(),
		PaymentMethodRepo:     NewInMemoryPaymentMethodStore(),
		WebhookEventRepo:      NewInMemoryWebhookEventStore(),
		CouponRepo:            NewInMemoryCouponStore(),
		EntityRepo:            NewInMemoryEntityStore(),
		PermissionRepo:        NewInMemoryPermissionStore(),
		PermissionRequestRepo: NewInMemoryPermissionRequestStore(),
		ReferralRepo:          referrals,
		CommissionRepo:        NewInMemoryCommissionStore(referrals),
		PayoutRepo:            NewInMemoryPayoutStore(),
	}
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
