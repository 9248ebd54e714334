package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/stackbill/stackbill/internal/api"
	v1 "github.com/stackbill/stackbill/internal/api/v1"
	"github.com/stackbill/stackbill/internal/cache"
	"github.com/stackbill/stackbill/internal/config"
	"github.com/stackbill/stackbill/internal/domain/proration"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/gateway/btcpay"
	"github.com/stackbill/stackbill/internal/gateway/stripe"
	"github.com/stackbill/stackbill/internal/idempotency"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/rates"
	"github.com/stackbill/stackbill/internal/repository"
	"github.com/stackbill/stackbill/internal/service"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			provideLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			postgres.NewClient,

			// Gateways
			provideGatewayRegistry,

			// Domain helpers
			proration.NewCalculator,
			idempotency.NewGenerator,
			provideRateProvider,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewInvoiceRepository,
			repository.NewOrderRepository,
			repository.NewPaymentRepository,
			repository.NewPaymentMethodRepository,
			repository.NewWebhookEventRepository,
			repository.NewCouponRepository,
			repository.NewEntityRepository,
			repository.NewPermissionRepository,
			repository.NewPermissionRequestRepository,
			repository.NewReferralRepository,
			repository.NewCommissionRepository,
			repository.NewPayoutRepository,

			// Collaborators
			service.NewNoopEntitlementService,
			service.NewNoopNotificationService,
			service.NewZeroTaxCalculator,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewCouponService,
			service.NewCurrencyService,
			service.NewOrderService,
			service.NewInvoiceService,
			service.NewSubscriptionService,
			service.NewSubscriptionChangeService,
			service.NewDunningService,
			service.NewPaymentService,
			service.NewReferralService,
			service.NewPermissionService,
			service.NewWebhookService,
		),
	)

	// API and background sweeps
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			startServer,
			startSweeps,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideLogger(cfg *config.Configuration) (*logger.Logger, error) {
	return logger.NewLogger(cfg.Logging.Level)
}

func provideGatewayRegistry(cfg *config.Configuration, log *logger.Logger) (*gateway.Registry, error) {
	var gateways []gateway.Gateway

	if cfg.Gateways.Stripe.APIKey != "" {
		gw, err := stripe.NewGateway(cfg.Gateways.Stripe, log)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	if cfg.Gateways.BTCPay.ServerURL != "" {
		gw, err := btcpay.NewGateway(cfg.Gateways.BTCPay, log)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}

	return gateway.NewRegistry(gateways...), nil
}

func provideRateProvider(cfg *config.Configuration, log *logger.Logger) service.RateProvider {
	return rates.NewHTTPProvider(cfg, log)
}

func provideHandlers(
	log *logger.Logger,
	webhookService service.WebhookService,
	orderService service.OrderService,
	subscriptionService service.SubscriptionService,
	changeService service.SubscriptionChangeService,
	invoiceService service.InvoiceService,
	paymentService service.PaymentService,
	couponService service.CouponService,
	referralService service.ReferralService,
	permissionService service.PermissionService,
) api.Handlers {
	return api.Handlers{
		Webhook:      v1.NewWebhookHandler(webhookService, log),
		Order:        v1.NewOrderHandler(orderService, log),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, changeService, log),
		Invoice:      v1.NewInvoiceHandler(invoiceService, log),
		Payment:      v1.NewPaymentHandler(paymentService, log),
		Coupon:       v1.NewCouponHandler(couponService, log),
		Referral:     v1.NewReferralHandler(referralService, log),
		Permission:   v1.NewPermissionHandler(permissionService, log),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, permissionService service.PermissionService, log *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, permissionService, log)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

// startSweeps schedules the recurring billing sweeps. Every sweep is
// idempotent, so overlapping or repeated runs are safe.
func startSweeps(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	dunningService service.DunningService,
	subscriptionService service.SubscriptionService,
	referralService service.ReferralService,
	currencyService service.CurrencyService,
	log *logger.Logger,
) {
	c := cron.New()

	// Renewal invoices first, then dunning escalation over whatever is
	// still unpaid.
	mustSchedule(c, log, "@hourly", "renewal sweep", func(ctx context.Context) error {
		_, err := subscriptionService.RenewalSweep(ctx, false)
		return err
	})
	mustSchedule(c, log, "@hourly", "dunning sweep", func(ctx context.Context) error {
		_, err := dunningService.RunAll(ctx, false)
		return err
	})
	mustSchedule(c, log, "@daily", "referral maturation", func(ctx context.Context) error {
		_, err := referralService.MaturationSweep(ctx, false)
		return err
	})

	refreshEvery := time.Duration(cfg.Currency.RefreshIntervalMins) * time.Minute
	c.Schedule(cron.Every(refreshEvery), sweepJob(log, "rate refresh", func(ctx context.Context) error {
		_, err := currencyService.RefreshRates(ctx, false)
		return err
	}))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting background sweeps")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func mustSchedule(c *cron.Cron, log *logger.Logger, spec, name string, run func(context.Context) error) {
	if _, err := c.AddJob(spec, sweepJob(log, name, run)); err != nil {
		log.Fatalf("Failed to schedule %s: %v", name, err)
	}
}

func sweepJob(log *logger.Logger, name string, run func(context.Context) error) cron.Job {
	return cron.FuncJob(func() {
		ctx := context.Background()
		if err := run(ctx); err != nil {
			log.Errorw("sweep failed", "sweep", name, "error", err)
		}
	})
}
