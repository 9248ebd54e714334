package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/stackbill/stackbill/internal/cache"
	"github.com/stackbill/stackbill/internal/config"
	"github.com/stackbill/stackbill/internal/domain/proration"
	"github.com/stackbill/stackbill/internal/dto"
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
	time.Local = time.UTC
}

const usage = `Usage: jobs <command> [flags]

Commands:
  dunning          Run dunning stages (all by default, one with --stage)
  sync             Reconcile live subscriptions against their gateways
  rates            Refresh exchange rates
  cleanup-orders   Cancel stale pending orders
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	svcs, cleanup, err := bootstrap()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := runCommand(ctx, svcs, os.Args[1], os.Args[2:]); err != nil {
		svcs.logger.Errorw("job failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type services struct {
	logger        *logger.Logger
	dunning       service.DunningService
	subscriptions service.SubscriptionService
	orders        service.OrderService
	referrals     service.ReferralService
	currency      service.CurrencyService
}

func runCommand(ctx context.Context, svcs *services, command string, args []string) error {
	switch command {
	case "dunning":
		fs := flag.NewFlagSet("dunning", flag.ExitOnError)
		stage := fs.String("stage", "", "Run only this stage (retry, pause, suspend, cancel, expire)")
		dryRun := fs.Bool("dry-run", false, "Report without mutating anything")
		fs.Parse(args)

		if *stage != "" {
			summary, err := svcs.dunning.RunStage(ctx, *stage, *dryRun)
			if err != nil {
				return err
			}
			printSummaries(svcs.logger, summary)
			return nil
		}
		summaries, err := svcs.dunning.RunAll(ctx, *dryRun)
		if err != nil {
			return err
		}
		printSummaries(svcs.logger, summaries...)
		return nil

	case "sync":
		fs := flag.NewFlagSet("sync", flag.ExitOnError)
		id := fs.String("id", "", "Reconcile only this subscription")
		dryRun := fs.Bool("dry-run", false, "Report without mutating anything")
		fs.Parse(args)

		summary, err := svcs.subscriptions.SyncWithGateway(ctx, *id, *dryRun)
		if err != nil {
			return err
		}
		printSummaries(svcs.logger, summary)
		return nil

	case "rates":
		fs := flag.NewFlagSet("rates", flag.ExitOnError)
		force := fs.Bool("force", false, "Refresh even when the cache has not expired")
		fs.Parse(args)

		count, err := svcs.currency.RefreshRates(ctx, *force)
		if err != nil {
			return err
		}
		svcs.logger.Infow("rates refreshed", "count", count)
		return nil

	case "cleanup-orders":
		fs := flag.NewFlagSet("cleanup-orders", flag.ExitOnError)
		ttl := fs.Duration("ttl", 24*time.Hour, "Age after which a pending order is considered abandoned")
		dryRun := fs.Bool("dry-run", false, "Report without mutating anything")
		fs.Parse(args)

		summary, err := svcs.orders.CleanupExpired(ctx, *ttl, *dryRun)
		if err != nil {
			return err
		}
		printSummaries(svcs.logger, summary)
		return nil

	case "mature-referrals":
		fs := flag.NewFlagSet("mature-referrals", flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "Report without mutating anything")
		fs.Parse(args)

		summary, err := svcs.referrals.MaturationSweep(ctx, *dryRun)
		if err != nil {
			return err
		}
		printSummaries(svcs.logger, summary)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printSummaries(log *logger.Logger, summaries ...*dto.SweepSummary) {
	for _, s := range summaries {
		log.Infow("sweep finished",
			"stage", s.Stage,
			"dry_run", s.DryRun,
			"examined", s.Examined,
			"affected", s.Affected,
			"failed", s.Failed)
	}
}

func bootstrap() (*services, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, err
	}

	lg, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	sqlxDB, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	db := postgres.NewClient(sqlxDB, lg)

	var gateways []gateway.Gateway
	if cfg.Gateways.Stripe.APIKey != "" {
		gw, err := stripe.NewGateway(cfg.Gateways.Stripe, lg)
		if err != nil {
			return nil, nil, err
		}
		gateways = append(gateways, gw)
	}
	if cfg.Gateways.BTCPay.ServerURL != "" {
		gw, err := btcpay.NewGateway(cfg.Gateways.BTCPay, lg)
		if err != nil {
			return nil, nil, err
		}
		gateways = append(gateways, gw)
	}

	params := service.NewServiceParams(
		lg,
		cfg,
		db,
		cache.NewInMemoryCache(),
		gateway.NewRegistry(gateways...),
		proration.NewCalculator(),
		idempotency.NewGenerator(),
		repository.NewSubscriptionRepository(db, lg),
		repository.NewInvoiceRepository(db, lg),
		repository.NewOrderRepository(db, lg),
		repository.NewPaymentRepository(db, lg),
		repository.NewPaymentMethodRepository(db, lg),
		repository.NewWebhookEventRepository(db, lg),
		repository.NewCouponRepository(db, lg),
		repository.NewEntityRepository(db, lg),
		repository.NewPermissionRepository(db, lg),
		repository.NewPermissionRequestRepository(db, lg),
		repository.NewReferralRepository(db, lg),
		repository.NewCommissionRepository(db, lg),
		repository.NewPayoutRepository(db, lg),
		service.NewNoopEntitlementService(lg),
		service.NewNoopNotificationService(lg),
		service.NewZeroTaxCalculator(),
		rates.NewHTTPProvider(cfg, lg),
	)

	coupons := service.NewCouponService(params)
	currency := service.NewCurrencyService(params)
	invoices := service.NewInvoiceService(params)
	subscriptions := service.NewSubscriptionService(params, invoices)
	orders := service.NewOrderService(params, coupons, currency)
	referrals := service.NewReferralService(params)
	dunning := service.NewDunningService(params, invoices, subscriptions)

	cleanup := func() {
		sqlxDB.Close()
	}
	return &services{
		logger:        lg,
		dunning:       dunning,
		subscriptions: subscriptions,
		orders:        orders,
		referrals:     referrals,
		currency:      currency,
	}, cleanup, nil
}
