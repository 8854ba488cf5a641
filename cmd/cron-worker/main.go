package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leadpulse/leadpulse-backend/internal/audit"
	"github.com/leadpulse/leadpulse-backend/internal/billing"
	"github.com/leadpulse/leadpulse-backend/internal/cron"
	"github.com/leadpulse/leadpulse-backend/internal/holds"
	"github.com/leadpulse/leadpulse-backend/internal/ledger"
	"github.com/leadpulse/leadpulse-backend/internal/notifications"
	"github.com/leadpulse/leadpulse-backend/internal/payments"
	"github.com/leadpulse/leadpulse-backend/internal/retries"
	"github.com/leadpulse/leadpulse-backend/pkg/config"
	"github.com/leadpulse/leadpulse-backend/pkg/db"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
	"github.com/leadpulse/leadpulse-backend/pkg/metrics"
	"github.com/leadpulse/leadpulse-backend/pkg/migrate"
	"github.com/leadpulse/leadpulse-backend/pkg/redis"
)

const lockKeyFormat = "lp:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DB:   dbClient,
		Repo: ledger.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(audit.ServiceParams{
		Logger: logg,
		Repo:   audit.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	notificationRepo := notifications.NewRepository(dbClient.DB())
	notificationService, err := notifications.NewService(logg, notificationRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	holdService, err := holds.NewService(holds.ServiceParams{
		Logger:             logg,
		DB:                 dbClient,
		Repo:               holds.NewRepository(dbClient.DB()),
		Ledger:             ledgerService,
		Audit:              auditService,
		Notifier:           notificationService,
		LowCreditThreshold: cfg.Billing.LowCreditThreshold,
		DefaultTTL:         cfg.Billing.HoldTTL,
		MaxTTL:             cfg.Billing.HoldMaxTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create hold service", err)
		os.Exit(1)
	}

	gateway, err := payments.NewClient(
		cfg.PaymentGateway.BaseURL,
		cfg.PaymentGateway.APIKey,
		payments.WithTimeout(cfg.PaymentGateway.Timeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	passMetrics := metrics.NewBillingPassMetrics(prometheus.DefaultRegisterer)

	billingRepo := billing.NewRepository(dbClient.DB())
	billingService, err := billing.NewService(billing.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     billingRepo,
		Ledger:   ledgerService,
		Gateway:  gateway,
		Audit:    auditService,
		Notifier: notificationService,
		Metrics:  passMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	retryService, err := retries.NewService(retries.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     retries.NewRepository(dbClient.DB()),
		Billing:  billingService,
		Store:    billingRepo,
		Gateway:  gateway,
		Audit:    auditService,
		Notifier: notificationService,
		Metrics:  passMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry service", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	registerJob := func(job cron.Job, err error) {
		if err != nil {
			logg.Error(context.Background(), "failed to create cron job", err)
			os.Exit(1)
		}
		registry.Register(job)
	}
	registerJob(cron.NewRenewalJob(cron.RenewalJobParams{
		Logger:    logg,
		Billing:   billingService,
		BatchSize: cfg.Billing.RenewalBatchSize,
	}))
	registerJob(cron.NewRetryJob(cron.RetryJobParams{
		Logger:    logg,
		Retries:   retryService,
		BatchSize: cfg.Billing.RenewalBatchSize,
	}))
	registerJob(cron.NewHoldCleanupJob(cron.HoldCleanupJobParams{
		Logger: logg,
		Holds:  holdService,
	}))
	registerJob(cron.NewLedgerReconcileJob(cron.LedgerReconcileJobParams{
		Logger: logg,
		Ledger: ledgerService,
	}))
	registerJob(cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notificationRepo,
	}))

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Scheduler.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
