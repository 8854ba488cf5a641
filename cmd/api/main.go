package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/leadpulse/leadpulse-backend/api/routes"
	"github.com/leadpulse/leadpulse-backend/internal/audit"
	"github.com/leadpulse/leadpulse-backend/internal/balances"
	"github.com/leadpulse/leadpulse-backend/internal/billing"
	"github.com/leadpulse/leadpulse-backend/internal/holds"
	"github.com/leadpulse/leadpulse-backend/internal/ledger"
	"github.com/leadpulse/leadpulse-backend/internal/notifications"
	"github.com/leadpulse/leadpulse-backend/internal/payments"
	"github.com/leadpulse/leadpulse-backend/internal/retries"
	paymentwebhook "github.com/leadpulse/leadpulse-backend/internal/webhooks/payment"
	"github.com/leadpulse/leadpulse-backend/pkg/config"
	"github.com/leadpulse/leadpulse-backend/pkg/db"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
	"github.com/leadpulse/leadpulse-backend/pkg/migrate"
	"github.com/leadpulse/leadpulse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	notificationService, err := notifications.NewService(logg, notifications.NewRepository(dbClient.DB()))
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

	balanceService, err := balances.NewService(balances.ServiceParams{
		Logger: logg,
		Ledger: ledgerService,
		Holds:  holdService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create balance service", err)
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

	billingRepo := billing.NewRepository(dbClient.DB())
	billingService, err := billing.NewService(billing.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     billingRepo,
		Ledger:   ledgerService,
		Gateway:  gateway,
		Audit:    auditService,
		Notifier: notificationService,
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
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retry service", err)
		os.Exit(1)
	}

	webhookService, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Logger:  logg,
		Billing: billingService,
		Store:   billingRepo,
		Audit:   auditService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := paymentwebhook.NewIdempotencyGuard(redisClient, cfg.Billing.WebhookEventTTL, "payment-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Holds:         holdService,
			Balances:      balanceService,
			Ledger:        ledgerService,
			Billing:       billingService,
			Renewals:      billingService,
			Retries:       retryService,
			Notifications: notificationService,
			Audit:         auditService,
			Webhook:       webhookService,
			WebhookGuard:  webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
