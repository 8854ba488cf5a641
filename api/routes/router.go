package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadpulse/leadpulse-backend/api/controllers"
	webhookcontrollers "github.com/leadpulse/leadpulse-backend/api/controllers/webhooks"
	"github.com/leadpulse/leadpulse-backend/api/middleware"
	"github.com/leadpulse/leadpulse-backend/internal/notifications"
	paymentwebhook "github.com/leadpulse/leadpulse-backend/internal/webhooks/payment"
	"github.com/leadpulse/leadpulse-backend/pkg/config"
	"github.com/leadpulse/leadpulse-backend/pkg/db"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
	"github.com/leadpulse/leadpulse-backend/pkg/redis"
)

// Services carries everything the HTTP surface depends on.
type Services struct {
	Holds         controllers.HoldService
	Balances      controllers.BalanceService
	Ledger        controllers.LedgerReader
	Billing       controllers.BillingService
	Renewals      controllers.RenewalRunner
	Retries       controllers.RetryRunner
	Notifications notifications.Service
	Audit         controllers.AuditReader
	Webhook       webhookcontrollers.PaymentWebhookService
	WebhookGuard  *paymentwebhook.IdempotencyGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(svcs.Webhook, svcs.WebhookGuard, cfg.PaymentGateway.WebhookSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/credits/holds", func(r chi.Router) {
			r.Post("/", controllers.CreateHold(svcs.Holds, logg))
			r.Get("/{holdID}", controllers.GetHold(svcs.Holds, logg))
			r.Post("/{holdID}/convert", controllers.ConvertHold(svcs.Holds, logg))
			r.Post("/{holdID}/release", controllers.ReleaseHold(svcs.Holds, logg))
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/balance", controllers.GetBalance(svcs.Balances, logg))
			r.Get("/ledger", controllers.LedgerHistory(svcs.Ledger, logg))
			r.Get("/audit", controllers.AuditHistory(svcs.Audit, logg))
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
				r.Post("/{notificationID}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
			})
		})

		r.Route("/billing", func(r chi.Router) {
			r.Get("/plans", controllers.ListPlans(svcs.Billing, logg))
			r.Post("/subscriptions", controllers.StartSubscription(svcs.Billing, logg))
			r.Post("/subscriptions/{subscriptionID}/cancel", controllers.CancelSubscription(svcs.Billing, logg))
			r.Post("/topups", controllers.TopUp(svcs.Billing, logg))
		})
	})

	r.Route("/api/internal/v1/billing", func(r chi.Router) {
		r.Use(middleware.SchedulerSecret(cfg.Scheduler.Secret, logg))
		r.Post("/renew", controllers.TriggerRenewals(svcs.Renewals, cfg.Billing.RenewalBatchSize, logg))
		r.Post("/retry", controllers.TriggerRetries(svcs.Retries, cfg.Billing.RenewalBatchSize, logg))
	})

	return r
}
