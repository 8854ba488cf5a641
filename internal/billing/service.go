package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/internal/audit"
	"github.com/leadpulse/leadpulse-backend/internal/ledger"
	"github.com/leadpulse/leadpulse-backend/internal/payments"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
	"github.com/leadpulse/leadpulse-backend/pkg/metrics"
)

const (
	renewalPassName = "renewal"

	firstRetryOffset = 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerService interface {
	AppendInTx(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, error)
	BalanceInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, category enums.CreditCategory) (int64, error)
}

type auditor interface {
	Record(ctx context.Context, input audit.RecordInput)
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, title, message string)
}

// ServiceParams groups dependencies for the billing orchestrator.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     Repository
	Ledger   ledgerService
	Gateway  payments.Gateway
	Audit    auditor
	Notifier notifier
	Metrics  *metrics.BillingPassMetrics
	Now      func() time.Time
}

// Service drives the subscription billing state machine: renewal passes,
// credit allocation, trial starts, and top-up grants.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	repo     Repository
	ledger   ledgerService
	gateway  payments.Gateway
	audit    auditor
	notifier notifier
	metrics  *metrics.BillingPassMetrics
	now      func() time.Time
}

// NewService builds the billing orchestrator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repo,
		ledger:   params.Ledger,
		gateway:  params.Gateway,
		audit:    params.Audit,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		now:      params.Now,
	}, nil
}

// RunRenewalPass renews every subscription whose period has lapsed. Failures
// are isolated per subscription; one bad subscription never aborts the batch.
func (s *Service) RunRenewalPass(ctx context.Context, batchSize int) (*PassResult, error) {
	due, err := s.repo.ListDueForRenewal(ctx, s.now(), batchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due subscriptions")
	}

	result := &PassResult{Results: make([]PassItemResult, 0, len(due))}
	for i := range due {
		subscription := &due[i]
		s.metrics.IncProcessed(renewalPassName)
		result.ProcessedCount++

		status, renewErr := s.renewSubscription(ctx, subscription)
		item := PassItemResult{SubscriptionID: subscription.ID, Status: status}
		if renewErr != nil {
			item.Status = PassStatusErrored
			item.Error = renewErr.Error()
			s.metrics.IncFailed(renewalPassName)
			logCtx := s.logg.WithSubscriptionID(ctx, subscription.ID.String())
			s.logg.Error(logCtx, "renewal failed", renewErr)
		} else if status == PassStatusRenewed {
			s.metrics.IncSucceeded(renewalPassName)
		} else {
			s.metrics.IncFailed(renewalPassName)
		}
		result.Results = append(result.Results, item)
	}
	return result, nil
}

// renewSubscription runs one subscription through invoice, payment, and
// allocation. Idempotent per (subscription, period): a paid invoice for the
// upcoming period short-circuits, a pending one is reused.
func (s *Service) renewSubscription(ctx context.Context, subscription *models.Subscription) (string, error) {
	if !subscription.Status.IsRenewable() {
		return PassStatusSkipped, nil
	}
	plan := subscription.Plan
	if plan == nil {
		return "", fmt.Errorf("subscription %s has no plan", subscription.ID)
	}

	periodStart := subscription.CurrentPeriodEnd
	periodEnd := periodStart.AddDate(0, 1, 0)

	invoice, err := s.repo.FindInvoiceByPeriod(ctx, subscription.ID, periodStart)
	if err != nil {
		return "", err
	}
	if invoice != nil && invoice.Status == enums.InvoiceStatusPaid {
		// A crash after payment but before the pass finished; the period
		// advance and allocation committed with the invoice.
		return PassStatusSkipped, nil
	}
	if invoice == nil {
		invoice = &models.Invoice{
			SubscriptionID: subscription.ID,
			UserID:         subscription.UserID,
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
			Amount:         plan.PriceMonthly,
			Currency:       plan.Currency,
			Status:         enums.InvoiceStatusPending,
		}
		if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
			return "", err
		}
	}

	payment, err := s.gateway.CreatePayment(ctx, payments.CreatePaymentInput{
		Amount:      invoice.Amount,
		Currency:    invoice.Currency,
		Description: fmt.Sprintf("%s plan renewal", plan.Name),
		ReferenceID: invoice.ID.String(),
		PayerID:     subscription.UserID.String(),
	})
	if err != nil {
		// Unknown charge outcome; treated as a failure and walked through
		// the retry schedule like a decline.
		if failErr := s.failRenewal(ctx, subscription, invoice, err.Error()); failErr != nil {
			return "", failErr
		}
		return PassStatusPastDue, nil
	}
	if payment.Status != enums.PaymentOutcomeSuccess {
		if failErr := s.failRenewal(ctx, subscription, invoice, fmt.Sprintf("payment %s", payment.Status)); failErr != nil {
			return "", failErr
		}
		return PassStatusPastDue, nil
	}

	if err := s.CompleteRenewal(ctx, subscription.ID, invoice.ID, payment.TransactionID, enums.AuditEventRenewalSuccess); err != nil {
		return "", err
	}
	return PassStatusRenewed, nil
}

// CompleteRenewal applies a successful payment: the invoice is marked paid,
// the period advances, the subscription reactivates, and plan credits are
// allocated, all in one transaction. Safe to call again for an already-paid
// invoice. Shared by the renewal pass, the retry pass, and the payment
// webhook.
func (s *Service) CompleteRenewal(ctx context.Context, subscriptionID, invoiceID uuid.UUID, transactionID string, event enums.AuditEventType) error {
	var (
		userID   uuid.UUID
		planName string
		applied  bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subscription, err := repo.FindSubscriptionByIDForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if subscription.Status == enums.SubscriptionStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is cancelled")
		}
		invoice, err := repo.FindInvoiceByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil || invoice.SubscriptionID != subscriptionID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		if invoice.Status == enums.InvoiceStatusPaid {
			return nil
		}
		plan := subscription.Plan
		if plan == nil {
			return fmt.Errorf("subscription %s has no plan", subscription.ID)
		}

		now := s.now()
		invoice.Status = enums.InvoiceStatusPaid
		invoice.GatewayTransactionID = &transactionID
		invoice.PaidAt = &now
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return err
		}

		subscription.Status = enums.SubscriptionStatusActive
		subscription.CurrentPeriodStart = invoice.PeriodStart
		subscription.CurrentPeriodEnd = invoice.PeriodEnd
		if err := repo.UpdateSubscription(ctx, subscription); err != nil {
			return err
		}

		if err := s.allocateMonthlyCredits(ctx, tx, subscription.UserID, plan, invoice.ID.String()); err != nil {
			return err
		}

		userID = subscription.UserID
		planName = plan.Name
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	s.audit.Record(ctx, audit.RecordInput{
		EventType:      event,
		SubscriptionID: &subscriptionID,
		UserID:         userID,
		Status:         enums.AuditStatusSuccess,
		Details: map[string]any{
			"invoice_id":     invoiceID,
			"transaction_id": transactionID,
		},
	})
	notificationType := enums.NotificationTypeRenewalSuccess
	if event == enums.AuditEventRetrySuccess {
		notificationType = enums.NotificationTypeRetrySuccess
	}
	s.notifier.Notify(ctx, userID, notificationType,
		"Subscription renewed",
		fmt.Sprintf("Your %s plan was renewed and this month's credits are ready.", planName))
	return nil
}

// failRenewal marks the invoice failed, moves the subscription to past_due,
// and schedules the first retry attempt for tomorrow.
func (s *Service) failRenewal(ctx context.Context, subscription *models.Subscription, invoice *models.Invoice, cause string) error {
	retryAt := s.now().Add(firstRetryOffset)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice.Status = enums.InvoiceStatusFailed
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return err
		}
		subscription.Status = enums.SubscriptionStatusPastDue
		if err := repo.UpdateSubscription(ctx, subscription); err != nil {
			return err
		}
		return repo.CreateRetryAttempt(ctx, &models.PaymentRetryAttempt{
			SubscriptionID: subscription.ID,
			InvoiceID:      invoice.ID,
			AttemptNumber:  1,
			RetryDate:      retryAt,
			Status:         enums.RetryAttemptStatusPending,
		})
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.RecordInput{
		EventType:      enums.AuditEventRenewalFailure,
		SubscriptionID: &subscription.ID,
		UserID:         subscription.UserID,
		Status:         enums.AuditStatusFailed,
		Details: map[string]any{
			"invoice_id": invoice.ID,
			"cause":      cause,
			"retry_at":   retryAt,
		},
	})
	s.notifier.Notify(ctx, subscription.UserID, enums.NotificationTypeRenewalFailure,
		"Payment failed",
		fmt.Sprintf("We could not collect your subscription payment. We will retry on %s.", retryAt.Format("Jan 2, 2006")))
	return nil
}

// StartSubscription opens a trial subscription on the given tier and grants
// the plan's trial credits.
func (s *Service) StartSubscription(ctx context.Context, input StartSubscriptionInput) (*models.Subscription, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid plan tier %q", input.Tier))
	}

	plan, err := s.repo.FindPlanByTier(ctx, input.Tier)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}

	now := s.now()
	periodEnd := now.AddDate(0, 0, plan.TrialDays)
	if plan.TrialDays <= 0 {
		periodEnd = now
	}
	subscription := &models.Subscription{
		UserID:             input.UserID,
		PlanID:             plan.ID,
		Status:             enums.SubscriptionStatusTrial,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindOpenSubscriptionByUser(ctx, input.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			// One open subscription per user; otherwise every new trial
			// would mint another round of trial credits.
			return pkgerrors.New(pkgerrors.CodeConflict, "user already has an open subscription")
		}
		if err := repo.CreateSubscription(ctx, subscription); err != nil {
			return err
		}
		return s.allocateTrialCredits(ctx, tx, input.UserID, plan, subscription.ID.String())
	})
	if err != nil {
		return nil, err
	}
	subscription.Plan = plan
	return subscription, nil
}

// TopUp grants purchased credits. Top-ups always accumulate regardless of
// category; the monthly reset only applies to cycle allocations.
func (s *Service) TopUp(ctx context.Context, input TopUpInput) (*models.LedgerEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit category %q", input.Category))
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.ReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference id is required")
	}

	var entry *models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.ledger.AppendInTx(ctx, tx, ledger.AppendInput{
			UserID:      input.UserID,
			Category:    input.Category,
			Amount:      input.Amount,
			Source:      enums.LedgerSourceTopupPurchase,
			ReferenceID: &input.ReferenceID,
		})
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.RecordInput{
		EventType: enums.AuditEventCreditTopup,
		UserID:    input.UserID,
		Status:    enums.AuditStatusSuccess,
		Details: map[string]any{
			"category":     input.Category,
			"amount":       input.Amount,
			"reference_id": input.ReferenceID,
		},
	})
	return entry, nil
}

// CancelSubscription moves a subscription to its terminal state in its own
// transaction, then records the cancellation.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID uuid.UUID, cause string) error {
	var userID uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		userID, txErr = s.CancelSubscriptionInTx(ctx, tx, subscriptionID)
		return txErr
	})
	if err != nil {
		return err
	}
	if userID == uuid.Nil {
		return nil
	}
	s.RecordCancellation(ctx, subscriptionID, userID, cause)
	return nil
}

// CancelSubscriptionInTx performs the cancelled transition inside the
// caller's open transaction so it commits atomically with the caller's own
// writes. It returns the owner's id, or uuid.Nil when the subscription was
// already cancelled. The caller follows up with RecordCancellation after
// commit.
func (s *Service) CancelSubscriptionInTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) (uuid.UUID, error) {
	repo := s.repo.WithTx(tx)
	subscription, err := repo.FindSubscriptionByIDForUpdate(ctx, subscriptionID)
	if err != nil {
		return uuid.Nil, err
	}
	if subscription == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if subscription.Status == enums.SubscriptionStatusCancelled {
		return uuid.Nil, nil
	}
	now := s.now()
	subscription.Status = enums.SubscriptionStatusCancelled
	subscription.CancelledAt = &now
	if err := repo.UpdateSubscription(ctx, subscription); err != nil {
		return uuid.Nil, err
	}
	return subscription.UserID, nil
}

// RecordCancellation writes the cancellation audit entry and user notice.
func (s *Service) RecordCancellation(ctx context.Context, subscriptionID, userID uuid.UUID, cause string) {
	s.audit.Record(ctx, audit.RecordInput{
		EventType:      enums.AuditEventSubscriptionCancelled,
		SubscriptionID: &subscriptionID,
		UserID:         userID,
		Status:         enums.AuditStatusFailed,
		Details:        map[string]any{"cause": cause},
	})
	s.notifier.Notify(ctx, userID, enums.NotificationTypeSubscriptionCancelled,
		"Subscription cancelled",
		"Your subscription was cancelled after repeated payment failures. Resubscribe to restore access.")
}

// ListPlans returns the purchasable plan catalog.
func (s *Service) ListPlans(ctx context.Context) ([]models.BillingPlan, error) {
	return s.repo.ListActivePlans(ctx)
}
