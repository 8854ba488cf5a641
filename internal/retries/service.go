package retries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/internal/audit"
	"github.com/leadpulse/leadpulse-backend/internal/billing"
	"github.com/leadpulse/leadpulse-backend/internal/payments"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
	"github.com/leadpulse/leadpulse-backend/pkg/metrics"
)

const (
	retryPassName = "retry"

	maxAttempts = 5
)

// retryOffsets are cumulative days from the first failure, not gaps between
// attempts. Attempt N is due retryOffsets[N-1] days after the renewal first
// failed.
var retryOffsets = [maxAttempts]int{1, 2, 4, 7, 14}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type billingOrchestrator interface {
	CompleteRenewal(ctx context.Context, subscriptionID, invoiceID uuid.UUID, transactionID string, event enums.AuditEventType) error
	CancelSubscriptionInTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) (uuid.UUID, error)
	RecordCancellation(ctx context.Context, subscriptionID, userID uuid.UUID, cause string)
}

// billingStore is the slice of the billing repository the retry pass reads.
type billingStore interface {
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type auditor interface {
	Record(ctx context.Context, input audit.RecordInput)
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, title, message string)
}

// ServiceParams groups dependencies for the retry scheduler.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     Repository
	Billing  billingOrchestrator
	Store    billingStore
	Gateway  payments.Gateway
	Audit    auditor
	Notifier notifier
	Metrics  *metrics.BillingPassMetrics
	Now      func() time.Time
}

// Service walks due payment retry attempts through the fixed recovery
// schedule. A recovered payment reuses the renewal completion path; the
// fifth failure cancels the subscription.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	repo     Repository
	billing  billingOrchestrator
	store    billingStore
	gateway  payments.Gateway
	audit    auditor
	notifier notifier
	metrics  *metrics.BillingPassMetrics
	now      func() time.Time
}

// NewService builds the retry scheduler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("retry repository required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("billing store required")
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
		billing:  params.Billing,
		store:    params.Store,
		gateway:  params.Gateway,
		audit:    params.Audit,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		now:      params.Now,
	}, nil
}

// RunRetryPass processes every pending attempt whose retry date has arrived.
// Failures are isolated per attempt.
func (s *Service) RunRetryPass(ctx context.Context, batchSize int) (*billing.PassResult, error) {
	due, err := s.repo.ListDue(ctx, s.now(), batchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due retry attempts")
	}

	result := &billing.PassResult{Results: make([]billing.PassItemResult, 0, len(due))}
	for i := range due {
		attempt := &due[i]
		s.metrics.IncProcessed(retryPassName)
		result.ProcessedCount++

		status, attemptErr := s.processAttempt(ctx, attempt)
		item := billing.PassItemResult{SubscriptionID: attempt.SubscriptionID, Status: status}
		if attemptErr != nil {
			item.Status = billing.PassStatusErrored
			item.Error = attemptErr.Error()
			s.metrics.IncFailed(retryPassName)
			logCtx := s.logg.WithSubscriptionID(ctx, attempt.SubscriptionID.String())
			s.logg.Error(logCtx, "retry attempt failed", attemptErr)
		} else if status == billing.PassStatusRecovered {
			s.metrics.IncSucceeded(retryPassName)
		} else {
			s.metrics.IncFailed(retryPassName)
		}
		result.Results = append(result.Results, item)
	}
	return result, nil
}

func (s *Service) processAttempt(ctx context.Context, attempt *models.PaymentRetryAttempt) (string, error) {
	now := s.now()

	subscription, err := s.store.FindSubscriptionByID(ctx, attempt.SubscriptionID)
	if err != nil {
		return "", err
	}
	if subscription == nil || subscription.Status == enums.SubscriptionStatusCancelled {
		// Nothing left to recover; retire the attempt.
		if err := s.repo.MarkFailed(ctx, attempt.ID, now); err != nil {
			return "", err
		}
		return billing.PassStatusSkipped, nil
	}

	invoice, err := s.store.FindInvoiceByID(ctx, attempt.InvoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil {
		return "", fmt.Errorf("retry attempt %s references missing invoice %s", attempt.ID, attempt.InvoiceID)
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		// The webhook settled the invoice between schedule and execution.
		if err := s.repo.MarkProcessed(ctx, attempt.ID, now); err != nil {
			return "", err
		}
		return billing.PassStatusSkipped, nil
	}

	payment, err := s.gateway.CreatePayment(ctx, payments.CreatePaymentInput{
		Amount:      invoice.Amount,
		Currency:    invoice.Currency,
		Description: fmt.Sprintf("subscription payment retry %d of %d", attempt.AttemptNumber, maxAttempts),
		ReferenceID: invoice.ID.String(),
		PayerID:     subscription.UserID.String(),
	})
	if err != nil {
		return s.failAttempt(ctx, attempt, subscription, err.Error())
	}
	if payment.Status != enums.PaymentOutcomeSuccess {
		return s.failAttempt(ctx, attempt, subscription, fmt.Sprintf("payment %s", payment.Status))
	}

	if err := s.billing.CompleteRenewal(ctx, subscription.ID, invoice.ID, payment.TransactionID, enums.AuditEventRetrySuccess); err != nil {
		return "", err
	}
	if err := s.repo.MarkProcessed(ctx, attempt.ID, now); err != nil {
		return "", err
	}
	return billing.PassStatusRecovered, nil
}

// failAttempt marks the attempt failed and either schedules the next one on
// the cumulative offset schedule or, after the final attempt, cancels the
// subscription.
func (s *Service) failAttempt(ctx context.Context, attempt *models.PaymentRetryAttempt, subscription *models.Subscription, cause string) (string, error) {
	now := s.now()

	var nextRetryAt *time.Time
	var cancelledUser uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkFailed(ctx, attempt.ID, now); err != nil {
			return err
		}
		if attempt.AttemptNumber >= maxAttempts {
			// The terminal transition must commit with the failed attempt; a
			// crash between the two would strand the subscription in
			// past_due with nothing left to retry.
			var cancelErr error
			cancelledUser, cancelErr = s.billing.CancelSubscriptionInTx(ctx, tx, subscription.ID)
			return cancelErr
		}

		// All retry dates are anchored on the first failure, so a pass that
		// runs late never stretches the schedule.
		anchor := attempt.CreatedAt
		if attempt.AttemptNumber > 1 {
			first, err := repo.FindFirstAttempt(ctx, attempt.SubscriptionID)
			if err != nil {
				return err
			}
			if first != nil {
				anchor = first.CreatedAt
			}
		}
		retryAt := anchor.AddDate(0, 0, retryOffsets[attempt.AttemptNumber])
		nextRetryAt = &retryAt
		return repo.Create(ctx, &models.PaymentRetryAttempt{
			SubscriptionID: attempt.SubscriptionID,
			InvoiceID:      attempt.InvoiceID,
			AttemptNumber:  attempt.AttemptNumber + 1,
			RetryDate:      retryAt,
			Status:         enums.RetryAttemptStatusPending,
		})
	})
	if err != nil {
		return "", err
	}

	details := map[string]any{
		"attempt_number": attempt.AttemptNumber,
		"invoice_id":     attempt.InvoiceID,
		"cause":          cause,
	}
	if nextRetryAt != nil {
		details["next_retry_at"] = *nextRetryAt
	}
	s.audit.Record(ctx, audit.RecordInput{
		EventType:      enums.AuditEventRetryFailure,
		SubscriptionID: &attempt.SubscriptionID,
		UserID:         subscription.UserID,
		Status:         enums.AuditStatusFailed,
		Details:        details,
	})

	if nextRetryAt == nil {
		// Fifth failure is terminal.
		if cancelledUser != uuid.Nil {
			s.billing.RecordCancellation(ctx, subscription.ID, cancelledUser, "payment retries exhausted")
		}
		return billing.PassStatusCancelled, nil
	}

	s.notifier.Notify(ctx, subscription.UserID, enums.NotificationTypeRetryFailure,
		"Payment retry failed",
		fmt.Sprintf("Payment attempt %d of %d failed. We will try again on %s.",
			attempt.AttemptNumber, maxAttempts, nextRetryAt.Format("Jan 2, 2006")))
	return billing.PassStatusRetrying, nil
}
