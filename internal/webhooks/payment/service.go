package paymentwebhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/internal/audit"
	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type billingOrchestrator interface {
	CompleteRenewal(ctx context.Context, subscriptionID, invoiceID uuid.UUID, transactionID string, event enums.AuditEventType) error
}

type invoiceFinder interface {
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type auditor interface {
	Record(ctx context.Context, input audit.RecordInput)
}

// ServiceParams groups dependencies for the gateway webhook handler.
type ServiceParams struct {
	Logger  *logger.Logger
	Billing billingOrchestrator
	Store   invoiceFinder
	Audit   auditor
}

// Service applies asynchronous payment outcomes sent by the gateway. A
// success settles the referenced invoice through the same completion path
// the renewal and retry passes use; failures are recorded only, since the
// charge initiator already walked the failure path synchronously.
type Service struct {
	logg    *logger.Logger
	billing billingOrchestrator
	store   invoiceFinder
	audit   auditor
}

// NewService builds the webhook handler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &Service{
		logg:    params.Logger,
		billing: params.Billing,
		store:   params.Store,
		audit:   params.Audit,
	}, nil
}

// HandleEvent processes one verified gateway event.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}
	outcome, err := enums.ParsePaymentOutcome(event.Outcome)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment outcome %q", event.Outcome))
	}
	invoiceID, err := uuid.Parse(event.ReferenceID)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id is not a valid invoice id")
	}

	invoice, err := s.store.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}

	auditStatus := enums.AuditStatusSuccess
	if outcome != enums.PaymentOutcomeSuccess {
		auditStatus = enums.AuditStatusFailed
	}
	s.audit.Record(ctx, audit.RecordInput{
		EventType:      enums.AuditEventWebhookReceived,
		SubscriptionID: &invoice.SubscriptionID,
		UserID:         invoice.UserID,
		Status:         auditStatus,
		Details: map[string]any{
			"event_id":       event.EventID,
			"invoice_id":     invoice.ID,
			"transaction_id": event.TransactionID,
			"outcome":        outcome,
		},
	})

	if outcome != enums.PaymentOutcomeSuccess {
		logCtx := s.logg.WithSubscriptionID(ctx, invoice.SubscriptionID.String())
		s.logg.Info(logCtx, fmt.Sprintf("gateway reported %s for invoice %s", outcome, invoice.ID))
		return nil
	}
	if event.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required for a successful payment")
	}
	return s.billing.CompleteRenewal(ctx, invoice.SubscriptionID, invoice.ID, event.TransactionID, enums.AuditEventRenewalSuccess)
}
