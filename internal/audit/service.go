package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

// RecordInput captures one audit event. Details may be any JSON-serializable
// value; it is stored verbatim for reconciliation.
type RecordInput struct {
	EventType      enums.AuditEventType
	SubscriptionID *uuid.UUID
	UserID         uuid.UUID
	Status         enums.AuditStatus
	Details        any
}

// ServiceParams groups dependencies for the audit service.
type ServiceParams struct {
	Logger *logger.Logger
	Repo   Repository
}

// Service writes the append-only audit trail. Record never fails the calling
// operation; persistence errors are logged and swallowed.
type Service struct {
	logg *logger.Logger
	repo Repository
}

// NewService builds an audit service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &Service{logg: params.Logger, repo: params.Repo}, nil
}

// Record appends one audit entry.
func (s *Service) Record(ctx context.Context, input RecordInput) {
	entry, err := buildEntry(input)
	if err != nil {
		s.logg.Error(ctx, "audit entry rejected", err)
		return
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logg.Error(ctx, "audit entry write failed", err)
	}
}

// ListByUser returns the newest audit entries for one user.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func buildEntry(input RecordInput) (*models.AuditEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.EventType.IsValid() {
		return nil, fmt.Errorf("invalid audit event type %q", input.EventType)
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid audit status %q", input.Status)
	}

	var details json.RawMessage
	if input.Details != nil {
		raw, err := json.Marshal(input.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal audit details: %w", err)
		}
		details = raw
	}

	return &models.AuditEntry{
		EventType:      input.EventType,
		SubscriptionID: input.SubscriptionID,
		UserID:         input.UserID,
		Status:         input.Status,
		Details:        details,
	}, nil
}
