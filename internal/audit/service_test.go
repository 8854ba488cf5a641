package audit

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	"github.com/leadpulse/leadpulse-backend/pkg/logger"
)

type fakeRepository struct {
	created  []*models.AuditEntry
	createFn func(ctx context.Context, entry *models.AuditEntry) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, entry); err != nil {
			return err
		}
	}
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestService_RecordSerializesDetails(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(ServiceParams{Logger: testLogger(), Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	subID := uuid.New()
	svc.Record(context.Background(), RecordInput{
		EventType:      enums.AuditEventRenewalSuccess,
		SubscriptionID: &subID,
		UserID:         uuid.New(),
		Status:         enums.AuditStatusSuccess,
		Details:        map[string]any{"invoice_id": "inv-1", "amount": 4900},
	})

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.created))
	}
	entry := repo.created[0]
	if entry.EventType != enums.AuditEventRenewalSuccess {
		t.Fatalf("unexpected event type %q", entry.EventType)
	}
	if entry.SubscriptionID == nil || *entry.SubscriptionID != subID {
		t.Fatal("subscription id not carried")
	}
	if len(entry.Details) == 0 {
		t.Fatal("expected details payload")
	}
}

func TestService_RecordSwallowsRepoError(t *testing.T) {
	repo := &fakeRepository{createFn: func(ctx context.Context, entry *models.AuditEntry) error {
		return errors.New("db down")
	}}
	svc, err := NewService(ServiceParams{Logger: testLogger(), Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	// Must not panic or surface the failure to the caller.
	svc.Record(context.Background(), RecordInput{
		EventType: enums.AuditEventHoldCreated,
		UserID:    uuid.New(),
		Status:    enums.AuditStatusSuccess,
	})
}

func TestService_RecordRejectsInvalidInput(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(ServiceParams{Logger: testLogger(), Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	svc.Record(context.Background(), RecordInput{
		EventType: enums.AuditEventType("not_real"),
		UserID:    uuid.New(),
		Status:    enums.AuditStatusSuccess,
	})
	svc.Record(context.Background(), RecordInput{
		EventType: enums.AuditEventHoldCreated,
		Status:    enums.AuditStatusSuccess,
	})

	if len(repo.created) != 0 {
		t.Fatalf("invalid inputs must not be persisted, got %d entries", len(repo.created))
	}
}
