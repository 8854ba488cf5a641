package retries

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// Repository is the persistence surface for payment retry attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, attempt *models.PaymentRetryAttempt) error
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.PaymentRetryAttempt, error)
	FindFirstAttempt(ctx context.Context, subscriptionID uuid.UUID) (*models.PaymentRetryAttempt, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a GORM-backed retry attempt repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, attempt *models.PaymentRetryAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *gormRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.PaymentRetryAttempt, error) {
	var attempts []models.PaymentRetryAttempt
	query := r.db.WithContext(ctx).
		Where("status = ? AND retry_date <= ?", enums.RetryAttemptStatusPending, asOf).
		Order("retry_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *gormRepository) FindFirstAttempt(ctx context.Context, subscriptionID uuid.UUID) (*models.PaymentRetryAttempt, error) {
	var attempt models.PaymentRetryAttempt
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND attempt_number = 1", subscriptionID).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *gormRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	return r.mark(ctx, id, enums.RetryAttemptStatusProcessed, processedAt)
}

func (r *gormRepository) MarkFailed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	return r.mark(ctx, id, enums.RetryAttemptStatusFailed, processedAt)
}

func (r *gormRepository) mark(ctx context.Context, id uuid.UUID, status enums.RetryAttemptStatus, processedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentRetryAttempt{}).
		Where("id = ? AND status = ?", id, enums.RetryAttemptStatusPending).
		Updates(map[string]any{
			"status":       status,
			"processed_at": processedAt,
		}).Error
}
