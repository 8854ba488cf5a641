package holds

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leadpulse/leadpulse-backend/pkg/db/models"
	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// Repository manages persistence for credit holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, hold *models.CreditHold) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CreditHold, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.CreditHold, error)
	SumActive(ctx context.Context, userID uuid.UUID, category enums.CreditCategory, asOf time.Time) (int64, error)
	Resolve(ctx context.Context, id uuid.UUID, status enums.HoldStatus, resolvedAt time.Time) error
	ExpireDue(ctx context.Context, asOf time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a hold repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, hold *models.CreditHold) error {
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CreditHold, error) {
	return r.find(ctx, id, false)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.CreditHold, error) {
	return r.find(ctx, id, true)
}

func (r *repository) find(ctx context.Context, id uuid.UUID, lock bool) (*models.CreditHold, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var hold models.CreditHold
	if err := query.Where("id = ?", id).First(&hold).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hold, nil
}

// SumActive totals the active, unexpired holds for a user/category.
func (r *repository) SumActive(ctx context.Context, userID uuid.UUID, category enums.CreditCategory, asOf time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditHold{}).
		Where("user_id = ? AND category = ? AND status = ? AND expires_at > ?", userID, category, enums.HoldStatusActive, asOf).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// Resolve moves an active hold into a terminal status. The status guard in the
// WHERE clause makes double resolution a no-op at the storage layer.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, status enums.HoldStatus, resolvedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CreditHold{}).
		Where("id = ? AND status = ?", id, enums.HoldStatusActive).
		Updates(map[string]any{
			"status":      status,
			"resolved_at": resolvedAt,
		}).Error
}

// ExpireDue bulk-transitions active holds past their expiry. The expiry is
// re-checked in the UPDATE itself so the sweep is safe alongside concurrent
// convert/release calls.
func (r *repository) ExpireDue(ctx context.Context, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditHold{}).
		Where("status = ? AND expires_at <= ?", enums.HoldStatusActive, asOf).
		Updates(map[string]any{
			"status":      enums.HoldStatusExpired,
			"resolved_at": asOf,
		})
	return result.RowsAffected, result.Error
}
