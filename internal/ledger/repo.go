package ledger

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

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AcquireAppendLock(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) error
	Create(ctx context.Context, entry *models.LedgerEntry) error
	LatestEntry(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*models.LedgerEntry, error)
	LatestEntryForUpdate(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*models.LedgerEntry, error)
	SumAmounts(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error)
	ActiveUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// AcquireAppendLock serializes appends for a user/category for the rest of
// the transaction. Locking the newest entry row is not enough on its own: an
// empty ledger has no row to lock, and two concurrent first appends would
// both start their running balance from zero. Advisory locks are transaction
// scoped and release on commit or rollback.
func (r *repository) AcquireAppendLock(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?), hashtext(?))", userID.String(), string(category)).
		Error
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) LatestEntry(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*models.LedgerEntry, error) {
	return r.latest(ctx, userID, category, false)
}

// LatestEntryForUpdate row-locks the newest entry so concurrent appends for the
// same user/category serialize on it. Callers must hold an open transaction.
func (r *repository) LatestEntryForUpdate(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (*models.LedgerEntry, error) {
	return r.latest(ctx, userID, category, true)
}

func (r *repository) latest(ctx context.Context, userID uuid.UUID, category enums.CreditCategory, lock bool) (*models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		Order("created_at DESC, id DESC")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var entry models.LedgerEntry
	if err := query.First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) SumAmounts(ctx context.Context, userID uuid.UUID, category enums.CreditCategory) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ? AND category = ?", userID, category).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.LedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ActiveUserIDs returns users with ledger activity since the given time.
func (r *repository) ActiveUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("created_at >= ?", since).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}
