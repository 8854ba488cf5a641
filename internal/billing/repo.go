package billing

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

// Repository manages persistence for subscriptions, invoices, and plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindOpenSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListDueForRenewal(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error)
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceByPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error

	CreateRetryAttempt(ctx context.Context, attempt *models.PaymentRetryAttempt) error

	FindPlanByID(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error)
	FindPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error)
	ListActivePlans(ctx context.Context) ([]models.BillingPlan, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.findSubscription(ctx, id, false)
}

func (r *repository) FindSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.findSubscription(ctx, id, true)
}

func (r *repository) findSubscription(ctx context.Context, id uuid.UUID, lock bool) (*models.Subscription, error) {
	query := r.db.WithContext(ctx).Preload("Plan")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var subscription models.Subscription
	if err := query.Where("id = ?", id).First(&subscription).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

// FindOpenSubscriptionByUser returns the user's non-cancelled subscription,
// if any. Every user has at most one; the partial unique index on
// subscriptions enforces it under concurrent creation.
func (r *repository) FindOpenSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []enums.SubscriptionStatus{
			enums.SubscriptionStatusTrial,
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusPastDue,
		}).
		First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// ListDueForRenewal returns renewable subscriptions whose period has lapsed,
// oldest first so long-overdue subscriptions are not starved by the batch cap.
func (r *repository) ListDueForRenewal(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	query := r.db.WithContext(ctx).
		Preload("Plan").
		Where("status IN ? AND current_period_end <= ?", []enums.SubscriptionStatus{enums.SubscriptionStatusTrial, enums.SubscriptionStatusActive}, asOf).
		Order("current_period_end ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var subscriptions []models.Subscription
	if err := query.Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindInvoiceByPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND period_start = ?", subscriptionID, periodStart).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) CreateRetryAttempt(ctx context.Context, attempt *models.PaymentRetryAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).Where("tier = ? AND active", tier).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListActivePlans(ctx context.Context) ([]models.BillingPlan, error) {
	var plans []models.BillingPlan
	if err := r.db.WithContext(ctx).
		Where("active").
		Order("price_monthly ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
