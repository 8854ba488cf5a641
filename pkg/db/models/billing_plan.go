package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// BillingPlan describes a subscription tier. Capabilities are typed columns
// rather than a JSON features blob so allocation stays exhaustive.
type BillingPlan struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Tier               enums.PlanTier  `gorm:"column:tier;type:plan_tier_enum;not null;unique"`
	Name               string          `gorm:"column:name;not null"`
	PriceMonthly       decimal.Decimal `gorm:"column:price_monthly;type:numeric(10,2);not null"`
	Currency           string          `gorm:"column:currency;not null;default:'usd'"`
	ScraperCredits     int64           `gorm:"column:scraper_credits;not null"`
	InteractionCredits int64           `gorm:"column:interaction_credits;not null"`
	TrialScraperCredits     int64 `gorm:"column:trial_scraper_credits;not null;default:0"`
	TrialInteractionCredits int64 `gorm:"column:trial_interaction_credits;not null;default:0"`
	TrialDays               int   `gorm:"column:trial_days;not null;default:0"`
	Active                  bool  `gorm:"column:active;not null;default:true"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// MonthlyCredits returns the monthly allocation for the given category.
func (p BillingPlan) MonthlyCredits(category enums.CreditCategory) int64 {
	switch category {
	case enums.CreditCategoryScraper:
		return p.ScraperCredits
	case enums.CreditCategoryInteraction:
		return p.InteractionCredits
	}
	return 0
}
