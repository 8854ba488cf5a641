package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// CreditHold reserves credits without debiting the ledger. Active unexpired
// holds are subtracted from the available balance; a hold transitions out of
// active exactly once.
type CreditHold struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index:idx_holds_user_category"`
	Category    enums.CreditCategory `gorm:"column:category;type:credit_category_enum;not null;index:idx_holds_user_category"`
	Amount      int64                `gorm:"column:amount;not null"`
	ReferenceID string               `gorm:"column:reference_id;not null"`
	Status      enums.HoldStatus     `gorm:"column:status;type:hold_status_enum;not null;default:'active'"`
	ExpiresAt   time.Time            `gorm:"column:expires_at;not null"`
	ResolvedAt  *time.Time           `gorm:"column:resolved_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
