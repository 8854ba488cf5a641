package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// LedgerEntry records an immutable credit balance change for one user and
// category. Entries are append-only; corrections are written as compensating
// entries, never as updates.
type LedgerEntry struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:idx_ledger_user_category"`
	Category     enums.CreditCategory `gorm:"column:category;type:credit_category_enum;not null;index:idx_ledger_user_category"`
	Amount       int64               `gorm:"column:amount;not null"`
	BalanceAfter int64               `gorm:"column:balance_after;not null"`
	Source       enums.LedgerSource  `gorm:"column:source;type:ledger_source_enum;not null"`
	ReferenceID  *string             `gorm:"column:reference_id"`
	// HoldID is a non-owning back-reference; the entry outlives the hold.
	HoldID      *uuid.UUID `gorm:"column:hold_id;type:uuid"`
	Description *string    `gorm:"column:description"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
