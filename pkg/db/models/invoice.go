package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// Invoice records one payment collection attempt window for a subscription
// period. The (subscription_id, period_start) pair is unique so renewal passes
// stay idempotent across crashes.
type Invoice struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:uniq_invoice_sub_period"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	PeriodStart    time.Time           `gorm:"column:period_start;not null;uniqueIndex:uniq_invoice_sub_period"`
	PeriodEnd      time.Time           `gorm:"column:period_end;not null"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency       string              `gorm:"column:currency;not null;default:'usd'"`
	Status         enums.InvoiceStatus `gorm:"column:status;type:invoice_status_enum;not null;default:'pending'"`
	GatewayTransactionID *string    `gorm:"column:gateway_transaction_id"`
	PaidAt               *time.Time `gorm:"column:paid_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
