package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// PaymentRetryAttempt schedules one re-invocation of the payment gateway
// after a failed renewal. Attempt numbers run 1..5 on the fixed offset
// schedule; at most one pending attempt exists per subscription.
type PaymentRetryAttempt struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID uuid.UUID                `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:uniq_retry_sub_attempt"`
	InvoiceID      uuid.UUID                `gorm:"column:invoice_id;type:uuid;not null"`
	AttemptNumber  int                      `gorm:"column:attempt_number;not null;uniqueIndex:uniq_retry_sub_attempt"`
	RetryDate      time.Time                `gorm:"column:retry_date;not null;index"`
	Status         enums.RetryAttemptStatus `gorm:"column:status;type:retry_attempt_status_enum;not null;default:'pending'"`
	ProcessedAt    *time.Time               `gorm:"column:processed_at"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
