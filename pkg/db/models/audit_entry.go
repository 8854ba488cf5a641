package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// AuditEntry is an append-only record of a billing or credit event. It exists
// for diagnostics and reconciliation and is never read by business logic.
type AuditEntry struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType      enums.AuditEventType `gorm:"column:event_type;type:audit_event_type_enum;not null"`
	SubscriptionID *uuid.UUID           `gorm:"column:subscription_id;type:uuid"`
	UserID         uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Status         enums.AuditStatus    `gorm:"column:status;type:audit_status_enum;not null"`
	Details        json.RawMessage      `gorm:"column:details;type:jsonb"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}
