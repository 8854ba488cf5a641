package billing

import (
	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
)

// PassItemResult reports the outcome for one subscription within a pass.
type PassItemResult struct {
	SubscriptionID uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
}

// PassResult summarizes one renewal or retry pass.
type PassResult struct {
	ProcessedCount int              `json:"processed_count"`
	Results        []PassItemResult `json:"results"`
}

// StartSubscriptionInput opens a subscription on a plan tier.
type StartSubscriptionInput struct {
	UserID uuid.UUID      `json:"user_id"`
	Tier   enums.PlanTier `json:"tier"`
}

// TopUpInput grants purchased credits outside the monthly cycle.
type TopUpInput struct {
	UserID      uuid.UUID            `json:"user_id"`
	Category    enums.CreditCategory `json:"category"`
	Amount      int64                `json:"amount"`
	ReferenceID string               `json:"reference_id"`
}

// Per-item statuses reported by the renewal and retry passes.
const (
	PassStatusRenewed   = "renewed"
	PassStatusPastDue   = "past_due"
	PassStatusSkipped   = "skipped"
	PassStatusErrored   = "error"
	PassStatusRecovered = "recovered"
	PassStatusCancelled = "cancelled"
	PassStatusRetrying  = "retrying"
)
