package enums

import "fmt"

// AuditEventType is the closed set of billing and credit events the audit log
// records. Audit entries are diagnostic only and never drive business logic.
type AuditEventType string

const (
	AuditEventRenewalSuccess        AuditEventType = "renewal_success"
	AuditEventRenewalFailure        AuditEventType = "renewal_failure"
	AuditEventRetrySuccess          AuditEventType = "retry_success"
	AuditEventRetryFailure          AuditEventType = "retry_failure"
	AuditEventSubscriptionCancelled AuditEventType = "subscription_cancelled"
	AuditEventHoldCreated           AuditEventType = "hold_created"
	AuditEventHoldConverted         AuditEventType = "hold_converted"
	AuditEventHoldReleased          AuditEventType = "hold_released"
	AuditEventHoldsExpired          AuditEventType = "holds_expired"
	AuditEventCreditTopup           AuditEventType = "credit_topup"
	AuditEventWebhookReceived       AuditEventType = "webhook_received"
)

var validAuditEventTypes = []AuditEventType{
	AuditEventRenewalSuccess,
	AuditEventRenewalFailure,
	AuditEventRetrySuccess,
	AuditEventRetryFailure,
	AuditEventSubscriptionCancelled,
	AuditEventHoldCreated,
	AuditEventHoldConverted,
	AuditEventHoldReleased,
	AuditEventHoldsExpired,
	AuditEventCreditTopup,
	AuditEventWebhookReceived,
}

// IsValid reports whether the value is known.
func (t AuditEventType) IsValid() bool {
	for _, candidate := range validAuditEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAuditEventType converts raw input into an AuditEventType.
func ParseAuditEventType(value string) (AuditEventType, error) {
	for _, candidate := range validAuditEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit event type %q", value)
}

// AuditStatus records the outcome captured by an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
	AuditStatusError   AuditStatus = "error"
)

var validAuditStatuses = []AuditStatus{
	AuditStatusSuccess,
	AuditStatusFailed,
	AuditStatusError,
}

// IsValid reports whether the value is known.
func (s AuditStatus) IsValid() bool {
	for _, candidate := range validAuditStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
