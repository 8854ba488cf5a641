package enums

import "fmt"

// RetryAttemptStatus tracks a scheduled payment retry. Exactly one pending
// attempt exists per subscription at a time.
type RetryAttemptStatus string

const (
	RetryAttemptStatusPending   RetryAttemptStatus = "pending"
	RetryAttemptStatusProcessed RetryAttemptStatus = "processed"
	RetryAttemptStatusFailed    RetryAttemptStatus = "failed"
)

var validRetryAttemptStatuses = []RetryAttemptStatus{
	RetryAttemptStatusPending,
	RetryAttemptStatusProcessed,
	RetryAttemptStatusFailed,
}

// IsValid reports whether the value is known.
func (s RetryAttemptStatus) IsValid() bool {
	for _, candidate := range validRetryAttemptStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRetryAttemptStatus converts raw input into a RetryAttemptStatus.
func ParseRetryAttemptStatus(value string) (RetryAttemptStatus, error) {
	for _, candidate := range validRetryAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid retry attempt status %q", value)
}
