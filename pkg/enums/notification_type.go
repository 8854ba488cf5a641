package enums

import "fmt"

// NotificationType is the closed set of user-facing billing notices.
type NotificationType string

const (
	NotificationTypeRenewalSuccess        NotificationType = "renewal_success"
	NotificationTypeRenewalFailure        NotificationType = "renewal_failure"
	NotificationTypeRetrySuccess          NotificationType = "retry_success"
	NotificationTypeRetryFailure          NotificationType = "retry_failure"
	NotificationTypeSubscriptionCancelled NotificationType = "subscription_cancelled"
	NotificationTypeCreditsLow            NotificationType = "credits_low"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeRenewalSuccess,
	NotificationTypeRenewalFailure,
	NotificationTypeRetrySuccess,
	NotificationTypeRetryFailure,
	NotificationTypeSubscriptionCancelled,
	NotificationTypeCreditsLow,
}

// IsValid reports whether the value is known.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
