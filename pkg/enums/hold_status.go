package enums

import "fmt"

// HoldStatus tracks the lifecycle of a credit hold. A hold leaves active
// exactly once; converted, released and expired are terminal.
type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusConverted HoldStatus = "converted"
	HoldStatusReleased  HoldStatus = "released"
	HoldStatusExpired   HoldStatus = "expired"
)

var validHoldStatuses = []HoldStatus{
	HoldStatusActive,
	HoldStatusConverted,
	HoldStatusReleased,
	HoldStatusExpired,
}

// String implements fmt.Stringer.
func (s HoldStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status can never change again.
func (s HoldStatus) IsTerminal() bool {
	return s == HoldStatusConverted || s == HoldStatusReleased || s == HoldStatusExpired
}

// IsValid reports whether the value is known.
func (s HoldStatus) IsValid() bool {
	for _, candidate := range validHoldStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseHoldStatus converts raw input into a HoldStatus.
func ParseHoldStatus(value string) (HoldStatus, error) {
	for _, candidate := range validHoldStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid hold status %q", value)
}
