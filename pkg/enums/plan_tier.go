package enums

import "fmt"

// PlanTier is the closed set of subscription plan tiers. Plan capabilities
// live as typed columns on the billing plan row, not in an open metadata map.
type PlanTier string

const (
	PlanTierStarter PlanTier = "starter"
	PlanTierGrowth  PlanTier = "growth"
	PlanTierScale   PlanTier = "scale"
)

var validPlanTiers = []PlanTier{
	PlanTierStarter,
	PlanTierGrowth,
	PlanTierScale,
}

// String implements fmt.Stringer.
func (t PlanTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t PlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePlanTier converts raw input into a PlanTier.
func ParsePlanTier(value string) (PlanTier, error) {
	for _, candidate := range validPlanTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}
