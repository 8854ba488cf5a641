package enums

import "fmt"

// LedgerSource maps to the ledger_source_enum column and names the operation
// that produced a ledger entry.
type LedgerSource string

const (
	LedgerSourceTrialAllocation   LedgerSource = "trial_allocation"
	LedgerSourceMonthlyAllocation LedgerSource = "monthly_allocation"
	LedgerSourceTopupPurchase     LedgerSource = "topup_purchase"
	LedgerSourceUsage             LedgerSource = "usage"
	LedgerSourceRefund            LedgerSource = "refund"
	LedgerSourceMonthlyReset      LedgerSource = "monthly_reset"
)

var validLedgerSources = []LedgerSource{
	LedgerSourceTrialAllocation,
	LedgerSourceMonthlyAllocation,
	LedgerSourceTopupPurchase,
	LedgerSourceUsage,
	LedgerSourceRefund,
	LedgerSourceMonthlyReset,
}

// IsValid reports whether the value matches the canonical ledger source enum.
func (s LedgerSource) IsValid() bool {
	for _, candidate := range validLedgerSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLedgerSource converts raw input into a LedgerSource.
func ParseLedgerSource(value string) (LedgerSource, error) {
	for _, candidate := range validLedgerSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger source %q", value)
}
