package enums

import "fmt"

// CreditCategory identifies an independently metered credit pool.
type CreditCategory string

const (
	CreditCategoryScraper     CreditCategory = "scraper"
	CreditCategoryInteraction CreditCategory = "interaction"
)

var validCreditCategories = []CreditCategory{
	CreditCategoryScraper,
	CreditCategoryInteraction,
}

// AllCreditCategories returns every known category in a stable order.
func AllCreditCategories() []CreditCategory {
	out := make([]CreditCategory, len(validCreditCategories))
	copy(out, validCreditCategories)
	return out
}

// String implements fmt.Stringer.
func (c CreditCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CreditCategory) IsValid() bool {
	for _, candidate := range validCreditCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCreditCategory converts raw input into a CreditCategory.
func ParseCreditCategory(value string) (CreditCategory, error) {
	for _, candidate := range validCreditCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit category %q", value)
}
