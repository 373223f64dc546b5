package domain

import "github.com/shopspring/decimal"

// DefaultAmountScale matches the narrowest store column (MySQL DECIMAL(20,4)).
const DefaultAmountScale int32 = 4

// ExceedsScale reports whether d has significant digits beyond scale places.
// Trailing zeros do not count: 1.50000 fits a scale of 1.
func ExceedsScale(d decimal.Decimal, scale int32) bool {
	return !d.Equal(d.Truncate(scale))
}
