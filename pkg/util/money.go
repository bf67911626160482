package util

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money crosses the API boundary as exact decimal strings ("105.50") and is
// held internally as int64 currency minor units (cents). Floats are never
// used for monetary values; repeated trades must not accumulate drift.

var centsFactor = decimal.NewFromInt(100)

// ParseMoney converts a decimal string into cents. Values with more than two
// fractional digits are rejected rather than rounded.
func ParseMoney(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	cents := d.Mul(centsFactor)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", s)
	}
	if !cents.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return cents.IntPart(), nil
}

// FormatMoney renders cents as a decimal string with two fractional digits.
func FormatMoney(cents int64) string {
	return decimal.NewFromInt(cents).Div(centsFactor).StringFixed(2)
}

// Notional returns shares*price in cents. Reports false when either input is
// non-positive or the product overflows int64; callers must reject such
// orders rather than let a wrapped notional slip past a funds check.
func Notional(shares, price int64) (int64, bool) {
	if shares <= 0 || price <= 0 {
		return 0, false
	}
	if price > math.MaxInt64/shares {
		return 0, false
	}
	return shares * price, true
}
