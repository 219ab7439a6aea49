// Package core provides amount parsing and formatting utilities.
//
// Amounts are kept as decimal.Decimal with full precision and only rounded
// to two places when presented or exported.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountFromFloat converts a float amount into a decimal.
//
// NaN and infinities are rejected with a ValidationError wrapping
// ErrNonFiniteAmount, which is the only way a float can be malformed.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, Invalid("amount", ErrNonFiniteAmount)
	}
	return decimal.NewFromFloat(f), nil
}

// ParseAmount parses user input into a decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. No rounding happens here.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.345, nil
//	ParseAmount("-3")     -> -3, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	// decimal accepts exponents; user input never carries them.
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	return d, nil
}

// FormatAmount renders an amount with exactly two decimals, rounding half away from zero.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
