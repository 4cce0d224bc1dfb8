// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point decimals with two fractional digits. They travel as
// shopspring decimals in memory and as integer cents in storage.
package core

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to a two-place amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. Extra fractional digits are rounded half away from zero.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("-12,345") -> -12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Invalidf("empty amount")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalidf("amount %q: %v", s, err)
	}
	return d.Round(2), nil
}

// ErrAmountOutOfRange reports an amount whose cents do not fit in an int64.
var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// CheckCents returns ErrAmountOutOfRange, marked invalid, when d cannot be
// stored as int64 cents. ToCents is only safe on amounts that pass.
func CheckCents(d decimal.Decimal) error {
	c := d.Round(2).Shift(2)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return Invalid(ErrAmountOutOfRange)
	}
	return nil
}

// ToCents converts an amount to integer cents, rounding to two places first.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// FromCents converts integer cents back to a two-place amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatAmount renders an amount with a currency code for display (e.g. "12.34 CAD").
func FormatAmount(d decimal.Decimal, currency string) string {
	s := d.StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
