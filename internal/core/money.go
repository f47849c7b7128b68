// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals in the base currency unit so that sums do not
// depend on the order in which records are added.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the base currency unit.
type Money struct {
	decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{Decimal: decimal.Zero}

// NewMoney returns an exact amount from an integer number of units.
func NewMoney(units int64) Money {
	return Money{Decimal: decimal.NewFromInt(units)}
}

// MoneyFromFloat converts a float64 to Money. Use only for literals and tests.
func MoneyFromFloat(f float64) Money {
	return Money{Decimal: decimal.NewFromFloat(f)}
}

// ParseAmount converts a user-entered decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// An empty string is zero, matching the form default. Negative values and
// malformed input are rejected.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("")      -> 0, nil
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return Money{Decimal: d}, nil
}

// ParseStoredAmount reads an amount written by Money.String. Malformed values
// read as zero.
func ParseStoredAmount(s string) Money {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero
	}
	return Money{Decimal: d}
}

func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

func (m Money) Sub(o Money) Money {
	return Money{Decimal: m.Decimal.Sub(o.Decimal)}
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// Fixed formats the amount with two decimals, half away from zero.
func (m Money) Fixed() string {
	return m.Decimal.StringFixed(2)
}
