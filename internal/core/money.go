// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed by a user
// and formatting them back for display.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied decimal string into an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Thousands separators and exponents are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("-5")     -> -5, nil
//	ParseAmount("1.2.3")  -> 0, ErrInvalidAmount
//	ParseAmount("0.001")  -> 0, ErrAmountOutOfRange
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(digits, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range digits {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if digits == "." {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Amounts are stored as NUMERIC(14, 2).
const (
	MaxAmountScale         = 2
	MaxAmountIntegerDigits = 12
)

var maxAmount = decimal.New(1, MaxAmountIntegerDigits)

// CheckAmount reports ErrAmountOutOfRange when d has more than
// MaxAmountScale fractional digits or more than MaxAmountIntegerDigits
// integer digits.
func CheckAmount(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MaxAmountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimals", ErrAmountOutOfRange, d, MaxAmountScale)
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s has more than %d integer digits", ErrAmountOutOfRange, d, MaxAmountIntegerDigits)
	}
	return nil
}

// FormatAmount renders an amount with two fractional digits for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
