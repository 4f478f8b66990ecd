// Package core provides amount parsing for user-entered rates and money.
//
// Inputs accept both dot (36.5) and comma (36,5) decimal separators. Values are kept
// as exact decimals; conversion to floating point only happens at display time.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseRate parses a user-entered exchange rate. The result is always positive.
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, ErrInvalidRate
	}
	return d, nil
}

// ParseAmount parses a strictly positive decimal amount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("0")     -> 0, ErrInvalidAmount
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseUnsigned(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseNonNegativeAmount parses an amount that may be zero, as used by the
// per-channel fields of an income closing.
func ParseNonNegativeAmount(s string) (decimal.Decimal, error) {
	return parseUnsigned(s)
}

func parseUnsigned(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Join(ErrInvalidAmount, err)
	}
	return d, nil
}

// ToUSD converts a Bs amount with the given rate, rounded to cents.
func ToUSD(bs, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return bs.DivRound(rate, 2)
}

// ToBs converts a USD amount with the given rate, rounded to cents.
func ToBs(usd, rate decimal.Decimal) decimal.Decimal {
	return usd.Mul(rate).Round(2)
}
