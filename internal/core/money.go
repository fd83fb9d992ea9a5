// Package core holds the envelope ledger's value types: money, bucket
// references and the closed set of transaction kinds.
//
// This file contains the integer money type and helpers to parse and
// display it. Arithmetic on Pennies is plain integer addition.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
)

// DefaultCurrency is used for display when none is configured.
const DefaultCurrency = money.USD

// Pennies is a signed amount in the currency's minor unit.
type Pennies int64

// Sum adds up amounts.
func Sum(amounts ...Pennies) Pennies {
	var total Pennies
	for _, a := range amounts {
		total += a
	}
	return total
}

// Abs returns the magnitude of p.
func (p Pennies) Abs() Pennies {
	if p < 0 {
		return -p
	}
	return p
}

// Format renders p in the given ISO currency, e.g. "$12.34" or "-€0.50".
// Unknown currency codes fall back to DefaultCurrency.
func (p Pennies) Format(currency string) string {
	if currency == "" || money.GetCurrency(currency) == nil {
		currency = DefaultCurrency
	}
	return money.New(int64(p), currency).Display()
}

func (p Pennies) String() string {
	return p.Format(DefaultCurrency)
}

// ParseDecimal converts a user-entered decimal string to pennies.
//
// It accepts dot (12.34) and comma (12,34) decimal separators, an optional
// leading sign, and performs half-up rounding on the third decimal place.
// Zero is allowed since a fill override of 0 is meaningful.
//
// Examples:
//
//	ParseDecimal("12.34")  -> 1234
//	ParseDecimal("-12,34") -> -1234
//	ParseDecimal("12.345") -> 1235
func ParseDecimal(s string) (Pennies, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return 0, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	p := Pennies(iv*100 + frac)
	if neg {
		p = -p
	}
	return p, nil
}
