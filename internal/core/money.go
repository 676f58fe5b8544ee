// Package core holds the expense domain: categories, months, money and the
// monthly categorized summary.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money stores amounts in cents to avoid float drift when summing.
type Money struct {
	Cents int64
}

// maxCents keeps Amount() exactly representable as a float64.
const maxCents = 1 << 53

// MoneyFromAmount converts a JSON amount to cents. The amount is rounded on its
// shortest decimal form, so 1.005 becomes 101 cents and not 100.
// Negative, NaN, infinite and oversized values return ErrInvalidAmount.
func MoneyFromAmount(amount float64) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return Money{}, ErrInvalidAmount
	}
	cents, err := ParseDecimalToCents(strconv.FormatFloat(amount, 'f', -1, 64))
	if err != nil || cents > maxCents {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// Amount returns the value in currency units, for JSON and display.
func (m Money) Amount() float64 {
	return float64(m.Cents) / 100.0
}

// ParseDecimalToCents converts a decimal string to cents with half-up rounding
// on the third decimal. Both "12.34" and "12,34" are accepted. Zero is allowed,
// signs are not. Exponent notation is rejected.
//
//	ParseDecimalToCents("12.345") -> 1235
//	ParseDecimalToCents("12.344") -> 1234
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
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
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if iv > maxCents/100 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}
