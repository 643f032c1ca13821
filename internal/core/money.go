// Package core holds the domain types of the expense tracker and the pure
// functions that operate on them: money parsing, recurring series expansion,
// statistics and budget aggregation.
package core

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountPattern = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)
	maxCents      = decimal.NewFromInt(math.MaxInt64)
)

// ParseDecimalToCents parses a positive amount written with a dot or a comma
// ("12.34", "12,34") into cents. A third decimal rounds half up, so "1.005"
// is 101. Signs, exponents, zero and thousands separators are rejected.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if !amountPattern.MatchString(s) || strings.Trim(s, ".") == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// Euros returns the amount as a float64 in major units, for JSON output only.
// Arithmetic stays on cents.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimals, e.g. "12.30".
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// MoneyFromFloat converts a major-unit float to cents, rounding half away
// from zero on the float's shortest decimal form.
func MoneyFromFloat(f float64) Money {
	return Money{Cents: decimal.NewFromFloat(f).Shift(2).Round(0).IntPart()}
}

// ParseMoney is ParseDecimalToCents wrapped in a Money.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}
