// Package core holds the domain types of the envelope ledger: envelopes,
// income and expense entries, money amounts, balance snapshots and the
// transaction feed ordering.
//
// Amounts are fixed-point cents so that repeated aggregation never drifts.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point amount in cents.
type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string into Money with half-up rounding on
// the third decimal place. Both dot (12.34) and comma (12,34) separators are
// accepted. The amount must be strictly positive; anything else fails with
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents (rounds up)
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	m, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	if m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// ParseAllocation is ParseAmount with zero allowed: an envelope may be
// created with an empty allocation and funded through income entries.
func ParseAllocation(s string) (Money, error) {
	m, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	if m.Cents < 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

func parseDecimal(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if cents.Cmp(decimal.NewFromInt(math.MaxInt64)) > 0 ||
		cents.Cmp(decimal.NewFromInt(math.MinInt64)) < 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Validate rejects non-positive amounts for income and expense entries.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m − o. The result may be negative; balances are allowed to go
// negative when income entries are deleted retroactively.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// LessThan reports m < o.
func (m Money) LessThan(o Money) bool {
	return m.Cents < o.Cents
}

// Units returns the amount in currency units as float64, for display only.
// Use cents for every calculation.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimal places, e.g. "12.34".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// MarshalJSON renders the amount as a decimal string, e.g. "12.34".
// Amounts never travel as binary floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or bare number.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := parseDecimal(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
