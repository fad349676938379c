// Package core holds the domain model of the ledger: money in integer
// cents, fiscal periods, transactions, categories and closing snapshots.
//
// All monetary arithmetic happens in int64 cents. Floats appear only at
// presentation boundaries.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in currency minor units (cents). The sign follows the
// cash flow: income is positive, expense and transfer are negative.
type Money struct {
	Cents int64
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Sub returns m minus o.
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// IsZero reports whether the amount is exactly zero cents.
func (m Money) IsZero() bool { return m.Cents == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Cents < 0 }

// String formats the amount as a plain decimal, e.g. "-12.34".
func (m Money) String() string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// Float returns the amount in major units for display purposes only.
func (m Money) Float() float64 { return float64(m.Cents) / 100.0 }

// BasisPoints applies a percentage expressed in basis points (1% = 100 bp)
// with half-up rounding on the half-cent. Used for retention percentages so
// repeated closings never accumulate floating-point drift.
func (m Money) BasisPoints(bp int64) Money {
	p := m.Cents * bp
	if p >= 0 {
		return Money{Cents: (p + 5_000) / 10_000}
	}
	return Money{Cents: -((-p + 5_000) / 10_000)}
}

// PercentOf returns m as a percentage of total, for presentation only.
// A zero total yields zero.
func (m Money) PercentOf(total Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return float64(m.Cents) / float64(total.Cents) * 100.0
}

// ParseCents converts a decimal string to cents with half-up rounding on the
// third decimal place. Both dot and comma separators are accepted, as is a
// leading minus sign.
//
//	ParseCents("12.34")  -> 1234
//	ParseCents("12,345") -> 1235
//	ParseCents("-0.5")   -> -50
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
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
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" && len(parts) == 2 {
		return 0, ErrInvalidAmount
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
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

	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// ParseMoney is ParseCents wrapped in the Money type.
func ParseMoney(s string) (Money, error) {
	c, err := ParseCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}
