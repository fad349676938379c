package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MovementType classifies the direction of a ledger entry.
type MovementType string

const (
	Income   MovementType = "INCOME"
	Expense  MovementType = "EXPENSE"
	Transfer MovementType = "TRANSFER" // retention / internal bookkeeping
)

// Validate checks the movement type is one of the three known values.
func (m MovementType) Validate() error {
	switch m {
	case Income, Expense, Transfer:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMovement, string(m))
}

// RelevanceCode is the spending-quality tag attached to expenses. It feeds
// behavioral analysis and consequence rules, never balance arithmetic.
type RelevanceCode string

const (
	Necessary   RelevanceCode = "NE"
	Like        RelevanceCode = "LI"
	Superfluous RelevanceCode = "SUP"
	Nonsense    RelevanceCode = "TON"
)

// RelevanceCodes lists all codes in display order.
var RelevanceCodes = []RelevanceCode{Necessary, Like, Superfluous, Nonsense}

// Validate checks the code; the empty string means "unset" and is valid.
func (r RelevanceCode) Validate() error {
	switch r {
	case "", Necessary, Like, Superfluous, Nonsense:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRelevance, string(r))
}

type Date struct {
	time.Time
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as int.
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string { return d.Format("2006-01-02") }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Transaction is a single ledger entry. Amounts are signed: income is
// positive, expense and transfer are negative. The fiscal period is always
// the one containing the accounting date.
type Transaction struct {
	ID             int64
	RealDate       Date // when the money actually moved
	AccountingDate Date // date attributed for period membership
	Period         PeriodKey
	Movement       MovementType
	CategoryID     int64 // 0 only for system-generated entries pending classification
	Concept        string
	Amount         Money
	Relevance      RelevanceCode // only meaningful for expenses
	Liquid         bool          // false for internal bookkeeping entries
	Origin         string        // "" for user entries, else the generator, e.g. "rule:No frills"
}

// SystemGenerated reports whether the entry was produced by the closing
// engine rather than entered by the user.
func (t Transaction) SystemGenerated() bool { return t.Origin != "" }

// SignAmount gives magnitude cents the sign convention of the movement type.
func SignAmount(m MovementType, cents int64) (Money, error) {
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	if m == Income {
		return Money{Cents: cents}, nil
	}
	return Money{Cents: -cents}, nil
}

func (t Transaction) Validate() error {
	if err := t.RealDate.Validate(); err != nil {
		return fmt.Errorf("real date: %w", err)
	}
	if err := t.AccountingDate.Validate(); err != nil {
		return fmt.Errorf("accounting date: %w", err)
	}
	if err := t.Movement.Validate(); err != nil {
		return err
	}
	if err := t.Relevance.Validate(); err != nil {
		return err
	}
	if t.Relevance != "" && t.Movement != Expense {
		return fmt.Errorf("%w: relevance is only valid on expenses", ErrInvalidRelevance)
	}
	if len(strings.TrimSpace(t.Concept)) == 0 {
		return ErrEmptyConcept
	}
	if len(t.Concept) > 200 {
		return errors.New("concept too long (max 200 characters)")
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if t.Movement == Income && t.Amount.IsNegative() {
		return fmt.Errorf("%w: income must be positive", ErrInvalidAmount)
	}
	if t.Movement != Income && !t.Amount.IsNegative() {
		return fmt.Errorf("%w: %s must be negative", ErrInvalidAmount, strings.ToLower(string(t.Movement)))
	}
	if err := t.Period.Validate(); err != nil {
		return err
	}
	if !t.Period.Contains(t.AccountingDate) {
		return fmt.Errorf("%w: period %s does not contain accounting date %s",
			ErrInvalidPeriod, t.Period, t.AccountingDate.ISO())
	}
	if t.CategoryID == 0 && !t.SystemGenerated() {
		return errors.New("category is required for user entries")
	}
	return nil
}

// Category is a master classification for ledger entries. Deactivation is
// soft: categories referenced by history are never deleted.
type Category struct {
	ID               int64
	Name             string
	Movement         MovementType
	Active           bool
	DefaultConcept   string
	DefaultAmount    Money // zero means no default
	DefaultRelevance RelevanceCode
	UsageCount       int64
	LastUsed         Date // zero when never used
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if err := c.Movement.Validate(); err != nil {
		return err
	}
	if err := c.DefaultRelevance.Validate(); err != nil {
		return err
	}
	return nil
}

// Reserved category names the closing engine looks up when generating
// entries. Seeded at bootstrap.
const (
	CategorySalary           = "Salary"
	CategorySurplusRetention = "Retention: surplus"
	CategorySalaryRetention  = "Retention: salary"
	CategoryConsequences     = "Retention: consequences"
)
