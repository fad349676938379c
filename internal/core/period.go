package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodKey identifies a fiscal month. The canonical string form is
// "YYYY-MM", which also sorts chronologically.
type PeriodKey struct {
	Year  int
	Month time.Month
}

// PeriodKeyOf returns the fiscal period containing t.
func PeriodKeyOf(t time.Time) PeriodKey {
	return PeriodKey{Year: t.Year(), Month: t.Month()}
}

// ParsePeriodKey parses the "YYYY-MM" form.
func ParsePeriodKey(s string) (PeriodKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return PeriodKey{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1900 || year > 9999 {
		return PeriodKey{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return PeriodKey{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return PeriodKey{Year: year, Month: time.Month(month)}, nil
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// IsZero reports whether the key is the zero value.
func (k PeriodKey) IsZero() bool { return k.Year == 0 && k.Month == 0 }

// Validate checks year and month ranges.
func (k PeriodKey) Validate() error {
	if k.Year < 1900 || k.Year > 9999 || k.Month < time.January || k.Month > time.December {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, k)
	}
	return nil
}

// Next returns the following fiscal month.
func (k PeriodKey) Next() PeriodKey {
	if k.Month == time.December {
		return PeriodKey{Year: k.Year + 1, Month: time.January}
	}
	return PeriodKey{Year: k.Year, Month: k.Month + 1}
}

// Prev returns the preceding fiscal month.
func (k PeriodKey) Prev() PeriodKey {
	if k.Month == time.January {
		return PeriodKey{Year: k.Year - 1, Month: time.December}
	}
	return PeriodKey{Year: k.Year, Month: k.Month - 1}
}

// Start returns the first day of the period.
func (k PeriodKey) Start() Date {
	return NewDate(k.Year, int(k.Month), 1)
}

// End returns the last day of the period.
func (k PeriodKey) End() Date {
	first := time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
	return Date{Time: first.AddDate(0, 1, -1)}
}

// Contains reports whether d falls inside the period.
func (k PeriodKey) Contains(d Date) bool {
	return d.Year() == k.Year && time.Month(d.Month()) == k.Month
}

// Compare orders two keys chronologically: -1, 0 or 1.
func (k PeriodKey) Compare(o PeriodKey) int {
	switch {
	case k.Year != o.Year:
		if k.Year < o.Year {
			return -1
		}
		return 1
	case k.Month != o.Month:
		if k.Month < o.Month {
			return -1
		}
		return 1
	}
	return 0
}

// PeriodState is the lifecycle state of a fiscal period. CLOSED is terminal.
type PeriodState string

const (
	PeriodOpen   PeriodState = "OPEN"
	PeriodClosed PeriodState = "CLOSED"
)

// Period is a fiscal month tracked by the registry.
type Period struct {
	Key            PeriodKey
	State          PeriodState
	OpeningBalance Money
	Snapshot       *ClosingSnapshot // nil while OPEN
}

// ClosingMethod selects which balance figure the surplus retention taxes.
type ClosingMethod string

const (
	// BeforeSalary: the captured bank balance does not yet contain the new
	// salary; the surplus base is the captured balance minus the buffer.
	BeforeSalary ClosingMethod = "before_salary"
	// AfterSalary: the captured bank balance already contains the new
	// salary, which is subtracted back out before taxing the surplus.
	AfterSalary ClosingMethod = "after_salary"
)

// Validate checks the method is one of the two known values.
func (m ClosingMethod) Validate() error {
	switch m {
	case BeforeSalary, AfterSalary:
		return nil
	}
	return fmt.Errorf("unknown closing method %q", string(m))
}

// ClosingSnapshot is the immutable record of a closed period. Its field set
// is a stable schema read by reporting and export tooling.
type ClosingSnapshot struct {
	ClosedAt        time.Time
	Method          ClosingMethod
	CapturedBalance Money // real bank balance entered by the user
	NewSalary       Money
	SurplusPctBP    int64 // retention percentages in basis points, for audit
	SalaryPctBP     int64
	SurplusRetained Money
	SalaryRetained  Money
	Consequences    Money // total of rule-triggered retention entries
	TotalIncome     Money
	TotalExpense    Money // positive magnitude
	ClosingBalance  Money
	NextSalary      Money
	Deviation       Money // ledger-expected balance minus captured balance
	Notes           string
}
