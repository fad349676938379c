package core

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriodKey(t *testing.T) {
	k, err := ParsePeriodKey("2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Year != 2025 || k.Month != time.March {
		t.Fatalf("got %v", k)
	}
	if k.String() != "2025-03" {
		t.Fatalf("String() = %q", k.String())
	}

	for _, bad := range []string{"", "2025", "2025-13", "2025-00", "xx-01", "2025-3-1"} {
		if _, err := ParsePeriodKey(bad); err == nil {
			t.Errorf("ParsePeriodKey(%q) expected error", bad)
		}
	}
}

func TestPeriodKeyNextPrev(t *testing.T) {
	dec := PeriodKey{Year: 2025, Month: time.December}
	if got := dec.Next(); got != (PeriodKey{Year: 2026, Month: time.January}) {
		t.Fatalf("Next() across year = %v", got)
	}
	jan := PeriodKey{Year: 2026, Month: time.January}
	if got := jan.Prev(); got != dec {
		t.Fatalf("Prev() across year = %v", got)
	}
	if got := (PeriodKey{Year: 2025, Month: time.May}).Next(); got.String() != "2025-06" {
		t.Fatalf("Next() = %v", got)
	}
}

func TestPeriodKeyBounds(t *testing.T) {
	k := PeriodKey{Year: 2024, Month: time.February}
	if got := k.Start().ISO(); got != "2024-02-01" {
		t.Fatalf("Start() = %s", got)
	}
	if got := k.End().ISO(); got != "2024-02-29" { // leap year
		t.Fatalf("End() = %s", got)
	}
	if !k.Contains(NewDate(2024, 2, 15)) {
		t.Fatal("Contains should accept a mid-month date")
	}
	if k.Contains(NewDate(2024, 3, 1)) {
		t.Fatal("Contains should reject a date from the next month")
	}
}

func validTransaction() Transaction {
	return Transaction{
		RealDate:       NewDate(2025, 4, 10),
		AccountingDate: NewDate(2025, 4, 10),
		Period:         PeriodKey{Year: 2025, Month: time.April},
		Movement:       Expense,
		CategoryID:     1,
		Concept:        "groceries",
		Amount:         Money{Cents: -2150},
		Relevance:      Necessary,
		Liquid:         true,
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"zero amount", func(tr *Transaction) { tr.Amount = Money{} }, ErrInvalidAmount},
		{"positive expense", func(tr *Transaction) { tr.Amount = Money{Cents: 100} }, ErrInvalidAmount},
		{"negative income", func(tr *Transaction) { tr.Movement = Income }, ErrInvalidAmount},
		{"bad movement", func(tr *Transaction) { tr.Movement = "WAT"; tr.Relevance = "" }, ErrInvalidMovement},
		{"relevance on income", func(tr *Transaction) {
			tr.Movement = Income
			tr.Amount = Money{Cents: 100}
		}, ErrInvalidRelevance},
		{"empty concept", func(tr *Transaction) { tr.Concept = "  " }, ErrEmptyConcept},
		{"period mismatch", func(tr *Transaction) {
			tr.Period = PeriodKey{Year: 2025, Month: time.May}
		}, ErrInvalidPeriod},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := validTransaction()
			tc.mutate(&tr)
			err := tr.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransactionCategoryRequired(t *testing.T) {
	tr := validTransaction()
	tr.CategoryID = 0
	if err := tr.Validate(); err == nil {
		t.Fatal("user entry without category should be rejected")
	}
	tr.Origin = "retention:surplus"
	tr.Movement = Transfer
	tr.Relevance = ""
	if err := tr.Validate(); err != nil {
		t.Fatalf("system entry without category should be accepted: %v", err)
	}
}

func TestSignAmount(t *testing.T) {
	if m, err := SignAmount(Income, 100); err != nil || m.Cents != 100 {
		t.Fatalf("income: %v %v", m, err)
	}
	if m, err := SignAmount(Expense, 100); err != nil || m.Cents != -100 {
		t.Fatalf("expense: %v %v", m, err)
	}
	if m, err := SignAmount(Transfer, 250); err != nil || m.Cents != -250 {
		t.Fatalf("transfer: %v %v", m, err)
	}
	if _, err := SignAmount(Income, 0); err == nil {
		t.Fatal("zero magnitude should be rejected")
	}
	if _, err := SignAmount(Income, -5); err == nil {
		t.Fatal("negative magnitude should be rejected")
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "Groceries", Movement: Expense, Active: true}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Category{Name: "", Movement: Expense}).Validate(); err == nil {
		t.Fatal("empty name should be rejected")
	}
	if err := (Category{Name: "x", Movement: "NOPE"}).Validate(); err == nil {
		t.Fatal("bad movement should be rejected")
	}
}
