package core

import (
	"testing"
	"time"
)

func TestParsePeriodKeyTable(t *testing.T) {
	cases := []struct {
		in   string
		want PeriodKey
		ok   bool
	}{
		{"2025-03", PeriodKey{2025, time.March}, true},
		{"2025-12", PeriodKey{2025, time.December}, true},
		{"2025-13", PeriodKey{}, false},
		{"2025-00", PeriodKey{}, false},
		{"2025", PeriodKey{}, false},
		{"2025-3", PeriodKey{}, false},
		{"", PeriodKey{}, false},
		{"march 2025", PeriodKey{}, false},
	}
	for _, tc := range cases {
		got, err := ParsePeriodKey(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("ParsePeriodKey(%q) error = %v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParsePeriodKey(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPeriodKeyNextPrevRollover(t *testing.T) {
	dec := PeriodKey{2025, time.December}
	jan := PeriodKey{2026, time.January}
	if got := dec.Next(); got != jan {
		t.Errorf("December.Next() = %v, want %v", got, jan)
	}
	if got := jan.Prev(); got != dec {
		t.Errorf("January.Prev() = %v, want %v", got, dec)
	}
	mar := PeriodKey{2025, time.March}
	if got := mar.Next().Prev(); got != mar {
		t.Errorf("Next().Prev() = %v, want %v", got, mar)
	}
}

func TestPeriodKeyStartEnd(t *testing.T) {
	feb := PeriodKey{2024, time.February} // leap year
	if got := feb.Start().ISO(); got != "2024-02-01" {
		t.Errorf("Start() = %s, want 2024-02-01", got)
	}
	if got := feb.End().ISO(); got != "2024-02-29" {
		t.Errorf("End() = %s, want 2024-02-29", got)
	}
	if got := (PeriodKey{2025, time.April}).End().ISO(); got != "2025-04-30" {
		t.Errorf("April End() = %s, want 2025-04-30", got)
	}
}

func TestPeriodKeyContains(t *testing.T) {
	mar := PeriodKey{2025, time.March}
	if !mar.Contains(NewDate(2025, 3, 1)) || !mar.Contains(NewDate(2025, 3, 31)) {
		t.Error("period does not contain its own boundary days")
	}
	if mar.Contains(NewDate(2025, 2, 28)) || mar.Contains(NewDate(2025, 4, 1)) {
		t.Error("period contains a day of a neighbouring month")
	}
}

func TestPeriodKeyCompare(t *testing.T) {
	a := PeriodKey{2025, time.March}
	b := PeriodKey{2025, time.April}
	c := PeriodKey{2026, time.January}
	if a.Compare(b) >= 0 || b.Compare(c) >= 0 {
		t.Error("earlier period does not compare less")
	}
	if c.Compare(a) <= 0 {
		t.Error("later year does not compare greater")
	}
	if a.Compare(a) != 0 {
		t.Error("period does not compare equal to itself")
	}
}

func TestPeriodKeyOf(t *testing.T) {
	got := PeriodKeyOf(time.Date(2025, time.July, 15, 10, 30, 0, 0, time.UTC))
	if got != (PeriodKey{2025, time.July}) {
		t.Errorf("PeriodKeyOf = %v, want 2025-07", got)
	}
}
