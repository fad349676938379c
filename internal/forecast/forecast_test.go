package forecast

import (
	"testing"
	"time"

	"persacc/internal/core"
)

func series(startMonth time.Month, cents ...int64) []Point {
	key := core.PeriodKey{Year: 2025, Month: startMonth}
	out := make([]Point, 0, len(cents))
	for _, c := range cents {
		out = append(out, Point{Period: key, Value: core.Money{Cents: c}})
		key = key.Next()
	}
	return out
}

func TestLinearTrend(t *testing.T) {
	// perfectly linear: 100, 200, 300 → 400, 500
	history := series(time.January, 10_000, 20_000, 30_000)

	got, err := (LeastSquares{}).Forecast(history, 2)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("projected %d points, want 2", len(got))
	}
	if got[0].Period != (core.PeriodKey{Year: 2025, Month: time.April}) {
		t.Errorf("first projection period = %s, want 2025-04", got[0].Period)
	}
	if got[0].Value.Cents != 40_000 || got[1].Value.Cents != 50_000 {
		t.Errorf("projections = %d, %d, want 40000, 50000", got[0].Value.Cents, got[1].Value.Cents)
	}
}

func TestFlatSeries(t *testing.T) {
	history := series(time.March, 50_000, 50_000, 50_000, 50_000)
	got, err := (LeastSquares{}).Forecast(history, 1)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if got[0].Value.Cents != 50_000 {
		t.Errorf("flat series projected %d, want 50000", got[0].Value.Cents)
	}
}

func TestYearRollover(t *testing.T) {
	history := series(time.November, 10_000, 20_000)
	got, err := (LeastSquares{}).Forecast(history, 2)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if got[0].Period != (core.PeriodKey{Year: 2026, Month: time.January}) {
		t.Errorf("rollover period = %s, want 2026-01", got[0].Period)
	}
	if got[1].Period != (core.PeriodKey{Year: 2026, Month: time.February}) {
		t.Errorf("second period = %s, want 2026-02", got[1].Period)
	}
}

func TestDownwardTrendGoesNegative(t *testing.T) {
	history := series(time.January, 20_000, 10_000, 0)
	got, err := (LeastSquares{}).Forecast(history, 1)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if got[0].Value.Cents != -10_000 {
		t.Errorf("projection = %d, want -10000", got[0].Value.Cents)
	}
}

func TestRejectsBadInput(t *testing.T) {
	if _, err := (LeastSquares{}).Forecast(series(time.January, 10_000), 1); err == nil {
		t.Error("single observation accepted")
	}
	if _, err := (LeastSquares{}).Forecast(series(time.January, 10_000, 20_000), 0); err == nil {
		t.Error("zero horizon accepted")
	}

	gap := []Point{
		{Period: core.PeriodKey{Year: 2025, Month: time.January}, Value: core.Money{Cents: 1}},
		{Period: core.PeriodKey{Year: 2025, Month: time.March}, Value: core.Money{Cents: 2}},
	}
	if _, err := (LeastSquares{}).Forecast(gap, 1); err == nil {
		t.Error("gapped history accepted")
	}
}
