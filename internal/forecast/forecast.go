// Package forecast projects the monthly series forward. It is a read-only
// consumer of KPI output and never sees the ledger.
package forecast

import (
	"fmt"

	"persacc/internal/core"
)

// Point is one observed or projected month.
type Point struct {
	Period core.PeriodKey
	Value  core.Money
}

// Forecaster projects horizon months past the last observation.
type Forecaster interface {
	Forecast(history []Point, horizon int) ([]Point, error)
}

// LeastSquares fits a straight line through the history and extends it.
// Cheap and transparent; good enough for a single household's trend line.
type LeastSquares struct{}

func (LeastSquares) Forecast(history []Point, horizon int) ([]Point, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("need at least 2 observations, have %d", len(history))
	}
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	for i := 1; i < len(history); i++ {
		if history[i].Period != history[i-1].Period.Next() {
			return nil, fmt.Errorf("history must be consecutive months, %s does not follow %s",
				history[i].Period, history[i-1].Period)
		}
	}

	// x is the month index, y the value in cents
	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range history {
		x, y := float64(i), float64(p.Value.Cents)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil, fmt.Errorf("degenerate history")
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	out := make([]Point, 0, horizon)
	key := history[len(history)-1].Period
	for i := 0; i < horizon; i++ {
		key = key.Next()
		x := float64(len(history) + i)
		cents := int64(roundHalfAway(slope*x + intercept))
		out = append(out, Point{Period: key, Value: core.Money{Cents: cents}})
	}
	return out, nil
}

func roundHalfAway(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
