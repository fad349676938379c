// Package mirror exports closed-period snapshots to an external spreadsheet.
// Mirroring is a read-only consumer of the registry: a mirror failure never
// blocks or unwinds a closing.
package mirror

import (
	"context"

	"persacc/internal/core"
)

// Writer appends one row per closed period and returns a reference to where
// it landed.
type Writer interface {
	AppendSnapshot(ctx context.Context, key core.PeriodKey, snap core.ClosingSnapshot) (ref string, err error)
}

// row flattens a snapshot for the spreadsheet. Amounts are decimal units,
// which is what spreadsheet formulas expect.
func row(key core.PeriodKey, snap core.ClosingSnapshot) []any {
	return []any{
		key.String(),
		snap.ClosedAt.Format("2006-01-02"),
		string(snap.Method),
		centsToUnits(snap.CapturedBalance),
		centsToUnits(snap.TotalIncome),
		centsToUnits(snap.TotalExpense),
		centsToUnits(snap.SurplusRetained),
		centsToUnits(snap.SalaryRetained),
		centsToUnits(snap.Consequences),
		centsToUnits(snap.ClosingBalance),
		snap.Notes,
	}
}

func centsToUnits(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}
