// Package rules holds the retention and consequence arithmetic of a monthly
// closing. Evaluation is pure: it maps the closing inputs and configuration
// to retention figures and an ordered list of system-generated entries, and
// writes nothing. The closing engine persists the result in one transaction.
package rules

import (
	"fmt"
	"strings"

	"persacc/internal/config"
	"persacc/internal/core"
)

// Origin labels carried by system-generated entries. Consequence entries use
// OriginRule plus the rule name, so every entry traces back to what produced it.
const (
	OriginSalary           = "closing:salary"
	OriginSurplusRetention = "retention:surplus"
	OriginSalaryRetention  = "retention:salary"
	OriginRule             = "rule:"
)

// Input is everything a closing evaluation reads. Expenses are the closing
// period's expense entries, used for consequence rule matching.
type Input struct {
	Period        core.PeriodKey
	Captured      core.Money
	NewSalary     core.Money
	Expenses      []core.Transaction
	CategoryNames map[int64]string
	Config        config.Closing
}

// CategoryIDs are the reserved bookkeeping categories the generated entries
// are filed under.
type CategoryIDs struct {
	Salary           int64
	SurplusRetention int64
	SalaryRetention  int64
	Consequences     int64
}

// Result carries the retention figures and the entries to insert, in the
// order they must be written: surplus retention (dated the last day of the
// closing period), then the successor's salary income, salary retention and
// consequence entries (all dated day 1 of the successor).
type Result struct {
	SurplusBase     core.Money
	SurplusRetained core.Money
	SalaryRetained  core.Money
	Consequences    core.Money
	ClosingBalance  core.Money
	Entries         []core.Transaction
}

// Evaluate computes a closing. The surplus base depends on the configured
// method: captured balance minus buffer when the balance was captured before
// salary receipt, additionally minus the new salary when captured after. A
// negative surplus base retains no surplus; the salary retention does not
// depend on the surplus. The buffer shrinks only the taxed base, it never
// leaves the account, so the closing balance starts from the captured
// balance, not from the surplus base.
func Evaluate(in Input, cats CategoryIDs) (Result, error) {
	if err := in.Config.Method.Validate(); err != nil {
		return Result{}, err
	}
	if in.Captured.IsNegative() {
		return Result{}, fmt.Errorf("captured balance %s: %w", in.Captured, core.ErrInvalidAmount)
	}
	if in.NewSalary.IsNegative() {
		return Result{}, fmt.Errorf("new salary %s: %w", in.NewSalary, core.ErrInvalidAmount)
	}

	var res Result

	res.SurplusBase = in.Captured.Sub(in.Config.MinimumBuffer)
	if in.Config.Method == core.AfterSalary {
		res.SurplusBase = res.SurplusBase.Sub(in.NewSalary)
	}
	if in.Config.EnableRetentions {
		res.SalaryRetained = in.NewSalary.BasisPoints(in.Config.SalaryPctBP)
		if !res.SurplusBase.IsNegative() {
			res.SurplusRetained = res.SurplusBase.BasisPoints(in.Config.SurplusPctBP)
		}
	}

	cash := in.Captured
	if in.Config.Method == core.AfterSalary {
		// the captured balance already contains the salary
		cash = cash.Sub(in.NewSalary)
	}
	res.ClosingBalance = cash.
		Sub(res.SurplusRetained).
		Add(in.NewSalary).
		Sub(res.SalaryRetained)

	successor := in.Period.Next()

	if res.SurplusRetained.Cents > 0 {
		res.Entries = append(res.Entries, transfer(
			in.Period.End(), in.Period, cats.SurplusRetention,
			fmt.Sprintf("Surplus retention (%s%%)", pct(in.Config.SurplusPctBP)),
			res.SurplusRetained, OriginSurplusRetention,
		))
	}
	if in.NewSalary.Cents > 0 {
		res.Entries = append(res.Entries, core.Transaction{
			RealDate:       successor.Start(),
			AccountingDate: successor.Start(),
			Period:         successor,
			Movement:       core.Income,
			CategoryID:     cats.Salary,
			Concept:        fmt.Sprintf("Salary %s", successor),
			Amount:         in.NewSalary,
			Liquid:         false, // already part of the successor's opening balance
			Origin:         OriginSalary,
		})
	}
	if res.SalaryRetained.Cents > 0 {
		res.Entries = append(res.Entries, transfer(
			successor.Start(), successor, cats.SalaryRetention,
			fmt.Sprintf("Salary retention (%s%%)", pct(in.Config.SalaryPctBP)),
			res.SalaryRetained, OriginSalaryRetention,
		))
	}

	if in.Config.EnableConsequences {
		for _, rule := range in.Config.Rules {
			if !rule.Active {
				continue
			}
			amount, matches := applyRule(rule, in.Expenses, in.CategoryNames)
			if matches == 0 || amount.Cents <= 0 {
				continue
			}
			res.Consequences = res.Consequences.Add(amount)
			res.Entries = append(res.Entries, transfer(
				successor.Start(), successor, cats.Consequences,
				fmt.Sprintf("Consequence %q (%d matches)", rule.Name, matches),
				amount, OriginRule+rule.Name,
			))
		}
	}

	return res, nil
}

// applyRule sums the rule's action over every matching expense.
func applyRule(rule config.Rule, expenses []core.Transaction, names map[int64]string) (core.Money, int) {
	var total core.Money
	matches := 0
	for _, t := range expenses {
		if t.Movement != core.Expense || t.SystemGenerated() {
			continue
		}
		if !rule.Matches(t.Relevance, names[t.CategoryID], t.Concept) {
			continue
		}
		matches++
		switch rule.Action {
		case config.ActionPercent:
			total = total.Add(t.Amount.Abs().BasisPoints(rule.ValueBP))
		case config.ActionFixed:
			total = total.Add(core.Money{Cents: rule.FixedCents})
		}
	}
	return total, matches
}

func transfer(date core.Date, period core.PeriodKey, categoryID int64, concept string, amount core.Money, origin string) core.Transaction {
	return core.Transaction{
		RealDate:       date,
		AccountingDate: date,
		Period:         period,
		Movement:       core.Transfer,
		CategoryID:     categoryID,
		Concept:        concept,
		Amount:         amount.Abs().Neg(),
		Liquid:         false,
		Origin:         origin,
	}
}

// pct renders basis points as a percentage, trimming trailing zeros.
func pct(bp int64) string {
	s := fmt.Sprintf("%d.%02d", bp/100, bp%100)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
