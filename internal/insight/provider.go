// Package insight turns a closed period's figures into a short narrative
// analysis. Providers are read-only consumers: they see snapshots and
// aggregates, never the ledger itself.
package insight

import (
	"context"
	"fmt"
	"strings"

	"persacc/internal/core"
	"persacc/internal/kpi"
)

// Request is the material a provider works from.
type Request struct {
	Period   core.PeriodKey
	Snapshot core.ClosingSnapshot
	Summary  kpi.Summary
}

type Provider interface {
	// Generate returns the analysis text for a closed period.
	Generate(ctx context.Context, req Request) (string, error)
	// Model names what produced the text, for storage alongside it.
	Model() string
}

// BuildPrompt renders the request into the prompt sent to the model. Kept
// separate so the wording is testable without a live client.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a personal finance assistant. Analyze the closed month %s and give concise, actionable observations in 3-5 bullet points.\n\n", req.Period)
	fmt.Fprintf(&b, "Income: %s\n", req.Summary.TotalIncome)
	fmt.Fprintf(&b, "Expenses: %s\n", req.Summary.TotalExpense)
	fmt.Fprintf(&b, "Net result: %s\n", req.Summary.Net)
	fmt.Fprintf(&b, "Closing balance: %s\n", req.Snapshot.ClosingBalance)
	fmt.Fprintf(&b, "Retained to savings: %s surplus, %s from salary\n",
		req.Snapshot.SurplusRetained, req.Snapshot.SalaryRetained)
	if req.Snapshot.Consequences.Cents > 0 {
		fmt.Fprintf(&b, "Consequence retentions triggered: %s\n", req.Snapshot.Consequences)
	}
	if len(req.Summary.Relevance) > 0 {
		b.WriteString("\nSpending quality breakdown:\n")
		for _, r := range req.Summary.Relevance {
			fmt.Fprintf(&b, "- %s: %s (%d.%02d%% of expenses)\n",
				relevanceLabel(r.Code), r.Amount, r.ShareBP/100, r.ShareBP%100)
		}
	}
	if len(req.Summary.Categories) > 0 {
		b.WriteString("\nTop categories:\n")
		for i, c := range req.Summary.Categories {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %s (%d entries)\n", c.Name, c.Amount, c.Entries)
		}
	}
	return b.String()
}

func relevanceLabel(code core.RelevanceCode) string {
	switch code {
	case core.Necessary:
		return "necessary"
	case core.Like:
		return "liked"
	case core.Superfluous:
		return "superfluous"
	case core.Nonsense:
		return "nonsense"
	}
	return string(code)
}

// Noop produces a plain numeric recap without calling any model. Used when
// no API key is configured.
type Noop struct{}

func (Noop) Model() string { return "none" }

func (Noop) Generate(_ context.Context, req Request) (string, error) {
	return fmt.Sprintf(
		"Month %s closed with income %s, expenses %s and a closing balance of %s. Retained %s surplus and %s from salary.",
		req.Period, req.Summary.TotalIncome, req.Summary.TotalExpense,
		req.Snapshot.ClosingBalance, req.Snapshot.SurplusRetained, req.Snapshot.SalaryRetained,
	), nil
}
