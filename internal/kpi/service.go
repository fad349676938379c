// Package kpi aggregates the ledger into per-period and per-year figures.
// Aggregations are pure reads; results are cached and invalidated whenever
// the ledger changes.
package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"persacc/internal/cache"
	"persacc/internal/core"
	"persacc/internal/storage"
)

// Summary holds the monthly figures. TotalExpense is a positive magnitude;
// entries carry their signed amounts in the ledger.
type Summary struct {
	Period         core.PeriodKey
	OpeningBalance core.Money
	TotalIncome    core.Money
	TotalExpense   core.Money
	Net            core.Money
	LiquidBalance  core.Money // opening balance plus every liquid entry
	Relevance      []RelevanceShare
	Categories     []CategoryTotal
}

// RelevanceShare is one slice of the expense pie. ShareBP is the slice's
// share of total expense in basis points (10000 = 100%).
type RelevanceShare struct {
	Code    core.RelevanceCode
	Amount  core.Money
	ShareBP int64
}

type CategoryTotal struct {
	CategoryID int64
	Name       string
	Amount     core.Money // positive magnitude
	Entries    int
}

// MonthTotal is one row of the yearly series.
type MonthTotal struct {
	Period  core.PeriodKey
	Income  core.Money
	Expense core.Money
	Net     core.Money
	Entries int
}

type YearSummary struct {
	Year         int
	Months       [12]MonthTotal
	TotalIncome  core.Money
	TotalExpense core.Money
	Net          core.Money
	BestMonth    *core.PeriodKey // highest net among months with entries
	WorstMonth   *core.PeriodKey
	TopCategory  *CategoryTotal // largest expense category of the year
}

type Service struct {
	repo        *storage.Repository
	periodCache *cache.LRU[Summary]
	yearCache   *cache.LRU[YearSummary]
}

func NewService(repo *storage.Repository) *Service {
	return &Service{
		repo:        repo,
		periodCache: cache.NewLRU[Summary](64, 10*time.Minute),
		yearCache:   cache.NewLRU[YearSummary](16, 10*time.Minute),
	}
}

// StartSweeper runs cache expiry in the background until ctx is done.
func (s *Service) StartSweeper(ctx context.Context) {
	go s.periodCache.Sweep(ctx, time.Minute)
	go s.yearCache.Sweep(ctx, time.Minute)
}

// LedgerChanged drops every cached aggregation touching the given period.
func (s *Service) LedgerChanged(period core.PeriodKey) {
	s.periodCache.Delete(periodCacheKey(period))
	s.yearCache.Delete(yearCacheKey(period.Year))
	slog.Debug("KPI cache invalidated", "period", period.String())
}

func periodCacheKey(key core.PeriodKey) string { return "period:" + key.String() }
func yearCacheKey(year int) string             { return fmt.Sprintf("year:%d", year) }

// Aggregate computes the monthly summary, serving from cache when fresh.
func (s *Service) Aggregate(ctx context.Context, key core.PeriodKey) (Summary, error) {
	if cached, ok := s.periodCache.Get(periodCacheKey(key)); ok {
		return cached, nil
	}
	sum, err := s.aggregate(ctx, key)
	if err != nil {
		return Summary{}, err
	}
	s.periodCache.Set(periodCacheKey(key), sum)
	return sum, nil
}

// AggregateTx computes the monthly summary inside an existing storage
// transaction, bypassing the cache. The closing engine uses it so the
// figures it commits are the ones visible to that same transaction.
func AggregateTx(ctx context.Context, q *storage.Queries, key core.PeriodKey) (Summary, error) {
	period, err := q.GetPeriod(ctx, key)
	if err != nil {
		return Summary{}, fmt.Errorf("load period %s: %w", key, err)
	}
	entries, err := q.TransactionsByPeriod(ctx, key)
	if err != nil {
		return Summary{}, fmt.Errorf("load entries for %s: %w", key, err)
	}
	cats, err := q.Categories(ctx, false)
	if err != nil {
		return Summary{}, fmt.Errorf("load categories: %w", err)
	}
	return summarize(key, period.OpeningBalance, entries, cats), nil
}

func (s *Service) aggregate(ctx context.Context, key core.PeriodKey) (Summary, error) {
	return AggregateTx(ctx, s.repo.Queries(), key)
}

func summarize(key core.PeriodKey, opening core.Money, entries []core.Transaction, cats []core.Category) Summary {
	sum := Summary{Period: key, OpeningBalance: opening, LiquidBalance: opening}

	relevance := make(map[core.RelevanceCode]core.Money)
	byCategory := make(map[int64]*CategoryTotal)
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	for _, t := range entries {
		switch t.Movement {
		case core.Income:
			sum.TotalIncome = sum.TotalIncome.Add(t.Amount)
		case core.Expense:
			magnitude := t.Amount.Abs()
			sum.TotalExpense = sum.TotalExpense.Add(magnitude)
			if t.Relevance != "" {
				relevance[t.Relevance] = relevance[t.Relevance].Add(magnitude)
			}
			if t.CategoryID != 0 {
				ct := byCategory[t.CategoryID]
				if ct == nil {
					ct = &CategoryTotal{CategoryID: t.CategoryID, Name: names[t.CategoryID]}
					byCategory[t.CategoryID] = ct
				}
				ct.Amount = ct.Amount.Add(magnitude)
				ct.Entries++
			}
		}
		if t.Liquid {
			sum.LiquidBalance = sum.LiquidBalance.Add(t.Amount)
		}
	}
	sum.Net = sum.TotalIncome.Sub(sum.TotalExpense)

	for _, code := range core.RelevanceCodes {
		amount, ok := relevance[code]
		if !ok {
			continue
		}
		share := int64(0)
		if sum.TotalExpense.Cents > 0 {
			share = (amount.Cents*10_000 + sum.TotalExpense.Cents/2) / sum.TotalExpense.Cents
		}
		sum.Relevance = append(sum.Relevance, RelevanceShare{Code: code, Amount: amount, ShareBP: share})
	}

	for _, ct := range byCategory {
		sum.Categories = append(sum.Categories, *ct)
	}
	sortCategoryTotals(sum.Categories)
	return sum
}

// largest spend first, name as tiebreak
func sortCategoryTotals(totals []CategoryTotal) {
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Amount.Cents != totals[j].Amount.Cents {
			return totals[i].Amount.Cents > totals[j].Amount.Cents
		}
		return totals[i].Name < totals[j].Name
	})
}

// Year computes the yearly series with best and worst month by net result.
func (s *Service) Year(ctx context.Context, year int) (YearSummary, error) {
	if cached, ok := s.yearCache.Get(yearCacheKey(year)); ok {
		return cached, nil
	}

	q := s.repo.Queries()
	entries, err := q.TransactionsByYear(ctx, year)
	if err != nil {
		return YearSummary{}, fmt.Errorf("load entries for %d: %w", year, err)
	}
	cats, err := q.Categories(ctx, false)
	if err != nil {
		return YearSummary{}, fmt.Errorf("load categories: %w", err)
	}

	ys := YearSummary{Year: year}
	for m := time.January; m <= time.December; m++ {
		ys.Months[m-1].Period = core.PeriodKey{Year: year, Month: m}
	}

	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	byCategory := make(map[int64]*CategoryTotal)

	for _, t := range entries {
		row := &ys.Months[t.Period.Month-1]
		row.Entries++
		switch t.Movement {
		case core.Income:
			row.Income = row.Income.Add(t.Amount)
			ys.TotalIncome = ys.TotalIncome.Add(t.Amount)
		case core.Expense:
			magnitude := t.Amount.Abs()
			row.Expense = row.Expense.Add(magnitude)
			ys.TotalExpense = ys.TotalExpense.Add(magnitude)
			if t.CategoryID != 0 {
				ct := byCategory[t.CategoryID]
				if ct == nil {
					ct = &CategoryTotal{CategoryID: t.CategoryID, Name: names[t.CategoryID]}
					byCategory[t.CategoryID] = ct
				}
				ct.Amount = ct.Amount.Add(magnitude)
				ct.Entries++
			}
		}
	}
	ys.Net = ys.TotalIncome.Sub(ys.TotalExpense)

	for i := range ys.Months {
		row := &ys.Months[i]
		row.Net = row.Income.Sub(row.Expense)
		if row.Entries == 0 {
			continue
		}
		if ys.BestMonth == nil || row.Net.Cents > monthNet(ys, *ys.BestMonth) {
			key := row.Period
			ys.BestMonth = &key
		}
		if ys.WorstMonth == nil || row.Net.Cents < monthNet(ys, *ys.WorstMonth) {
			key := row.Period
			ys.WorstMonth = &key
		}
	}

	for _, ct := range byCategory {
		if ys.TopCategory == nil || ct.Amount.Cents > ys.TopCategory.Amount.Cents {
			top := *ct
			ys.TopCategory = &top
		}
	}

	s.yearCache.Set(yearCacheKey(year), ys)
	return ys, nil
}

func monthNet(ys YearSummary, key core.PeriodKey) int64 {
	return ys.Months[key.Month-1].Net.Cents
}
