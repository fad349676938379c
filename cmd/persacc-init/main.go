// Command persacc-init bootstraps a fresh ledger: it opens the first fiscal
// period with its opening balance and seeds a starter category set. Running
// it against a ledger that already has a period chain is an error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"persacc/internal/cli"
	"persacc/internal/core"
	applog "persacc/internal/log"
	"persacc/internal/periods"
	"persacc/internal/storage"
)

var starterCategories = []core.Category{
	{Name: "Salary", Movement: core.Income},
	{Name: "Groceries", Movement: core.Expense, DefaultRelevance: core.Necessary},
	{Name: "Housing", Movement: core.Expense, DefaultRelevance: core.Necessary},
	{Name: "Transport", Movement: core.Expense, DefaultRelevance: core.Necessary},
	{Name: "Leisure", Movement: core.Expense, DefaultRelevance: core.Superfluous},
	{Name: "Subscriptions", Movement: core.Expense, DefaultRelevance: core.Superfluous},
	{Name: "Savings", Movement: core.Transfer},
}

func main() {
	var (
		periodFlag  = flag.String("period", "", "first fiscal period, YYYY-MM (required)")
		openingFlag = flag.String("opening", "0.00", "opening balance, e.g. 1234.56")
		skipSeed    = flag.Bool("no-seed", false, "do not seed the starter categories")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if *periodFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: persacc-init -period YYYY-MM [-opening 1234.56] [-no-seed]")
		os.Exit(2)
	}
	key, err := core.ParsePeriodKey(*periodFlag)
	if err != nil {
		logger.Error("Invalid period", applog.FieldError, err)
		os.Exit(2)
	}
	opening, err := core.ParseMoney(*openingFlag)
	if err != nil {
		logger.Error("Invalid opening balance", applog.FieldError, err)
		os.Exit(2)
	}

	repo := cli.OpenRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()
	registry := periods.NewRegistry(repo)

	p, err := registry.Bootstrap(ctx, key, opening)
	if err != nil {
		logger.Error("Bootstrap failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Opened first fiscal period",
		applog.FieldPeriod, p.Key.String(), "opening_balance", opening.String())

	if !*skipSeed {
		seeded := seedCategories(ctx, logger, repo)
		logger.Info("Seeded starter categories", "created", seeded)
	}
}

func seedCategories(ctx context.Context, logger *applog.Logger, repo *storage.Repository) int {
	q := repo.Queries()
	created := 0
	for _, c := range starterCategories {
		c.Active = true
		if _, err := q.CategoryByName(ctx, c.Name); err == nil {
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			logger.Error("Category lookup failed", applog.FieldCategory, c.Name, applog.FieldError, err)
			os.Exit(1)
		}
		if _, err := q.InsertCategory(ctx, c); err != nil {
			logger.Error("Category seed failed", applog.FieldCategory, c.Name, applog.FieldError, err)
			os.Exit(1)
		}
		created++
	}
	return created
}
