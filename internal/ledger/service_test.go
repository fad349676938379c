package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"persacc/internal/core"
	"persacc/internal/periods"
	"persacc/internal/storage"
)

func testService(t *testing.T) (*Service, *periods.Registry, int64) {
	t.Helper()
	repo, err := storage.Open(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	reg := periods.NewRegistry(repo)
	if _, err := reg.Bootstrap(ctx, core.PeriodKey{Year: 2025, Month: time.March}, core.Money{Cents: 100_000}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	catID, err := repo.Queries().InsertCategory(ctx, core.Category{
		Name: "Groceries", Movement: core.Expense, Active: true,
	})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}
	return NewService(repo), reg, catID
}

func expenseInput(catID int64, day int, cents int64) Input {
	return Input{
		RealDate:    core.Date{Time: time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC)},
		Movement:    core.Expense,
		CategoryID:  catID,
		Concept:     "weekly shop",
		AmountCents: cents,
		Relevance:   core.Necessary,
		Liquid:      true,
	}
}

func TestCreateSignsAndDerivesPeriod(t *testing.T) {
	svc, _, catID := testService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, expenseInput(catID, 12, 4_500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != -4_500 {
		t.Errorf("expense amount = %d, want -4500", got.Amount.Cents)
	}
	if got.Period != (core.PeriodKey{Year: 2025, Month: time.March}) {
		t.Errorf("period = %s, want 2025-03", got.Period)
	}
	if got.AccountingDate.ISO() != "2025-03-12" {
		t.Errorf("accounting date defaulted to %s, want real date", got.AccountingDate.ISO())
	}
}

func TestAccountingDateOverridesPeriod(t *testing.T) {
	svc, _, catID := testService(t)
	ctx := context.Background()

	in := expenseInput(catID, 1, 2_000)
	in.RealDate = core.Date{Time: time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)}
	in.AccountingDate = core.Date{Time: time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)}

	id, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := svc.Get(ctx, id)
	if got.Period != (core.PeriodKey{Year: 2025, Month: time.March}) {
		t.Errorf("period = %s, want 2025-03 (from accounting date)", got.Period)
	}
}

func TestClosedPeriodIsImmutable(t *testing.T) {
	svc, reg, catID := testService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, expenseInput(catID, 5, 1_000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	march := core.PeriodKey{Year: 2025, Month: time.March}
	if err := reg.Close(ctx, march, core.ClosingSnapshot{
		ClosedAt:       time.Now().UTC(),
		Method:         core.BeforeSalary,
		ClosingBalance: core.Money{Cents: 99_000},
	}); err != nil {
		t.Fatalf("close period: %v", err)
	}

	if _, err := svc.Create(ctx, expenseInput(catID, 20, 500)); !errors.Is(err, core.ErrPeriodClosed) {
		t.Errorf("create into closed period: err = %v, want ErrPeriodClosed", err)
	}
	concept := "edited"
	if err := svc.Update(ctx, id, Update{Concept: &concept}); !errors.Is(err, core.ErrPeriodClosed) {
		t.Errorf("update in closed period: err = %v, want ErrPeriodClosed", err)
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, core.ErrPeriodClosed) {
		t.Errorf("delete in closed period: err = %v, want ErrPeriodClosed", err)
	}

	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("entry disappeared after rejected mutations: %v", err)
	}
	if got.Concept != "weekly shop" {
		t.Errorf("concept changed to %q despite closed period", got.Concept)
	}
}

func TestUpdateCannotMoveIntoClosedPeriod(t *testing.T) {
	svc, reg, catID := testService(t)
	ctx := context.Background()

	march := core.PeriodKey{Year: 2025, Month: time.March}
	if err := reg.Close(ctx, march, core.ClosingSnapshot{
		ClosedAt: time.Now().UTC(), Method: core.BeforeSalary,
		ClosingBalance: core.Money{Cents: 100_000},
	}); err != nil {
		t.Fatalf("close period: %v", err)
	}

	in := expenseInput(catID, 3, 1_500)
	in.RealDate = core.Date{Time: time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC)}
	id, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("create in open april: %v", err)
	}

	back := core.Date{Time: time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC)}
	err = svc.Update(ctx, id, Update{AccountingDate: &back})
	if !errors.Is(err, core.ErrPeriodClosed) {
		t.Errorf("moving entry into closed period: err = %v, want ErrPeriodClosed", err)
	}
	got, _ := svc.Get(ctx, id)
	if got.Period != (core.PeriodKey{Year: 2025, Month: time.April}) {
		t.Errorf("entry moved to %s despite rejection", got.Period)
	}
}

func TestUpdateMovementRetargetsSign(t *testing.T) {
	svc, _, catID := testService(t)
	ctx := context.Background()

	incomeCat, err := svc.CreateCategory(ctx, core.Category{Name: "Refunds", Movement: core.Income})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	id, err := svc.Create(ctx, expenseInput(catID, 10, 2_500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	income := core.Income
	none := core.RelevanceCode("")
	if err := svc.Update(ctx, id, Update{Movement: &income, CategoryID: &incomeCat, Relevance: &none}); err != nil {
		t.Fatalf("update movement: %v", err)
	}
	got, _ := svc.Get(ctx, id)
	if got.Amount.Cents != 2_500 {
		t.Errorf("amount after movement flip = %d, want +2500", got.Amount.Cents)
	}
}

func TestQuerySelectors(t *testing.T) {
	svc, _, catID := testService(t)
	ctx := context.Background()

	for day, cents := range map[int]int64{2: 1_000, 9: 2_000, 23: 3_000} {
		if _, err := svc.Create(ctx, expenseInput(catID, day, cents)); err != nil {
			t.Fatalf("create day %d: %v", day, err)
		}
	}

	march := core.PeriodKey{Year: 2025, Month: time.March}
	byPeriod, err := svc.Query(ctx, Filter{Period: &march})
	if err != nil {
		t.Fatalf("query by period: %v", err)
	}
	if len(byPeriod) != 3 {
		t.Errorf("by period: %d entries, want 3", len(byPeriod))
	}

	from := core.Date{Time: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)}
	to := core.Date{Time: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)}
	byRange, err := svc.Query(ctx, Filter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("query by range: %v", err)
	}
	if len(byRange) != 1 || byRange[0].Amount.Cents != -2_000 {
		t.Errorf("by range: got %d entries, want the day-9 entry alone", len(byRange))
	}

	byCat, err := svc.Query(ctx, Filter{CategoryID: &catID})
	if err != nil {
		t.Fatalf("query by category: %v", err)
	}
	if len(byCat) != 3 {
		t.Errorf("by category: %d entries, want 3", len(byCat))
	}

	if _, err := svc.Query(ctx, Filter{}); err == nil {
		t.Error("empty filter accepted, want error")
	}
}

type recordingListener struct {
	periods []core.PeriodKey
}

func (r *recordingListener) LedgerChanged(p core.PeriodKey) { r.periods = append(r.periods, p) }

func TestListenersNotifiedOnWrite(t *testing.T) {
	repo, err := storage.Open(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	reg := periods.NewRegistry(repo)
	if _, err := reg.Bootstrap(ctx, core.PeriodKey{Year: 2025, Month: time.March}, core.Money{}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	catID, err := repo.Queries().InsertCategory(ctx, core.Category{Name: "Groceries", Movement: core.Expense, Active: true})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}

	rec := &recordingListener{}
	svc := NewService(repo, rec)

	id, err := svc.Create(ctx, expenseInput(catID, 4, 700))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(rec.periods) != 2 {
		t.Fatalf("listener called %d times, want 2", len(rec.periods))
	}
	march := core.PeriodKey{Year: 2025, Month: time.March}
	if rec.periods[0] != march || rec.periods[1] != march {
		t.Errorf("listener periods = %v, want [2025-03 2025-03]", rec.periods)
	}
}
