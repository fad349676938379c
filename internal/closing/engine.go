// Package closing drives the month-end workflow: a draft gathers the user's
// inputs, validation previews the retention math, and commit persists the
// whole closing atomically. The commit is the only writer that may touch a
// period's state, and everything it writes happens in one storage
// transaction: an interrupted commit leaves the period open and the ledger
// untouched.
package closing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"persacc/internal/config"
	"persacc/internal/core"
	"persacc/internal/kpi"
	"persacc/internal/ledger"
	"persacc/internal/periods"
	"persacc/internal/rules"
	"persacc/internal/storage"
)

type State string

const (
	StateDraft     State = "DRAFT"
	StateValidated State = "VALIDATED"
	StateCommitted State = "COMMITTED"
)

// Inputs are the user-provided figures of one closing run. Percentage
// overrides are optional; nil keeps the configured value.
type Inputs struct {
	Captured     core.Money
	NewSalary    core.Money
	NextSalary   *core.Money // expected salary of the period after next; defaults to NewSalary
	SurplusPctBP *int64
	SalaryPctBP  *int64
	Notes        string
}

// Draft is one in-flight closing. The configuration is snapshotted when the
// draft is created so a concurrent config edit cannot change the arithmetic
// mid-run. Any input change drops a VALIDATED draft back to DRAFT.
type Draft struct {
	ID        uuid.UUID
	Target    core.PeriodKey
	State     State
	CreatedAt time.Time
	Inputs    Inputs
	Config    config.Closing
	Preview   *rules.Result
}

// Notifier is told about a committed closing after the transaction lands.
// Delivery failures must not undo the closing.
type Notifier interface {
	PeriodClosed(ctx context.Context, key core.PeriodKey, snap core.ClosingSnapshot)
}

type Engine struct {
	repo       *storage.Repository
	configPath string
	notifier   Notifier
	listeners  []ledger.WriteListener

	mu     sync.Mutex
	drafts map[uuid.UUID]*Draft

	// commitHook runs inside the commit transaction, after the entries are
	// written and before the period flips. Only tests set it.
	commitHook func() error
}

func NewEngine(repo *storage.Repository, configPath string, notifier Notifier, listeners ...ledger.WriteListener) *Engine {
	return &Engine{
		repo:       repo,
		configPath: configPath,
		notifier:   notifier,
		listeners:  listeners,
		drafts:     make(map[uuid.UUID]*Draft),
	}
}

func (e *Engine) loadConfig() (config.Closing, error) {
	if e.configPath == "" {
		return config.Defaults(), nil
	}
	return config.LoadClosing(e.configPath)
}

// NewDraft opens a closing draft against the current open period.
func (e *Engine) NewDraft(ctx context.Context) (Draft, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return Draft{}, err
	}
	open, err := e.repo.Queries().CurrentOpenPeriod(ctx)
	if err != nil {
		return Draft{}, err
	}

	d := &Draft{
		ID:        uuid.New(),
		Target:    open.Key,
		State:     StateDraft,
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
	}
	e.mu.Lock()
	e.drafts[d.ID] = d
	e.mu.Unlock()

	slog.InfoContext(ctx, "Closing draft opened", "draft", d.ID.String(), "period", d.Target.String())
	return *d, nil
}

func (e *Engine) Get(id uuid.UUID) (Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[id]
	if !ok {
		return Draft{}, fmt.Errorf("draft %s: %w", id, core.ErrNotFound)
	}
	return *d, nil
}

// SetInputs stores the user's figures. A validated draft falls back to DRAFT
// and must be validated again.
func (e *Engine) SetInputs(id uuid.UUID, in Inputs) (Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[id]
	if !ok {
		return Draft{}, fmt.Errorf("draft %s: %w", id, core.ErrNotFound)
	}
	if d.State == StateCommitted {
		return Draft{}, fmt.Errorf("draft %s: %w", id, core.ErrAlreadyClosed)
	}
	d.Inputs = in
	d.State = StateDraft
	d.Preview = nil
	return *d, nil
}

// effectiveConfig applies the draft's per-run percentage overrides.
func (d *Draft) effectiveConfig() config.Closing {
	cfg := d.Config
	if d.Inputs.SurplusPctBP != nil {
		cfg.SurplusPctBP = *d.Inputs.SurplusPctBP
	}
	if d.Inputs.SalaryPctBP != nil {
		cfg.SalaryPctBP = *d.Inputs.SalaryPctBP
	}
	return cfg
}

// Validate checks the draft against the live ledger and previews the
// retention math. It fails when the inputs are negative, the target period
// is no longer the open one, or percentage overrides are out of range.
func (e *Engine) Validate(ctx context.Context, id uuid.UUID) (Draft, error) {
	e.mu.Lock()
	d, ok := e.drafts[id]
	e.mu.Unlock()
	if !ok {
		return Draft{}, fmt.Errorf("draft %s: %w", id, core.ErrNotFound)
	}
	if d.State == StateCommitted {
		return Draft{}, fmt.Errorf("draft %s: %w", id, core.ErrAlreadyClosed)
	}

	if err := validateInputs(d.Inputs); err != nil {
		return Draft{}, err
	}
	if err := e.checkTarget(ctx, d.Target); err != nil {
		return Draft{}, err
	}

	preview, err := e.evaluate(ctx, e.repo.Queries(), d)
	if err != nil {
		return Draft{}, err
	}

	e.mu.Lock()
	d.State = StateValidated
	d.Preview = &preview
	out := *d
	e.mu.Unlock()

	slog.InfoContext(ctx, "Closing draft validated",
		"draft", d.ID.String(), "period", d.Target.String(),
		"surplus_retained_cents", preview.SurplusRetained.Cents,
		"salary_retained_cents", preview.SalaryRetained.Cents,
		"closing_balance_cents", preview.ClosingBalance.Cents)
	return out, nil
}

func validateInputs(in Inputs) error {
	if in.Captured.IsNegative() {
		return fmt.Errorf("captured balance: %w", core.ErrInvalidAmount)
	}
	if in.NewSalary.IsNegative() {
		return fmt.Errorf("new salary: %w", core.ErrInvalidAmount)
	}
	if in.NextSalary != nil && in.NextSalary.IsNegative() {
		return fmt.Errorf("next salary: %w", core.ErrInvalidAmount)
	}
	for _, bp := range []*int64{in.SurplusPctBP, in.SalaryPctBP} {
		if bp != nil && (*bp < 0 || *bp > 10_000) {
			return fmt.Errorf("retention percentage override out of range: %w", core.ErrInvalidAmount)
		}
	}
	return nil
}

func (e *Engine) checkTarget(ctx context.Context, target core.PeriodKey) error {
	open, err := e.repo.Queries().CurrentOpenPeriod(ctx)
	if err != nil {
		return err
	}
	return matchTarget(open.Key, target)
}

func matchTarget(open, target core.PeriodKey) error {
	if open == target {
		return nil
	}
	if target.Compare(open) < 0 {
		return fmt.Errorf("period %s: %w", target, core.ErrAlreadyClosed)
	}
	return fmt.Errorf("period %s is not the open period (%s): %w", target, open, core.ErrOutOfOrder)
}

func (e *Engine) evaluate(ctx context.Context, q *storage.Queries, d *Draft) (rules.Result, error) {
	entries, err := q.TransactionsByPeriod(ctx, d.Target)
	if err != nil {
		return rules.Result{}, err
	}
	cats, err := q.Categories(ctx, false)
	if err != nil {
		return rules.Result{}, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	// Preview does not insert anything, so placeholder category ids are
	// fine; commit re-evaluates with the real ones.
	return rules.Evaluate(rules.Input{
		Period:        d.Target,
		Captured:      d.Inputs.Captured,
		NewSalary:     d.Inputs.NewSalary,
		Expenses:      entries,
		CategoryNames: names,
		Config:        d.effectiveConfig(),
	}, rules.CategoryIDs{})
}

// Commit runs the closing. The system-generated entries, the snapshot, the
// period flip and the successor's opening all land in a single
// transaction; any failure leaves the period open with no trace of the
// attempt and drops the draft back to DRAFT, so the figures must be
// validated again before the next attempt.
func (e *Engine) Commit(ctx context.Context, id uuid.UUID) (core.ClosingSnapshot, error) {
	e.mu.Lock()
	d, ok := e.drafts[id]
	if !ok {
		e.mu.Unlock()
		return core.ClosingSnapshot{}, fmt.Errorf("draft %s: %w", id, core.ErrNotFound)
	}
	if d.State != StateValidated {
		e.mu.Unlock()
		if d.State == StateCommitted {
			return core.ClosingSnapshot{}, fmt.Errorf("draft %s: %w", id, core.ErrAlreadyClosed)
		}
		return core.ClosingSnapshot{}, fmt.Errorf("draft %s is %s, validate it first", id, d.State)
	}
	draft := *d
	e.mu.Unlock()

	var snap core.ClosingSnapshot
	err := e.repo.RunInTx(ctx, func(q *storage.Queries) error {
		open, err := q.CurrentOpenPeriod(ctx)
		if err != nil {
			return err
		}
		if err := matchTarget(open.Key, draft.Target); err != nil {
			return err
		}

		agg, err := kpi.AggregateTx(ctx, q, draft.Target)
		if err != nil {
			return err
		}
		entries, err := q.TransactionsByPeriod(ctx, draft.Target)
		if err != nil {
			return err
		}
		catIDs, names, err := ensureReservedCategories(ctx, q)
		if err != nil {
			return err
		}

		res, err := rules.Evaluate(rules.Input{
			Period:        draft.Target,
			Captured:      draft.Inputs.Captured,
			NewSalary:     draft.Inputs.NewSalary,
			Expenses:      entries,
			CategoryNames: names,
			Config:        draft.effectiveConfig(),
		}, catIDs)
		if err != nil {
			return err
		}

		for _, entry := range res.Entries {
			if _, err := q.InsertTransaction(ctx, entry); err != nil {
				return fmt.Errorf("insert %s entry: %w", entry.Origin, err)
			}
		}

		if e.commitHook != nil {
			if err := e.commitHook(); err != nil {
				return err
			}
		}

		cfg := draft.effectiveConfig()
		nextSalary := draft.Inputs.NewSalary
		if draft.Inputs.NextSalary != nil {
			nextSalary = *draft.Inputs.NextSalary
		}
		snap = core.ClosingSnapshot{
			ClosedAt:        time.Now().UTC(),
			Method:          cfg.Method,
			CapturedBalance: draft.Inputs.Captured,
			NewSalary:       draft.Inputs.NewSalary,
			SurplusPctBP:    cfg.SurplusPctBP,
			SalaryPctBP:     cfg.SalaryPctBP,
			SurplusRetained: res.SurplusRetained,
			SalaryRetained:  res.SalaryRetained,
			Consequences:    res.Consequences,
			TotalIncome:     agg.TotalIncome,
			TotalExpense:    agg.TotalExpense,
			ClosingBalance:  res.ClosingBalance,
			NextSalary:      nextSalary,
			Deviation:       draft.Inputs.Captured.Sub(agg.LiquidBalance),
			Notes:           draft.Inputs.Notes,
		}
		return periods.CloseTx(ctx, q, draft.Target, snap)
	})
	if err != nil {
		e.mu.Lock()
		d.State = StateDraft
		d.Preview = nil
		e.mu.Unlock()
		return core.ClosingSnapshot{}, err
	}

	e.mu.Lock()
	d.State = StateCommitted
	e.mu.Unlock()

	successor := draft.Target.Next()
	for _, l := range e.listeners {
		l.LedgerChanged(draft.Target)
		l.LedgerChanged(successor)
	}
	if e.notifier != nil {
		e.notifier.PeriodClosed(ctx, draft.Target, snap)
	}

	slog.InfoContext(ctx, "Period closed",
		"period", draft.Target.String(), "successor", successor.String(),
		"closing_balance_cents", snap.ClosingBalance.Cents,
		"surplus_retained_cents", snap.SurplusRetained.Cents,
		"salary_retained_cents", snap.SalaryRetained.Cents)
	return snap, nil
}

// Discard drops an uncommitted draft.
func (e *Engine) Discard(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[id]
	if !ok {
		return fmt.Errorf("draft %s: %w", id, core.ErrNotFound)
	}
	if d.State == StateCommitted {
		return fmt.Errorf("draft %s: %w", id, core.ErrAlreadyClosed)
	}
	delete(e.drafts, id)
	return nil
}

// ensureReservedCategories resolves the bookkeeping categories generated
// entries are filed under, creating any that are missing.
func ensureReservedCategories(ctx context.Context, q *storage.Queries) (rules.CategoryIDs, map[int64]string, error) {
	var ids rules.CategoryIDs
	for _, want := range []struct {
		name     string
		movement core.MovementType
		dst      *int64
	}{
		{core.CategorySalary, core.Income, &ids.Salary},
		{core.CategorySurplusRetention, core.Transfer, &ids.SurplusRetention},
		{core.CategorySalaryRetention, core.Transfer, &ids.SalaryRetention},
		{core.CategoryConsequences, core.Transfer, &ids.Consequences},
	} {
		cat, err := q.CategoryByName(ctx, want.name)
		switch {
		case err == nil:
			*want.dst = cat.ID
		case errors.Is(err, core.ErrNotFound):
			id, err := q.InsertCategory(ctx, core.Category{Name: want.name, Movement: want.movement, Active: true})
			if err != nil {
				return rules.CategoryIDs{}, nil, err
			}
			*want.dst = id
		default:
			return rules.CategoryIDs{}, nil, err
		}
	}

	cats, err := q.Categories(ctx, false)
	if err != nil {
		return rules.CategoryIDs{}, nil, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return ids, names, nil
}
