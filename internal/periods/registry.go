// Package periods is the authoritative registry of fiscal months: which
// one is open, which are closed, and the immutable snapshot of every
// closed one. All components query it explicitly instead of caching a
// "current month" anywhere else.
package periods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"persacc/internal/core"
	"persacc/internal/storage"
)

type Registry struct {
	repo *storage.Repository
}

func NewRegistry(repo *storage.Repository) *Registry {
	return &Registry{repo: repo}
}

// Open returns the single OPEN period, or ErrNoOpenPeriod when the chain is
// empty and Bootstrap has not run yet.
func (r *Registry) Open(ctx context.Context) (core.Period, error) {
	return r.repo.Queries().CurrentOpenPeriod(ctx)
}

// Get returns one period, open or closed.
func (r *Registry) Get(ctx context.Context, key core.PeriodKey) (core.Period, error) {
	return r.repo.Queries().GetPeriod(ctx, key)
}

// List returns the whole chain in chronological order.
func (r *Registry) List(ctx context.Context) ([]core.Period, error) {
	return r.repo.Queries().Periods(ctx)
}

// IsClosed reports whether the period is closed. A period the registry has
// never seen is not closed.
func (r *Registry) IsClosed(ctx context.Context, key core.PeriodKey) (bool, error) {
	return IsClosedTx(ctx, r.repo.Queries(), key)
}

// IsClosedTx is the transaction-scoped variant, used by the ledger service
// so the check-then-act stays inside the same storage transaction as the
// mutation it gates.
func IsClosedTx(ctx context.Context, q *storage.Queries, key core.PeriodKey) (bool, error) {
	p, err := q.GetPeriod(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.State == core.PeriodClosed, nil
}

// Bootstrap opens the very first period of the chain. It refuses to run on
// a non-empty registry.
func (r *Registry) Bootstrap(ctx context.Context, key core.PeriodKey, openingBalance core.Money) (core.Period, error) {
	if err := key.Validate(); err != nil {
		return core.Period{}, err
	}
	var out core.Period
	err := r.repo.RunInTx(ctx, func(q *storage.Queries) error {
		existing, err := q.Periods(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("registry already has %d periods: bootstrap is a first-run operation", len(existing))
		}
		if err := q.InsertOpenPeriod(ctx, key, openingBalance); err != nil {
			return err
		}
		out = core.Period{Key: key, State: core.PeriodOpen, OpeningBalance: openingBalance}
		return nil
	})
	if err != nil {
		return core.Period{}, err
	}
	slog.InfoContext(ctx, "Bootstrapped first fiscal period",
		"period", key.String(), "opening_cents", openingBalance.Cents)
	return out, nil
}

// Close transitions the named period to CLOSED, persists its snapshot and
// opens the successor seeded with the closing balance, all in one storage
// transaction.
func (r *Registry) Close(ctx context.Context, key core.PeriodKey, snap core.ClosingSnapshot) error {
	return r.repo.RunInTx(ctx, func(q *storage.Queries) error {
		return CloseTx(ctx, q, key, snap)
	})
}

// CloseTx performs the close inside an existing transaction. The closing
// engine calls this as the final step of its commit so the snapshot, the
// generated entries and the successor period land atomically.
//
// Ordering guards: the target must be the current OPEN period. A second
// close of the same period reports ErrAlreadyClosed and changes nothing.
func CloseTx(ctx context.Context, q *storage.Queries, key core.PeriodKey, snap core.ClosingSnapshot) error {
	open, err := q.CurrentOpenPeriod(ctx)
	if err != nil {
		return err
	}
	if open.Key != key {
		if closed, cerr := IsClosedTx(ctx, q, key); cerr == nil && closed {
			return fmt.Errorf("period %s: %w", key, core.ErrAlreadyClosed)
		}
		return fmt.Errorf("period %s is not the open period %s: %w", key, open.Key, core.ErrOutOfOrder)
	}

	if err := q.MarkPeriodClosed(ctx, key, snap); err != nil {
		return err
	}
	if err := q.InsertOpenPeriod(ctx, key.Next(), snap.ClosingBalance); err != nil {
		return err
	}
	return nil
}
