// Package ledger is the write side of the transaction log. Every mutation
// runs inside a storage transaction and re-checks the owning period's state
// there, so an edit can never slip under a closing commit in progress.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"persacc/internal/core"
	"persacc/internal/periods"
	"persacc/internal/storage"
)

// WriteListener is notified after a successful ledger mutation, outside the
// storage transaction. The KPI cache uses it for invalidation.
type WriteListener interface {
	LedgerChanged(period core.PeriodKey)
}

type Service struct {
	repo      *storage.Repository
	listeners []WriteListener
}

func NewService(repo *storage.Repository, listeners ...WriteListener) *Service {
	return &Service{repo: repo, listeners: listeners}
}

// Input is a user-entered transaction before signing and period derivation.
type Input struct {
	RealDate       core.Date
	AccountingDate core.Date // zero value: same as RealDate
	Movement       core.MovementType
	CategoryID     int64
	Concept        string
	AmountCents    int64 // magnitude; the movement type decides the sign
	Relevance      core.RelevanceCode
	Liquid         bool
}

func (in Input) toTransaction() (core.Transaction, error) {
	acct := in.AccountingDate
	if acct.IsZero() {
		acct = in.RealDate
	}
	amount, err := core.SignAmount(in.Movement, in.AmountCents)
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		RealDate:       in.RealDate,
		AccountingDate: acct,
		Period:         core.PeriodKeyOf(acct.Time),
		Movement:       in.Movement,
		CategoryID:     in.CategoryID,
		Concept:        in.Concept,
		Amount:         amount,
		Relevance:      in.Relevance,
		Liquid:         in.Liquid,
	}
	return t, t.Validate()
}

// Create inserts a user transaction. The fiscal period is derived from the
// accounting date; inserting into a closed period fails with ErrPeriodClosed.
func (s *Service) Create(ctx context.Context, in Input) (int64, error) {
	t, err := in.toTransaction()
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.repo.RunInTx(ctx, func(q *storage.Queries) error {
		if err := guardOpen(ctx, q, t.Period); err != nil {
			return err
		}
		id, err = q.InsertTransaction(ctx, t)
		return err
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", id, "period", t.Period.String(), "movement", string(t.Movement),
		"amount_cents", t.Amount.Cents, "concept", t.Concept)
	s.notify(t.Period)
	return id, nil
}

// Update is a partial update. Nil fields keep their current value. Both the
// current period of the entry and the period it would move into must be
// open.
type Update struct {
	RealDate       *core.Date
	AccountingDate *core.Date
	Movement       *core.MovementType
	CategoryID     *int64
	Concept        *string
	AmountCents    *int64 // magnitude
	Relevance      *core.RelevanceCode
	Liquid         *bool
}

func (s *Service) Update(ctx context.Context, id int64, u Update) error {
	var before, after core.PeriodKey
	err := s.repo.RunInTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		before = t.Period
		if err := guardOpen(ctx, q, t.Period); err != nil {
			return err
		}

		if u.RealDate != nil {
			t.RealDate = *u.RealDate
		}
		if u.AccountingDate != nil {
			t.AccountingDate = *u.AccountingDate
		}
		if u.Movement != nil {
			t.Movement = *u.Movement
		}
		if u.CategoryID != nil {
			t.CategoryID = *u.CategoryID
		}
		if u.Concept != nil {
			t.Concept = *u.Concept
		}
		if u.Relevance != nil {
			t.Relevance = *u.Relevance
		}
		if u.Liquid != nil {
			t.Liquid = *u.Liquid
		}
		if u.AmountCents != nil {
			amount, err := core.SignAmount(t.Movement, *u.AmountCents)
			if err != nil {
				return err
			}
			t.Amount = amount
		} else if u.Movement != nil {
			// keep the magnitude, retarget the sign
			amount, err := core.SignAmount(t.Movement, t.Amount.Abs().Cents)
			if err != nil {
				return err
			}
			t.Amount = amount
		}
		t.Period = core.PeriodKeyOf(t.AccountingDate.Time)
		after = t.Period

		if t.Period != before {
			if err := guardOpen(ctx, q, t.Period); err != nil {
				return err
			}
		}
		if err := t.Validate(); err != nil {
			return err
		}
		return q.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "period", after.String())
	s.notify(before)
	if after != before {
		s.notify(after)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	var period core.PeriodKey
	err := s.repo.RunInTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		period = t.Period
		if err := guardOpen(ctx, q, t.Period); err != nil {
			return err
		}
		return q.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "period", period.String())
	s.notify(period)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.repo.Queries().GetTransaction(ctx, id)
}

// Filter selects transactions. Exactly one selector should be set; period
// wins over date range over category.
type Filter struct {
	Period     *core.PeriodKey
	From, To   *core.Date
	CategoryID *int64
}

func (s *Service) Query(ctx context.Context, f Filter) ([]core.Transaction, error) {
	q := s.repo.Queries()
	switch {
	case f.Period != nil:
		return q.TransactionsByPeriod(ctx, *f.Period)
	case f.From != nil && f.To != nil:
		return q.TransactionsByDateRange(ctx, *f.From, *f.To)
	case f.CategoryID != nil:
		return q.TransactionsByCategory(ctx, *f.CategoryID)
	}
	return nil, fmt.Errorf("query filter is empty")
}

// ─── Categories ──────────────────────────────────────────────────────────

func (s *Service) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	c.Active = true
	if err := c.Validate(); err != nil {
		return 0, err
	}
	return s.repo.Queries().InsertCategory(ctx, c)
}

func (s *Service) Categories(ctx context.Context, onlyActive bool) ([]core.Category, error) {
	return s.repo.Queries().Categories(ctx, onlyActive)
}

// DeactivateCategory soft-deletes: historical entries keep their reference.
func (s *Service) DeactivateCategory(ctx context.Context, id int64) error {
	return s.repo.Queries().DeactivateCategory(ctx, id)
}

func (s *Service) notify(period core.PeriodKey) {
	for _, l := range s.listeners {
		l.LedgerChanged(period)
	}
}

// guardOpen rejects mutations into a closed period. It runs inside the same
// transaction as the mutation it protects.
func guardOpen(ctx context.Context, q *storage.Queries, key core.PeriodKey) error {
	closed, err := periods.IsClosedTx(ctx, q, key)
	if err != nil {
		return err
	}
	if closed {
		return fmt.Errorf("period %s: %w", key, core.ErrPeriodClosed)
	}
	return nil
}
