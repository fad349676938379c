package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"persacc/internal/core"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query set works
// in autocommit mode and inside RunInTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db dbtx
}

// ─── Ledger ──────────────────────────────────────────────────────────────

const ledgerColumns = `id, real_date, accounting_date, period, movement,
	category_id, concept, amount_cents, relevance, liquid, origin`

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger (real_date, accounting_date, period, movement,
			category_id, concept, amount_cents, relevance, liquid, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RealDate.ISO(), t.AccountingDate.ISO(), t.Period.String(), string(t.Movement),
		nullableID(t.CategoryID), t.Concept, t.Amount.Cents, string(t.Relevance),
		boolToInt(t.Liquid), t.Origin)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert transaction id: %w", err)
	}
	return id, nil
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE ledger
		SET real_date = ?, accounting_date = ?, period = ?, movement = ?,
			category_id = ?, concept = ?, amount_cents = ?, relevance = ?,
			liquid = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		t.RealDate.ISO(), t.AccountingDate.ISO(), t.Period.String(), string(t.Movement),
		nullableID(t.CategoryID), t.Concept, t.Amount.Cents, string(t.Relevance),
		boolToInt(t.Liquid), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, t.ID)
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM ledger WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, id)
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return t, err
}

func (q *Queries) TransactionsByPeriod(ctx context.Context, key core.PeriodKey) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE period = ? ORDER BY accounting_date, id`,
		key.String())
}

func (q *Queries) TransactionsByYear(ctx context.Context, year int) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE substr(period, 1, 4) = ? ORDER BY accounting_date, id`,
		fmt.Sprintf("%04d", year))
}

func (q *Queries) TransactionsByDateRange(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+ledgerColumns+` FROM ledger
		 WHERE accounting_date >= ? AND accounting_date <= ?
		 ORDER BY accounting_date, id`,
		from.ISO(), to.ISO())
}

func (q *Queries) TransactionsByCategory(ctx context.Context, categoryID int64) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE category_id = ? ORDER BY accounting_date, id`,
		categoryID)
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		realDate   string
		acctDate   string
		period     string
		movement   string
		categoryID sql.NullInt64
		relevance  string
		liquid     int
	)
	err := s.Scan(&t.ID, &realDate, &acctDate, &period, &movement,
		&categoryID, &t.Concept, &t.Amount.Cents, &relevance, &liquid, &t.Origin)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.RealDate, err = core.ParseDate(realDate); err != nil {
		return core.Transaction{}, fmt.Errorf("scan real date: %w", err)
	}
	if t.AccountingDate, err = core.ParseDate(acctDate); err != nil {
		return core.Transaction{}, fmt.Errorf("scan accounting date: %w", err)
	}
	if t.Period, err = core.ParsePeriodKey(period); err != nil {
		return core.Transaction{}, fmt.Errorf("scan period: %w", err)
	}
	t.Movement = core.MovementType(movement)
	t.CategoryID = categoryID.Int64
	t.Relevance = core.RelevanceCode(relevance)
	t.Liquid = liquid != 0
	return t, nil
}

// ─── Categories ──────────────────────────────────────────────────────────

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (name, movement, active, default_concept,
			default_amount_cents, default_relevance)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, string(c.Movement), boolToInt(c.Active), c.DefaultConcept,
		c.DefaultAmount.Cents, string(c.DefaultRelevance))
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert category id: %w", err)
	}
	return id, nil
}

func (q *Queries) DeactivateCategory(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `UPDATE categories SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate category: %w", err)
	}
	return requireRow(res, id)
}

// Categories returns categories ordered by usage (most used first, then by
// name), with usage statistics joined in from the ledger.
func (q *Queries) Categories(ctx context.Context, onlyActive bool) ([]core.Category, error) {
	query := `
		SELECT c.id, c.name, c.movement, c.active, c.default_concept,
			c.default_amount_cents, c.default_relevance,
			COUNT(l.id) AS usage_count, COALESCE(MAX(l.real_date), '') AS last_used
		FROM categories c
		LEFT JOIN ledger l ON l.category_id = c.id
	`
	if onlyActive {
		query += ` WHERE c.active = 1`
	}
	query += ` GROUP BY c.id ORDER BY usage_count DESC, c.name`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CategoryByName(ctx context.Context, name string) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.movement, c.active, c.default_concept,
			c.default_amount_cents, c.default_relevance,
			0 AS usage_count, '' AS last_used
		FROM categories c WHERE c.name = ?`, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	return c, err
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.movement, c.active, c.default_concept,
			c.default_amount_cents, c.default_relevance,
			0 AS usage_count, '' AS last_used
		FROM categories c WHERE c.id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return c, err
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c         core.Category
		movement  string
		active    int
		relevance string
		lastUsed  string
	)
	err := s.Scan(&c.ID, &c.Name, &movement, &active, &c.DefaultConcept,
		&c.DefaultAmount.Cents, &relevance, &c.UsageCount, &lastUsed)
	if err != nil {
		return core.Category{}, err
	}
	c.Movement = core.MovementType(movement)
	c.Active = active != 0
	c.DefaultRelevance = core.RelevanceCode(relevance)
	if lastUsed != "" {
		if c.LastUsed, err = core.ParseDate(lastUsed); err != nil {
			return core.Category{}, fmt.Errorf("scan last used: %w", err)
		}
	}
	return c, nil
}

// ─── Periods ─────────────────────────────────────────────────────────────

const periodColumns = `period, state, opening_cents, closed_at, method,
	captured_cents, salary_cents, surplus_pct_bp, salary_pct_bp,
	surplus_ret_cents, salary_ret_cents, consequences_cents,
	income_cents, expense_cents, closing_cents, next_salary_cents,
	deviation_cents, notes`

func (q *Queries) GetPeriod(ctx context.Context, key core.PeriodKey) (core.Period, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM periods WHERE period = ?`, key.String())
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, fmt.Errorf("period %s: %w", key, core.ErrNotFound)
	}
	return p, err
}

// CurrentOpenPeriod returns the single OPEN period.
func (q *Queries) CurrentOpenPeriod(ctx context.Context) (core.Period, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM periods WHERE state = 'OPEN'`)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, core.ErrNoOpenPeriod
	}
	return p, err
}

func (q *Queries) InsertOpenPeriod(ctx context.Context, key core.PeriodKey, opening core.Money) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO periods (period, state, opening_cents) VALUES (?, 'OPEN', ?)`,
		key.String(), opening.Cents)
	if err != nil {
		return fmt.Errorf("insert open period: %w", err)
	}
	return nil
}

// MarkPeriodClosed transitions an OPEN period to CLOSED and stores its
// snapshot. The caller (period registry) enforces ordering invariants; the
// WHERE clause on state is the last line of defense against double closing.
func (q *Queries) MarkPeriodClosed(ctx context.Context, key core.PeriodKey, s core.ClosingSnapshot) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE periods
		SET state = 'CLOSED', closed_at = ?, method = ?,
			captured_cents = ?, salary_cents = ?, surplus_pct_bp = ?, salary_pct_bp = ?,
			surplus_ret_cents = ?, salary_ret_cents = ?, consequences_cents = ?,
			income_cents = ?, expense_cents = ?, closing_cents = ?,
			next_salary_cents = ?, deviation_cents = ?, notes = ?
		WHERE period = ? AND state = 'OPEN'`,
		s.ClosedAt.UTC().Format(time.RFC3339), string(s.Method),
		s.CapturedBalance.Cents, s.NewSalary.Cents, s.SurplusPctBP, s.SalaryPctBP,
		s.SurplusRetained.Cents, s.SalaryRetained.Cents, s.Consequences.Cents,
		s.TotalIncome.Cents, s.TotalExpense.Cents, s.ClosingBalance.Cents,
		s.NextSalary.Cents, s.Deviation.Cents, s.Notes,
		key.String())
	if err != nil {
		return fmt.Errorf("close period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close period rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("period %s: %w", key, core.ErrAlreadyClosed)
	}
	return nil
}

func (q *Queries) Periods(ctx context.Context) ([]core.Period, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM periods ORDER BY period`)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var out []core.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPeriod(s scanner) (core.Period, error) {
	var (
		p        core.Period
		period   string
		state    string
		closedAt sql.NullString
		snap     core.ClosingSnapshot
		method   string
	)
	err := s.Scan(&period, &state, &p.OpeningBalance.Cents, &closedAt, &method,
		&snap.CapturedBalance.Cents, &snap.NewSalary.Cents,
		&snap.SurplusPctBP, &snap.SalaryPctBP,
		&snap.SurplusRetained.Cents, &snap.SalaryRetained.Cents, &snap.Consequences.Cents,
		&snap.TotalIncome.Cents, &snap.TotalExpense.Cents, &snap.ClosingBalance.Cents,
		&snap.NextSalary.Cents, &snap.Deviation.Cents, &snap.Notes)
	if err != nil {
		return core.Period{}, err
	}
	if p.Key, err = core.ParsePeriodKey(period); err != nil {
		return core.Period{}, fmt.Errorf("scan period key: %w", err)
	}
	p.State = core.PeriodState(state)
	if p.State == core.PeriodClosed {
		snap.Method = core.ClosingMethod(method)
		if closedAt.Valid {
			if snap.ClosedAt, err = time.Parse(time.RFC3339, closedAt.String); err != nil {
				return core.Period{}, fmt.Errorf("scan closed_at: %w", err)
			}
		}
		p.Snapshot = &snap
	}
	return p, nil
}

// ─── AI analysis ─────────────────────────────────────────────────────────

func (q *Queries) SaveAnalysis(ctx context.Context, periodType, period, analysis, model string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ai_analysis (period_type, period, analysis, model, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		periodType, period, analysis, model)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (q *Queries) GetAnalysis(ctx context.Context, periodType, period string) (string, error) {
	var analysis string
	err := q.db.QueryRowContext(ctx,
		`SELECT analysis FROM ai_analysis WHERE period_type = ? AND period = ?`,
		periodType, period).Scan(&analysis)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("analysis %s %s: %w", periodType, period, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get analysis: %w", err)
	}
	return analysis, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("id %d: %w", id, core.ErrNotFound)
	}
	return nil
}
