package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so queries can run inside
// or outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type AmortizationEntryRow struct {
	ID             int64
	SourceName     string
	TotalCents     int64
	PeriodCount    int64
	StartDate      string
	PerPeriodCents int64
}

type SavingsGoalRow struct {
	ID                int64
	Name              string
	TargetCents       int64
	ContributionCents int64
	SavedCents        int64
	Paused            int64
}

type TransactionRow struct {
	ID              int64
	OccurredOn      string
	MerchantText    string
	AmountCents     int64
	Status          string
	MatchedSourceID sql.NullInt64
	MatchScore      int64
}

type BudgetConfigRow struct {
	PeriodType        string
	AnchorDate        string
	SafeBudgetCents   int64
	FLEDeductionCents int64
	ManualOverride    int64
}

const createAmortizationEntry = `
INSERT INTO amortization_entries (id, source_name, total_cents, period_count, start_date, per_period_cents)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateAmortizationEntryParams struct {
	ID             int64
	SourceName     string
	TotalCents     int64
	PeriodCount    int64
	StartDate      string
	PerPeriodCents int64
}

func (q *Queries) CreateAmortizationEntry(ctx context.Context, arg CreateAmortizationEntryParams) error {
	_, err := q.db.ExecContext(ctx, createAmortizationEntry,
		arg.ID, arg.SourceName, arg.TotalCents, arg.PeriodCount, arg.StartDate, arg.PerPeriodCents)
	return err
}

const updateAmortizationEntry = `
UPDATE amortization_entries
SET source_name = ?, total_cents = ?, period_count = ?, start_date = ?, per_period_cents = ?
WHERE id = ?
`

type UpdateAmortizationEntryParams struct {
	SourceName     string
	TotalCents     int64
	PeriodCount    int64
	StartDate      string
	PerPeriodCents int64
	ID             int64
}

func (q *Queries) UpdateAmortizationEntry(ctx context.Context, arg UpdateAmortizationEntryParams) error {
	_, err := q.db.ExecContext(ctx, updateAmortizationEntry,
		arg.SourceName, arg.TotalCents, arg.PeriodCount, arg.StartDate, arg.PerPeriodCents, arg.ID)
	return err
}

const deleteAmortizationEntry = `
DELETE FROM amortization_entries WHERE id = ?
`

func (q *Queries) DeleteAmortizationEntry(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteAmortizationEntry, id)
	return err
}

const listAmortizationEntries = `
SELECT id, source_name, total_cents, period_count, start_date, per_period_cents
FROM amortization_entries
ORDER BY id
`

func (q *Queries) ListAmortizationEntries(ctx context.Context) ([]AmortizationEntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listAmortizationEntries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AmortizationEntryRow
	for rows.Next() {
		var r AmortizationEntryRow
		if err := rows.Scan(&r.ID, &r.SourceName, &r.TotalCents, &r.PeriodCount, &r.StartDate, &r.PerPeriodCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createSavingsGoal = `
INSERT INTO savings_goals (id, name, target_cents, contribution_cents, saved_cents, paused)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateSavingsGoalParams struct {
	ID                int64
	Name              string
	TargetCents       int64
	ContributionCents int64
	SavedCents        int64
	Paused            int64
}

func (q *Queries) CreateSavingsGoal(ctx context.Context, arg CreateSavingsGoalParams) error {
	_, err := q.db.ExecContext(ctx, createSavingsGoal,
		arg.ID, arg.Name, arg.TargetCents, arg.ContributionCents, arg.SavedCents, arg.Paused)
	return err
}

const updateSavingsGoal = `
UPDATE savings_goals
SET name = ?, target_cents = ?, contribution_cents = ?, saved_cents = ?, paused = ?
WHERE id = ?
`

type UpdateSavingsGoalParams struct {
	Name              string
	TargetCents       int64
	ContributionCents int64
	SavedCents        int64
	Paused            int64
	ID                int64
}

func (q *Queries) UpdateSavingsGoal(ctx context.Context, arg UpdateSavingsGoalParams) error {
	_, err := q.db.ExecContext(ctx, updateSavingsGoal,
		arg.Name, arg.TargetCents, arg.ContributionCents, arg.SavedCents, arg.Paused, arg.ID)
	return err
}

const deleteSavingsGoal = `
DELETE FROM savings_goals WHERE id = ?
`

func (q *Queries) DeleteSavingsGoal(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteSavingsGoal, id)
	return err
}

const listSavingsGoals = `
SELECT id, name, target_cents, contribution_cents, saved_cents, paused
FROM savings_goals
ORDER BY id
`

func (q *Queries) ListSavingsGoals(ctx context.Context) ([]SavingsGoalRow, error) {
	rows, err := q.db.QueryContext(ctx, listSavingsGoals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SavingsGoalRow
	for rows.Next() {
		var r SavingsGoalRow
		if err := rows.Scan(&r.ID, &r.Name, &r.TargetCents, &r.ContributionCents, &r.SavedCents, &r.Paused); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createTransaction = `
INSERT INTO transactions (occurred_on, merchant_text, amount_cents, status, matched_source_id, match_score)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateTransactionParams struct {
	OccurredOn      string
	MerchantText    string
	AmountCents     int64
	Status          string
	MatchedSourceID sql.NullInt64
	MatchScore      int64
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.OccurredOn, arg.MerchantText, arg.AmountCents, arg.Status, arg.MatchedSourceID, arg.MatchScore)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getTransaction = `
SELECT id, occurred_on, merchant_text, amount_cents, status, matched_source_id, match_score
FROM transactions
WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var r TransactionRow
	err := row.Scan(&r.ID, &r.OccurredOn, &r.MerchantText, &r.AmountCents, &r.Status, &r.MatchedSourceID, &r.MatchScore)
	return r, err
}

const updateTransactionStatus = `
UPDATE transactions SET status = ? WHERE id = ?
`

func (q *Queries) UpdateTransactionStatus(ctx context.Context, status string, id int64) error {
	_, err := q.db.ExecContext(ctx, updateTransactionStatus, status, id)
	return err
}

const listTransactionsByStatus = `
SELECT id, occurred_on, merchant_text, amount_cents, status, matched_source_id, match_score
FROM transactions
WHERE status = ?
ORDER BY occurred_on, id
`

func (q *Queries) ListTransactionsByStatus(ctx context.Context, status string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

const listTransactions = `
SELECT id, occurred_on, merchant_text, amount_cents, status, matched_source_id, match_score
FROM transactions
ORDER BY occurred_on DESC, id DESC
LIMIT ?
`

func (q *Queries) ListTransactions(ctx context.Context, limit int64) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]TransactionRow, error) {
	var items []TransactionRow
	for rows.Next() {
		var r TransactionRow
		if err := rows.Scan(&r.ID, &r.OccurredOn, &r.MerchantText, &r.AmountCents, &r.Status, &r.MatchedSourceID, &r.MatchScore); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getBudgetConfig = `
SELECT period_type, anchor_date, safe_budget_cents, fle_deduction_cents, manual_override
FROM budget_config
WHERE id = 1
`

func (q *Queries) GetBudgetConfig(ctx context.Context) (BudgetConfigRow, error) {
	row := q.db.QueryRowContext(ctx, getBudgetConfig)
	var r BudgetConfigRow
	err := row.Scan(&r.PeriodType, &r.AnchorDate, &r.SafeBudgetCents, &r.FLEDeductionCents, &r.ManualOverride)
	return r, err
}

const upsertBudgetConfig = `
INSERT INTO budget_config (id, period_type, anchor_date, safe_budget_cents, fle_deduction_cents, manual_override, updated_at)
VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (id) DO UPDATE SET
    period_type = excluded.period_type,
    anchor_date = excluded.anchor_date,
    safe_budget_cents = excluded.safe_budget_cents,
    fle_deduction_cents = excluded.fle_deduction_cents,
    manual_override = excluded.manual_override,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertBudgetConfigParams struct {
	PeriodType        string
	AnchorDate        string
	SafeBudgetCents   int64
	FLEDeductionCents int64
	ManualOverride    int64
}

func (q *Queries) UpsertBudgetConfig(ctx context.Context, arg UpsertBudgetConfigParams) error {
	_, err := q.db.ExecContext(ctx, upsertBudgetConfig,
		arg.PeriodType, arg.AnchorDate, arg.SafeBudgetCents, arg.FLEDeductionCents, arg.ManualOverride)
	return err
}

const getRolloverIndex = `
SELECT last_rollover_index FROM rollover_state WHERE id = 1
`

func (q *Queries) GetRolloverIndex(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, getRolloverIndex)
	var idx int64
	err := row.Scan(&idx)
	return idx, err
}

const setRolloverIndex = `
UPDATE rollover_state SET last_rollover_index = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1
`

func (q *Queries) SetRolloverIndex(ctx context.Context, idx int64) error {
	_, err := q.db.ExecContext(ctx, setRolloverIndex, idx)
	return err
}
