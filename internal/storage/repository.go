package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// Snapshot is everything the in-memory ledgers need to resume after a
// restart.
type Snapshot struct {
	Entries          []core.AmortizationEntry
	Goals            []core.SavingsGoal
	LastRolloverIdx  int
	PeriodType       core.PeriodType
	AnchorDate       core.Date
	SafeBudgetCents  int64
	FLECents         int64
	ManualOverride   bool
	HaveBudgetConfig bool
}

// BudgetConfig is the persisted single-row budget configuration.
type BudgetConfig struct {
	PeriodType        core.PeriodType
	AnchorDate        core.Date
	SafeBudgetCents   int64
	FLEDeductionCents int64
	ManualOverride    bool
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadSnapshot reads the full ledger state for engine start-up.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	entryRows, err := r.queries.ListAmortizationEntries(ctx)
	if err != nil {
		return snap, fmt.Errorf("list amortization entries: %w", err)
	}
	for _, row := range entryRows {
		entry, err := entryFromRow(row)
		if err != nil {
			return snap, err
		}
		snap.Entries = append(snap.Entries, entry)
	}

	goalRows, err := r.queries.ListSavingsGoals(ctx)
	if err != nil {
		return snap, fmt.Errorf("list savings goals: %w", err)
	}
	for _, row := range goalRows {
		snap.Goals = append(snap.Goals, goalFromRow(row))
	}

	idx, err := r.queries.GetRolloverIndex(ctx)
	if err != nil {
		return snap, fmt.Errorf("get rollover index: %w", err)
	}
	snap.LastRolloverIdx = int(idx)

	cfg, err := r.GetBudgetConfig(ctx)
	switch {
	case err == nil:
		snap.PeriodType = cfg.PeriodType
		snap.AnchorDate = cfg.AnchorDate
		snap.SafeBudgetCents = cfg.SafeBudgetCents
		snap.FLECents = cfg.FLEDeductionCents
		snap.ManualOverride = cfg.ManualOverride
		snap.HaveBudgetConfig = true
	case errors.Is(err, core.ErrNotFound):
		// First run: no configuration yet, the caller seeds defaults.
	default:
		return snap, err
	}

	slog.InfoContext(ctx, "Ledger snapshot loaded",
		"entries", len(snap.Entries),
		"goals", len(snap.Goals),
		"rollover_index", snap.LastRolloverIdx,
		"configured", snap.HaveBudgetConfig)

	return snap, nil
}

// SaveEntry upserts one amortization entry under the engine-assigned ID.
func (r *SQLiteRepository) SaveEntry(ctx context.Context, e core.AmortizationEntry, isNew bool) error {
	if isNew {
		err := r.queries.CreateAmortizationEntry(ctx, CreateAmortizationEntryParams{
			ID:             e.ID,
			SourceName:     e.SourceName,
			TotalCents:     e.TotalCents,
			PeriodCount:    int64(e.PeriodCount),
			StartDate:      e.StartDate.ISO(),
			PerPeriodCents: e.PerPeriodCents,
		})
		if err != nil {
			return fmt.Errorf("create amortization entry: %w", err)
		}
		slog.InfoContext(ctx, "Amortization entry saved",
			"id", e.ID, "source_name", e.SourceName, "total_cents", e.TotalCents, "period_count", e.PeriodCount)
		return nil
	}
	err := r.queries.UpdateAmortizationEntry(ctx, UpdateAmortizationEntryParams{
		SourceName:     e.SourceName,
		TotalCents:     e.TotalCents,
		PeriodCount:    int64(e.PeriodCount),
		StartDate:      e.StartDate.ISO(),
		PerPeriodCents: e.PerPeriodCents,
		ID:             e.ID,
	})
	if err != nil {
		return fmt.Errorf("update amortization entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	if err := r.queries.DeleteAmortizationEntry(ctx, id); err != nil {
		return fmt.Errorf("delete amortization entry: %w", err)
	}
	return nil
}

// SaveGoal upserts one savings goal under the engine-assigned ID.
func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.SavingsGoal, isNew bool) error {
	if isNew {
		err := r.queries.CreateSavingsGoal(ctx, CreateSavingsGoalParams{
			ID:                g.ID,
			Name:              g.Name,
			TargetCents:       g.TargetCents,
			ContributionCents: g.ContributionCents,
			SavedCents:        g.SavedCents,
			Paused:            boolToInt(g.Paused),
		})
		if err != nil {
			return fmt.Errorf("create savings goal: %w", err)
		}
		slog.InfoContext(ctx, "Savings goal saved",
			"id", g.ID, "name", g.Name, "target_cents", g.TargetCents)
		return nil
	}
	err := r.queries.UpdateSavingsGoal(ctx, UpdateSavingsGoalParams{
		Name:              g.Name,
		TargetCents:       g.TargetCents,
		ContributionCents: g.ContributionCents,
		SavedCents:        g.SavedCents,
		Paused:            boolToInt(g.Paused),
		ID:                g.ID,
	})
	if err != nil {
		return fmt.Errorf("update savings goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id int64) error {
	if err := r.queries.DeleteSavingsGoal(ctx, id); err != nil {
		return fmt.Errorf("delete savings goal: %w", err)
	}
	return nil
}

// SaveGoals persists a batch of goal balances together with the rollover
// watermark in one transaction, so a crash between the two cannot replay or
// skip a rollover.
func (r *SQLiteRepository) SaveGoals(ctx context.Context, goals []core.SavingsGoal, rolloverIdx int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rollover tx: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	for _, g := range goals {
		err := qtx.UpdateSavingsGoal(ctx, UpdateSavingsGoalParams{
			Name:              g.Name,
			TargetCents:       g.TargetCents,
			ContributionCents: g.ContributionCents,
			SavedCents:        g.SavedCents,
			Paused:            boolToInt(g.Paused),
			ID:                g.ID,
		})
		if err != nil {
			return fmt.Errorf("update savings goal %d: %w", g.ID, err)
		}
	}
	if err := qtx.SetRolloverIndex(ctx, int64(rolloverIdx)); err != nil {
		return fmt.Errorf("set rollover index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollover tx: %w", err)
	}
	return nil
}

// CreateTransaction stores a classified transaction and returns its ID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var matched sql.NullInt64
	if t.MatchedSourceID != nil {
		matched = sql.NullInt64{Int64: *t.MatchedSourceID, Valid: true}
	}
	id, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		OccurredOn:      t.Date.ISO(),
		MerchantText:    t.MerchantText,
		AmountCents:     t.AmountCents,
		Status:          string(t.Status),
		MatchedSourceID: matched,
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return transactionFromRow(row)
}

func (r *SQLiteRepository) UpdateTransactionStatus(ctx context.Context, id int64, status core.ClassificationStatus) error {
	if err := r.queries.UpdateTransactionStatus(ctx, string(status), id); err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPendingTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByStatus(ctx, string(core.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	return transactionsFromRows(rows)
}

func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactionsFromRows(rows)
}

func (r *SQLiteRepository) GetBudgetConfig(ctx context.Context) (BudgetConfig, error) {
	row, err := r.queries.GetBudgetConfig(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return BudgetConfig{}, core.ErrNotFound
	}
	if err != nil {
		return BudgetConfig{}, fmt.Errorf("get budget config: %w", err)
	}
	anchor, err := core.ParseDate(row.AnchorDate)
	if err != nil {
		return BudgetConfig{}, fmt.Errorf("parse anchor date %q: %w", row.AnchorDate, err)
	}
	return BudgetConfig{
		PeriodType:        core.PeriodType(row.PeriodType),
		AnchorDate:        anchor,
		SafeBudgetCents:   row.SafeBudgetCents,
		FLEDeductionCents: row.FLEDeductionCents,
		ManualOverride:    row.ManualOverride != 0,
	}, nil
}

func (r *SQLiteRepository) SaveBudgetConfig(ctx context.Context, cfg BudgetConfig) error {
	err := r.queries.UpsertBudgetConfig(ctx, UpsertBudgetConfigParams{
		PeriodType:        string(cfg.PeriodType),
		AnchorDate:        cfg.AnchorDate.ISO(),
		SafeBudgetCents:   cfg.SafeBudgetCents,
		FLEDeductionCents: cfg.FLEDeductionCents,
		ManualOverride:    boolToInt(cfg.ManualOverride),
	})
	if err != nil {
		return fmt.Errorf("save budget config: %w", err)
	}
	slog.InfoContext(ctx, "Budget config saved",
		"period_type", cfg.PeriodType,
		"safe_budget_cents", cfg.SafeBudgetCents,
		"manual_override", cfg.ManualOverride)
	return nil
}

func entryFromRow(row AmortizationEntryRow) (core.AmortizationEntry, error) {
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.AmortizationEntry{}, fmt.Errorf("parse entry %d start date %q: %w", row.ID, row.StartDate, err)
	}
	return core.AmortizationEntry{
		ID:             row.ID,
		SourceName:     row.SourceName,
		TotalCents:     row.TotalCents,
		PeriodCount:    int(row.PeriodCount),
		StartDate:      start,
		PerPeriodCents: row.PerPeriodCents,
	}, nil
}

func goalFromRow(row SavingsGoalRow) core.SavingsGoal {
	return core.SavingsGoal{
		ID:                row.ID,
		Name:              row.Name,
		TargetCents:       row.TargetCents,
		ContributionCents: row.ContributionCents,
		SavedCents:        row.SavedCents,
		Paused:            row.Paused != 0,
	}
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.OccurredOn)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction %d date %q: %w", row.ID, row.OccurredOn, err)
	}
	t := core.Transaction{
		ID:           row.ID,
		MerchantText: row.MerchantText,
		AmountCents:  row.AmountCents,
		Date:         date,
		Status:       core.ClassificationStatus(row.Status),
	}
	if row.MatchedSourceID.Valid {
		id := row.MatchedSourceID.Int64
		t.MatchedSourceID = &id
	}
	return t, nil
}

func transactionsFromRows(rows []TransactionRow) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
