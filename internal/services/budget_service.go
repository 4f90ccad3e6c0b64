package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/engine"
	"bilancio/internal/storage"
)

// BudgetService orchestrates the in-memory ledgers against SQLite and AMQP.
// The ledgers are authoritative at runtime; every mutation is written
// through to storage so a restart resumes from the same state.
type BudgetService struct {
	repo       *storage.SQLiteRepository
	amqpClient *amqp.Client

	amortization *engine.AmortizationLedger
	savings      *engine.SavingsLedger
	aggregator   *engine.DeductionAggregator

	cfgMu  sync.Mutex
	config storage.BudgetConfig
}

// NewBudgetService loads the persisted snapshot and rebuilds the ledgers.
// On first run the given defaults become the stored budget configuration.
func NewBudgetService(ctx context.Context, repo *storage.SQLiteRepository, amqpClient *amqp.Client, defaults storage.BudgetConfig) (*BudgetService, error) {
	snap, err := repo.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	cfg := defaults
	if snap.HaveBudgetConfig {
		cfg = storage.BudgetConfig{
			PeriodType:        snap.PeriodType,
			AnchorDate:        snap.AnchorDate,
			SafeBudgetCents:   snap.SafeBudgetCents,
			FLEDeductionCents: snap.FLECents,
			ManualOverride:    snap.ManualOverride,
		}
	} else if err := repo.SaveBudgetConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed budget config: %w", err)
	}

	amortization, err := engine.NewAmortizationLedger(cfg.PeriodType)
	if err != nil {
		return nil, fmt.Errorf("amortization ledger: %w", err)
	}
	savings, err := engine.NewSavingsLedger(cfg.PeriodType, cfg.AnchorDate)
	if err != nil {
		return nil, fmt.Errorf("savings ledger: %w", err)
	}
	aggregator, err := engine.NewDeductionAggregator(amortization, savings, cfg.PeriodType, cfg.AnchorDate)
	if err != nil {
		return nil, fmt.Errorf("deduction aggregator: %w", err)
	}

	amortization.Load(snap.Entries)
	savings.Load(snap.Goals, snap.LastRolloverIdx)

	slog.InfoContext(ctx, "Budget service initialized",
		"period_type", cfg.PeriodType,
		"anchor", cfg.AnchorDate.ISO(),
		"entries", len(snap.Entries),
		"goals", len(snap.Goals))

	return &BudgetService{
		repo:         repo,
		amqpClient:   amqpClient,
		amortization: amortization,
		savings:      savings,
		aggregator:   aggregator,
		config:       cfg,
	}, nil
}

// EvaluateBudget computes the budget state as of the given date without
// mutating anything.
func (s *BudgetService) EvaluateBudget(asOf core.Date) core.BudgetState {
	s.cfgMu.Lock()
	input := engine.EvaluateInput{
		SafeBudgetCents:      s.config.SafeBudgetCents,
		FLEDeductionCents:    s.config.FLEDeductionCents,
		ManualOverrideActive: s.config.ManualOverride,
	}
	s.cfgMu.Unlock()
	return s.aggregator.Evaluate(input, asOf)
}

// ApplyRollover advances savings accrual to the period containing asOf and
// persists balances and watermark atomically. A snapshot export message is
// published when anything accrued; export failure never fails the rollover.
func (s *BudgetService) ApplyRollover(ctx context.Context, asOf core.Date) (int, error) {
	steps := s.savings.ApplyPeriodRollover(asOf)
	if steps == 0 {
		return 0, nil
	}

	if err := s.repo.SaveGoals(ctx, s.savings.Snapshot(), s.savings.Watermark()); err != nil {
		return steps, fmt.Errorf("persist rollover: %w", err)
	}

	slog.InfoContext(ctx, "Period rollover applied",
		"periods", steps,
		"watermark", s.savings.Watermark(),
		"as_of", asOf.ISO())

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishSnapshotExport(ctx, asOf.ISO()); err != nil {
			slog.ErrorContext(ctx, "Failed to publish snapshot export", "error", err)
		}
	}
	return steps, nil
}

// CreateEntry adds an amortization entry and writes it through to storage.
func (s *BudgetService) CreateEntry(ctx context.Context, sourceName string, totalCents int64, periodCount int, startDate core.Date) (core.AmortizationEntry, error) {
	entry, err := s.amortization.Create(sourceName, totalCents, periodCount, startDate)
	if err != nil {
		return core.AmortizationEntry{}, err
	}
	if err := s.repo.SaveEntry(ctx, entry, true); err != nil {
		// Roll the in-memory create back so ledger and storage stay aligned.
		s.amortization.Delete(entry.ID)
		return core.AmortizationEntry{}, fmt.Errorf("persist entry: %w", err)
	}
	return entry, nil
}

func (s *BudgetService) EditEntry(ctx context.Context, id int64, update engine.EntryUpdate) (core.AmortizationEntry, error) {
	entry, err := s.amortization.Edit(id, update)
	if err != nil {
		return core.AmortizationEntry{}, err
	}
	if err := s.repo.SaveEntry(ctx, entry, false); err != nil {
		return core.AmortizationEntry{}, fmt.Errorf("persist entry: %w", err)
	}
	return entry, nil
}

func (s *BudgetService) DeleteEntry(ctx context.Context, id int64) error {
	if err := s.amortization.Delete(id); err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (s *BudgetService) GetEntry(id int64) (core.AmortizationEntry, error) {
	return s.amortization.Get(id)
}

func (s *BudgetService) ListEntries() []core.AmortizationEntry {
	return s.amortization.Snapshot()
}

func (s *BudgetService) EntryProgress(id int64, asOf core.Date) (core.EntryProgress, error) {
	return s.amortization.Progress(id, asOf)
}

// CreateGoal adds a savings goal and writes it through to storage.
func (s *BudgetService) CreateGoal(ctx context.Context, name string, targetCents, contributionCents int64) (core.SavingsGoal, error) {
	goal, err := s.savings.Create(name, targetCents, contributionCents)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	if err := s.repo.SaveGoal(ctx, goal, true); err != nil {
		s.savings.Delete(goal.ID)
		return core.SavingsGoal{}, fmt.Errorf("persist goal: %w", err)
	}
	return goal, nil
}

func (s *BudgetService) EditGoal(ctx context.Context, id int64, update engine.GoalUpdate) (core.SavingsGoal, error) {
	goal, err := s.savings.Edit(id, update)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	if err := s.repo.SaveGoal(ctx, goal, false); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("persist goal: %w", err)
	}
	return goal, nil
}

func (s *BudgetService) DeleteGoal(ctx context.Context, id int64) error {
	if err := s.savings.Delete(id); err != nil {
		return err
	}
	if err := s.repo.DeleteGoal(ctx, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

func (s *BudgetService) GetGoal(id int64) (core.SavingsGoal, error) {
	return s.savings.Get(id)
}

func (s *BudgetService) ListGoals() []core.SavingsGoal {
	return s.savings.Snapshot()
}

func (s *BudgetService) GoalProgress(id int64) (core.GoalProgress, error) {
	return s.savings.Progress(id)
}

// PauseGoal toggles accrual for one goal and persists the flag.
func (s *BudgetService) PauseGoal(ctx context.Context, id int64, paused bool) error {
	if err := s.savings.SetPaused(id, paused); err != nil {
		return err
	}
	goal, err := s.savings.Get(id)
	if err != nil {
		return err
	}
	if err := s.repo.SaveGoal(ctx, goal, false); err != nil {
		return fmt.Errorf("persist goal: %w", err)
	}
	return nil
}

// PauseAllGoals toggles accrual for every goal at once.
func (s *BudgetService) PauseAllGoals(ctx context.Context, paused bool) error {
	s.savings.SetPausedAll(paused)
	if err := s.repo.SaveGoals(ctx, s.savings.Snapshot(), s.savings.Watermark()); err != nil {
		return fmt.Errorf("persist goals: %w", err)
	}
	return nil
}

// Config returns a copy of the current budget configuration.
func (s *BudgetService) Config() storage.BudgetConfig {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.config
}

// SetManualOverride switches the budget between the full formula and the
// plain safe amount. Accrual continues underneath either way.
func (s *BudgetService) SetManualOverride(ctx context.Context, active bool) error {
	return s.updateConfig(ctx, func(cfg *storage.BudgetConfig) {
		cfg.ManualOverride = active
	})
}

// SetSafeBudget updates the externally determined safe baseline.
func (s *BudgetService) SetSafeBudget(ctx context.Context, cents int64) error {
	return s.updateConfig(ctx, func(cfg *storage.BudgetConfig) {
		cfg.SafeBudgetCents = cents
	})
}

// SetFLEDeduction updates the future-large-expenditure reserve.
func (s *BudgetService) SetFLEDeduction(ctx context.Context, cents int64) error {
	return s.updateConfig(ctx, func(cfg *storage.BudgetConfig) {
		cfg.FLEDeductionCents = cents
	})
}

func (s *BudgetService) updateConfig(ctx context.Context, mutate func(*storage.BudgetConfig)) error {
	s.cfgMu.Lock()
	cfg := s.config
	mutate(&cfg)
	s.config = cfg
	s.cfgMu.Unlock()

	if err := s.repo.SaveBudgetConfig(ctx, cfg); err != nil {
		return fmt.Errorf("persist budget config: %w", err)
	}
	return nil
}

// Close closes storage and the AMQP connection.
func (s *BudgetService) Close() error {
	var errs []error
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close budget service: %v", errs)
	}
	return nil
}
