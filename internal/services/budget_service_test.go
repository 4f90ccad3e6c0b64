package services

import (
	"context"
	"path/filepath"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/engine"
	"bilancio/internal/storage"
)

func testDefaults() storage.BudgetConfig {
	return storage.BudgetConfig{
		PeriodType:      core.PeriodDay,
		AnchorDate:      core.NewDate(2025, 3, 1),
		SafeBudgetCents: 10000,
	}
}

func newTestBudgetService(t *testing.T) (*BudgetService, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "bilancio.db")
	return openBudgetService(t, dbPath), dbPath
}

func openBudgetService(t *testing.T, dbPath string) *BudgetService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	svc, err := NewBudgetService(context.Background(), repo, nil, testDefaults())
	if err != nil {
		t.Fatalf("NewBudgetService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestBudgetService_EvaluateUsesConfigAndLedgers(t *testing.T) {
	svc, _ := newTestBudgetService(t)
	ctx := context.Background()

	if _, err := svc.CreateEntry(ctx, "Toyota Service", 90000, 90, core.NewDate(2025, 3, 1)); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if _, err := svc.CreateGoal(ctx, "Vacation", 50000, 5000); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if err := svc.SetFLEDeduction(ctx, 500); err != nil {
		t.Fatalf("SetFLEDeduction: %v", err)
	}

	state := svc.EvaluateBudget(core.NewDate(2025, 3, 10))
	if want := int64(10000 - 500 - 1000 - 5000); state.BudgetCents != want {
		t.Errorf("BudgetCents = %d, want %d", state.BudgetCents, want)
	}
}

func TestBudgetService_ManualOverride(t *testing.T) {
	svc, _ := newTestBudgetService(t)
	ctx := context.Background()

	if _, err := svc.CreateGoal(ctx, "Vacation", 50000, 5000); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if err := svc.SetManualOverride(ctx, true); err != nil {
		t.Fatalf("SetManualOverride: %v", err)
	}

	state := svc.EvaluateBudget(core.NewDate(2025, 3, 10))
	if state.BudgetCents != 10000 {
		t.Errorf("BudgetCents under override = %d, want the safe amount 10000", state.BudgetCents)
	}
	if !state.ManualOverrideActive {
		t.Error("ManualOverrideActive should be reported")
	}

	// Accrual continues underneath the override.
	if _, err := svc.ApplyRollover(ctx, core.NewDate(2025, 3, 2)); err != nil {
		t.Fatalf("ApplyRollover: %v", err)
	}
	goal := svc.ListGoals()[0]
	if goal.SavedCents != 5000 {
		t.Errorf("SavedCents = %d, want 5000", goal.SavedCents)
	}
}

func TestBudgetService_RolloverIsIdempotentAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bilancio.db")
	ctx := context.Background()

	svc := openBudgetService(t, dbPath)
	if _, err := svc.CreateGoal(ctx, "Vacation", 50000, 5000); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	steps, err := svc.ApplyRollover(ctx, core.NewDate(2025, 3, 4))
	if err != nil {
		t.Fatalf("ApplyRollover: %v", err)
	}
	if steps != 3 {
		t.Fatalf("steps = %d, want 3", steps)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh process sees the watermark and does not re-apply.
	svc = openBudgetService(t, dbPath)
	steps, err = svc.ApplyRollover(ctx, core.NewDate(2025, 3, 4))
	if err != nil {
		t.Fatalf("ApplyRollover after restart: %v", err)
	}
	if steps != 0 {
		t.Errorf("steps after restart = %d, want 0", steps)
	}
	goal := svc.ListGoals()[0]
	if goal.SavedCents != 15000 {
		t.Errorf("SavedCents after restart = %d, want 15000", goal.SavedCents)
	}
}

func TestBudgetService_EntryLifecyclePersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bilancio.db")
	ctx := context.Background()

	svc := openBudgetService(t, dbPath)
	entry, err := svc.CreateEntry(ctx, "Sofa", 48000, 12, core.NewDate(2025, 3, 1))
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if entry.PerPeriodCents != 4000 {
		t.Errorf("PerPeriodCents = %d, want 4000", entry.PerPeriodCents)
	}

	newTotal := int64(60000)
	if _, err := svc.EditEntry(ctx, entry.ID, engine.EntryUpdate{TotalCents: &newTotal}); err != nil {
		t.Fatalf("EditEntry: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	svc = openBudgetService(t, dbPath)
	got, err := svc.GetEntry(entry.ID)
	if err != nil {
		t.Fatalf("GetEntry after restart: %v", err)
	}
	if got.TotalCents != 60000 || got.PerPeriodCents != 5000 {
		t.Errorf("entry after restart = %+v, want edited totals", got)
	}

	if err := svc.DeleteEntry(ctx, entry.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if len(svc.ListEntries()) != 0 {
		t.Error("ListEntries should be empty after delete")
	}
}

func TestBudgetService_PauseAllPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bilancio.db")
	ctx := context.Background()

	svc := openBudgetService(t, dbPath)
	svc.CreateGoal(ctx, "Vacation", 50000, 5000)
	svc.CreateGoal(ctx, "Emergency", 100000, 2000)

	if err := svc.PauseAllGoals(ctx, true); err != nil {
		t.Fatalf("PauseAllGoals: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	svc = openBudgetService(t, dbPath)
	for _, g := range svc.ListGoals() {
		if !g.Paused {
			t.Errorf("goal %q not paused after restart", g.Name)
		}
	}
	if total := svc.EvaluateBudget(core.NewDate(2025, 3, 10)).SavingsDeduction; total != 0 {
		t.Errorf("SavingsDeduction with all paused = %d, want 0", total)
	}
}
