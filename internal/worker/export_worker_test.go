package worker

import (
	"context"
	"path/filepath"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/sheets/memory"
	"bilancio/internal/storage"
)

func newTestWorker(t *testing.T) (*ExportWorker, *services.BudgetService, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	budget, err := services.NewBudgetService(context.Background(), repo, nil, storage.BudgetConfig{
		PeriodType:      core.PeriodDay,
		AnchorDate:      core.NewDate(2025, 3, 1),
		SafeBudgetCents: 10000,
	})
	if err != nil {
		t.Fatalf("NewBudgetService: %v", err)
	}
	t.Cleanup(func() { budget.Close() })

	store := memory.New()
	return NewExportWorker(budget, store, store), budget, store
}

func TestExportWorker_HandleExportMessage(t *testing.T) {
	w, budget, store := newTestWorker(t)
	ctx := context.Background()

	if _, err := budget.CreateEntry(ctx, "Toyota Service", 90000, 90, core.NewDate(2025, 3, 1)); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if _, err := budget.CreateGoal(ctx, "Vacation", 50000, 5000); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	msg := amqp.NewSnapshotExportMessage("2025-03-10")
	if err := w.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}

	snaps := store.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	if want := int64(10000 - 1000 - 5000); snaps[0].BudgetCents != want {
		t.Errorf("exported BudgetCents = %d, want %d", snaps[0].BudgetCents, want)
	}

	progress := store.Progress()
	if len(progress) != 1 || len(progress[0].Goals) != 1 {
		t.Fatalf("progress = %+v, want one record with one goal", progress)
	}
	if progress[0].Goals[0].Name != "Vacation" {
		t.Errorf("goal name = %q, want Vacation", progress[0].Goals[0].Name)
	}
}

func TestExportWorker_BadDateRejected(t *testing.T) {
	w, _, store := newTestWorker(t)

	msg := &amqp.SnapshotExportMessage{AsOf: "not-a-date"}
	if err := w.HandleExportMessage(context.Background(), msg); err == nil {
		t.Error("HandleExportMessage should reject an unparseable date")
	}
	if len(store.Snapshots()) != 0 {
		t.Error("nothing should be exported for a bad message")
	}
}

func TestExportWorker_StartupExport(t *testing.T) {
	w, _, store := newTestWorker(t)

	if err := w.StartupExport(context.Background()); err != nil {
		t.Fatalf("StartupExport: %v", err)
	}
	if len(store.Snapshots()) != 1 {
		t.Errorf("snapshots = %d, want 1 from startup", len(store.Snapshots()))
	}
}
