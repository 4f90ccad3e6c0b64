package worker

import (
	"context"
	"path/filepath"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/engine"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func newTestIngestWorker(t *testing.T) (*IngestWorker, *services.TransactionService) {
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

	if _, err := budget.CreateEntry(context.Background(), "Toyota Service", 90000, 90, core.NewDate(2025, 3, 1)); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	transactions := services.NewTransactionService(repo, budget, engine.NewSourceMatcher(0), nil)
	return NewIngestWorker(transactions), transactions
}

func TestIngestWorker_HandleIngestMessage(t *testing.T) {
	w, transactions := newTestIngestWorker(t)
	ctx := context.Background()

	msg := amqp.NewTransactionIngestMessage("Toyota Service Center", 4500, "2025-03-10")
	if err := w.HandleIngestMessage(ctx, msg); err != nil {
		t.Fatalf("HandleIngestMessage() error = %v", err)
	}

	pending, err := transactions.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d transactions, want 1", len(pending))
	}
	if pending[0].MerchantText != "Toyota Service Center" || pending[0].MatchedSourceID == nil {
		t.Errorf("pending transaction = %+v, want matched", pending[0])
	}
}

func TestIngestWorker_BadMessageRejected(t *testing.T) {
	w, _ := newTestIngestWorker(t)
	ctx := context.Background()

	if err := w.HandleIngestMessage(ctx, amqp.NewTransactionIngestMessage("Shop", 1200, "10/03/2025")); err == nil {
		t.Error("malformed date should be rejected")
	}
	if err := w.HandleIngestMessage(ctx, amqp.NewTransactionIngestMessage("Shop", -5, "2025-03-10")); err == nil {
		t.Error("non-positive amount should be rejected")
	}
}
