package engine

import (
	"errors"
	"testing"

	"bilancio/internal/core"
)

func newTestAmortizationLedger(t *testing.T) *AmortizationLedger {
	t.Helper()
	l, err := NewAmortizationLedger(core.PeriodDay)
	if err != nil {
		t.Fatalf("NewAmortizationLedger: %v", err)
	}
	return l
}

func TestAmortizationLedger_Create(t *testing.T) {
	start := core.NewDate(2025, 3, 1)

	tests := []struct {
		name        string
		sourceName  string
		totalCents  int64
		periodCount int
		wantErr     error
		wantPer     int64
	}{
		{name: "valid entry", sourceName: "Toyota Service", totalCents: 90000, periodCount: 90, wantPer: 1000},
		{name: "uneven split rounds half up", sourceName: "Sofa", totalCents: 1000, periodCount: 3, wantPer: 333},
		{name: "empty name rejected", sourceName: " ", totalCents: 100, periodCount: 1, wantErr: core.ErrEmptyName},
		{name: "negative amount rejected", sourceName: "x", totalCents: -1, periodCount: 1, wantErr: core.ErrInvalidAmount},
		{name: "zero periods rejected", sourceName: "x", totalCents: 100, periodCount: 0, wantErr: core.ErrInvalidPeriodCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestAmortizationLedger(t)
			e, err := l.Create(tt.sourceName, tt.totalCents, tt.periodCount, start)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				if len(l.Snapshot()) != 0 {
					t.Error("rejected create must not mutate the ledger")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() unexpected error: %v", err)
			}
			if e.ID == 0 {
				t.Error("Create() should assign an ID")
			}
			if e.PerPeriodCents != tt.wantPer {
				t.Errorf("PerPeriodCents = %d, want %d", e.PerPeriodCents, tt.wantPer)
			}
		})
	}
}

func TestAmortizationLedger_EditRecomputesDeduction(t *testing.T) {
	l := newTestAmortizationLedger(t)
	e, err := l.Create("Sofa", 90000, 90, core.NewDate(2025, 3, 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTotal := int64(45000)
	edited, err := l.Edit(e.ID, EntryUpdate{TotalCents: &newTotal})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.PerPeriodCents != 500 {
		t.Errorf("PerPeriodCents after edit = %d, want 500", edited.PerPeriodCents)
	}

	// Elapsed periods are derived from the start date, so the edit must not
	// have disturbed them.
	p, err := l.Progress(e.ID, core.NewDate(2025, 3, 11))
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.PeriodsElapsed != 10 {
		t.Errorf("PeriodsElapsed after edit = %d, want 10", p.PeriodsElapsed)
	}
}

func TestAmortizationLedger_EditRejectionLeavesEntryUntouched(t *testing.T) {
	l := newTestAmortizationLedger(t)
	e, _ := l.Create("Sofa", 90000, 90, core.NewDate(2025, 3, 1))

	bad := int64(-5)
	if _, err := l.Edit(e.ID, EntryUpdate{TotalCents: &bad}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("Edit() error = %v, want ErrInvalidAmount", err)
	}
	got, _ := l.Get(e.ID)
	if got.TotalCents != 90000 || got.PerPeriodCents != 1000 {
		t.Errorf("rejected edit mutated entry: %+v", got)
	}
}

func TestAmortizationLedger_EditUnknownID(t *testing.T) {
	l := newTestAmortizationLedger(t)
	if _, err := l.Edit(42, EntryUpdate{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Edit(42) error = %v, want ErrNotFound", err)
	}
}

func TestAmortizationLedger_Delete(t *testing.T) {
	l := newTestAmortizationLedger(t)
	e, _ := l.Create("Sofa", 1000, 10, core.NewDate(2025, 3, 1))

	if err := l.Delete(e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := l.Delete(e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestAmortizationLedger_ActiveDeductionTotal(t *testing.T) {
	// Scenario from the dashboard arithmetic: 900.00 over 90 daily periods.
	l := newTestAmortizationLedger(t)
	start := core.NewDate(2025, 3, 1)
	e, err := l.Create("Toyota Service", 90000, 90, start)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	halfway := core.NewDate(2025, 4, 15) // start + 45 days
	if got := l.ActiveDeductionTotal(halfway); got != 1000 {
		t.Errorf("ActiveDeductionTotal at 45 periods = %d, want 1000", got)
	}
	p, _ := l.Progress(e.ID, halfway)
	if p.PeriodsElapsed != 45 || p.IsComplete {
		t.Errorf("Progress at halfway = %+v, want 45 elapsed, incomplete", p)
	}

	done := core.NewDate(2025, 5, 30) // start + 90 days
	if got := l.ActiveDeductionTotal(done); got != 0 {
		t.Errorf("ActiveDeductionTotal at completion = %d, want 0", got)
	}
	p, _ = l.Progress(e.ID, done)
	if !p.IsComplete || p.PeriodsElapsed != 90 {
		t.Errorf("Progress at completion = %+v, want complete at 90", p)
	}

	// One period before completion the entry still deducts.
	if got := l.ActiveDeductionTotal(core.NewDate(2025, 5, 29)); got != 1000 {
		t.Errorf("ActiveDeductionTotal one period early = %d, want 1000", got)
	}

	// Completed entries persist until deleted by the user.
	if len(l.Snapshot()) != 1 {
		t.Error("completed entry must remain in the ledger")
	}
}

func TestAmortizationLedger_ProgressClampsFutureStart(t *testing.T) {
	l := newTestAmortizationLedger(t)
	e, _ := l.Create("Preorder", 5000, 10, core.NewDate(2025, 6, 1))

	p, err := l.Progress(e.ID, core.NewDate(2025, 3, 1))
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.PeriodsElapsed != 0 || p.IsComplete {
		t.Errorf("future-dated entry progress = %+v, want zero elapsed", p)
	}
	// Future-dated entries still deduct for the current period.
	if got := l.ActiveDeductionTotal(core.NewDate(2025, 3, 1)); got != 500 {
		t.Errorf("ActiveDeductionTotal = %d, want 500", got)
	}
}

func TestAmortizationLedger_LoadSeedsIDSequence(t *testing.T) {
	l := newTestAmortizationLedger(t)
	l.Load([]core.AmortizationEntry{
		{ID: 7, SourceName: "Old", TotalCents: 100, PeriodCount: 1, StartDate: core.NewDate(2025, 1, 1), PerPeriodCents: 100},
	})

	e, err := l.Create("New", 100, 1, core.NewDate(2025, 2, 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ID != 8 {
		t.Errorf("ID after load = %d, want 8", e.ID)
	}
}
