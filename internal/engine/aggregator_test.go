package engine

import (
	"testing"

	"bilancio/internal/core"
)

func newTestAggregator(t *testing.T) (*DeductionAggregator, *AmortizationLedger, *SavingsLedger) {
	t.Helper()
	anchor := core.NewDate(2025, 3, 1)
	amort, err := NewAmortizationLedger(core.PeriodDay)
	if err != nil {
		t.Fatalf("NewAmortizationLedger: %v", err)
	}
	savings, err := NewSavingsLedger(core.PeriodDay, anchor)
	if err != nil {
		t.Fatalf("NewSavingsLedger: %v", err)
	}
	agg, err := NewDeductionAggregator(amort, savings, core.PeriodDay, anchor)
	if err != nil {
		t.Fatalf("NewDeductionAggregator: %v", err)
	}
	return agg, amort, savings
}

func TestDeductionAggregator_Evaluate(t *testing.T) {
	agg, amort, savings := newTestAggregator(t)
	if _, err := amort.Create("Toyota Service", 90000, 90, core.NewDate(2025, 3, 1)); err != nil {
		t.Fatalf("Create entry: %v", err)
	}
	if _, err := savings.Create("Vacation", 50000, 5000); err != nil {
		t.Fatalf("Create goal: %v", err)
	}

	asOf := core.NewDate(2025, 3, 10)
	state := agg.Evaluate(EvaluateInput{SafeBudgetCents: 10000, FLEDeductionCents: 500}, asOf)

	if state.AmortizationDeduction != 1000 {
		t.Errorf("AmortizationDeduction = %d, want 1000", state.AmortizationDeduction)
	}
	if state.SavingsDeduction != 5000 {
		t.Errorf("SavingsDeduction = %d, want 5000", state.SavingsDeduction)
	}
	if want := int64(10000 - 500 - 1000 - 5000); state.BudgetCents != want {
		t.Errorf("BudgetCents = %d, want %d", state.BudgetCents, want)
	}
	if state.PeriodIndex != 9 {
		t.Errorf("PeriodIndex = %d, want 9", state.PeriodIndex)
	}
}

func TestDeductionAggregator_ManualOverrideIgnoresDeductions(t *testing.T) {
	agg, amort, savings := newTestAggregator(t)
	amort.Create("Sofa", 1000, 100, core.NewDate(2025, 3, 1))
	savings.Create("Vacation", 50000, 5000)

	asOf := core.NewDate(2025, 3, 2)
	state := agg.Evaluate(EvaluateInput{SafeBudgetCents: 4000, ManualOverrideActive: true}, asOf)

	if state.BudgetCents != 4000 {
		t.Errorf("BudgetCents under override = %d, want 4000", state.BudgetCents)
	}
	// Deductions are still reported for display even though ignored.
	if state.AmortizationDeduction != 10 || state.SavingsDeduction != 5000 {
		t.Errorf("override must not hide deduction components: %+v", state)
	}

	// The rollover keeps accruing underneath the override.
	savings.ApplyPeriodRollover(asOf)
	g := savings.Snapshot()[0]
	if g.SavedCents != 5000 {
		t.Errorf("saved under override = %d, want 5000", g.SavedCents)
	}
}

func TestDeductionAggregator_EvaluateIsPure(t *testing.T) {
	agg, amort, savings := newTestAggregator(t)
	amort.Create("Sofa", 90000, 90, core.NewDate(2025, 3, 1))
	savings.Create("Vacation", 50000, 5000)

	input := EvaluateInput{SafeBudgetCents: 10000, FLEDeductionCents: 250}
	asOf := core.NewDate(2025, 3, 15)

	first := agg.Evaluate(input, asOf)
	for i := 0; i < 10; i++ {
		if got := agg.Evaluate(input, asOf); got != first {
			t.Fatalf("Evaluate drifted on call %d: %+v != %+v", i+2, got, first)
		}
	}
	if got := savings.Snapshot()[0].SavedCents; got != 0 {
		t.Errorf("Evaluate mutated savings balance: %d", got)
	}
}
