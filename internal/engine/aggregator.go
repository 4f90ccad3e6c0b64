package engine

import (
	"bilancio/internal/core"
)

// DeductionAggregator combines the two ledgers with the externally supplied
// baseline into the Budget Amount shown on the dashboard. Evaluate is a
// pure read: it never mutates ledger state, so it can be called on every
// refresh.
type DeductionAggregator struct {
	amortization *AmortizationLedger
	savings      *SavingsLedger
	counter      PeriodCounter
	anchor       core.Date
}

// EvaluateInput carries the collaborator-supplied parts of the budget
// formula: the safe baseline, the future-large-expenditure reserve computed
// elsewhere, and the manual-override flag from budget configuration.
type EvaluateInput struct {
	SafeBudgetCents      int64
	FLEDeductionCents    int64
	ManualOverrideActive bool
}

func NewDeductionAggregator(amortization *AmortizationLedger, savings *SavingsLedger, period core.PeriodType, anchor core.Date) (*DeductionAggregator, error) {
	counter, err := GetPeriodCounter(period)
	if err != nil {
		return nil, err
	}
	return &DeductionAggregator{
		amortization: amortization,
		savings:      savings,
		counter:      counter,
		anchor:       anchor,
	}, nil
}

// Evaluate computes the budget state as of the given date. With the manual
// override active the deductions are reported but not subtracted; the
// ledgers keep accruing underneath regardless.
func (a *DeductionAggregator) Evaluate(input EvaluateInput, asOf core.Date) core.BudgetState {
	state := core.BudgetState{
		AsOf:                  asOf,
		PeriodIndex:           a.counter.PeriodsSince(a.anchor, asOf),
		SafeBudgetCents:       input.SafeBudgetCents,
		FLEDeductionCents:     input.FLEDeductionCents,
		AmortizationDeduction: a.amortization.ActiveDeductionTotal(asOf),
		SavingsDeduction:      a.savings.ActiveDeductionTotal(),
		ManualOverrideActive:  input.ManualOverrideActive,
	}
	if input.ManualOverrideActive {
		state.BudgetCents = input.SafeBudgetCents
	} else {
		state.BudgetCents = input.SafeBudgetCents -
			input.FLEDeductionCents -
			state.AmortizationDeduction -
			state.SavingsDeduction
	}
	return state
}
