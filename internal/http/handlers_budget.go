package http

import (
	"log/slog"
	"net/http"

	"bilancio/internal/core"
)

type budgetStateResponse struct {
	AsOf                  string `json:"as_of"`
	PeriodIndex           int    `json:"period_index"`
	SafeBudgetCents       int64  `json:"safe_budget_cents"`
	FLEDeductionCents     int64  `json:"fle_deduction_cents"`
	AmortizationDeduction int64  `json:"amortization_deduction_cents"`
	SavingsDeduction      int64  `json:"savings_deduction_cents"`
	ManualOverrideActive  bool   `json:"manual_override_active"`
	BudgetCents           int64  `json:"budget_cents"`
}

func budgetStateToResponse(state core.BudgetState) budgetStateResponse {
	return budgetStateResponse{
		AsOf:                  state.AsOf.ISO(),
		PeriodIndex:           state.PeriodIndex,
		SafeBudgetCents:       state.SafeBudgetCents,
		FLEDeductionCents:     state.FLEDeductionCents,
		AmortizationDeduction: state.AmortizationDeduction,
		SavingsDeduction:      state.SavingsDeduction,
		ManualOverrideActive:  state.ManualOverrideActive,
		BudgetCents:           state.BudgetCents,
	}
}

// handleGetBudget returns the evaluated budget state, optionally for a
// given ?as_of=YYYY-MM-DD date.
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}

	key := asOf.ISO()
	if state, found := s.budgetCache.Get(key); found {
		slog.DebugContext(r.Context(), "Budget cache hit", "as_of", key)
		writeJSON(w, http.StatusOK, budgetStateToResponse(state))
		return
	}

	state := s.budget.EvaluateBudget(asOf)
	s.budgetCache.Set(key, state)
	writeJSON(w, http.StatusOK, budgetStateToResponse(state))
}

type configRequest struct {
	SafeBudgetCents   *int64 `json:"safe_budget_cents"`
	FLEDeductionCents *int64 `json:"fle_deduction_cents"`
	ManualOverride    *bool  `json:"manual_override"`
}

// handleUpdateConfig updates the safe baseline, the FLE reserve, or the
// manual override flag; omitted fields are left alone.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SafeBudgetCents == nil && req.FLEDeductionCents == nil && req.ManualOverride == nil {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	ctx := r.Context()
	if req.SafeBudgetCents != nil {
		if *req.SafeBudgetCents < 0 {
			writeError(w, http.StatusUnprocessableEntity, "safe_budget_cents must not be negative")
			return
		}
		if err := s.budget.SetSafeBudget(ctx, *req.SafeBudgetCents); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if req.FLEDeductionCents != nil {
		if *req.FLEDeductionCents < 0 {
			writeError(w, http.StatusUnprocessableEntity, "fle_deduction_cents must not be negative")
			return
		}
		if err := s.budget.SetFLEDeduction(ctx, *req.FLEDeductionCents); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if req.ManualOverride != nil {
		if err := s.budget.SetManualOverride(ctx, *req.ManualOverride); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	s.flushBudgetCache()
	cfg := s.budget.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"period_type":         cfg.PeriodType,
		"anchor_date":         cfg.AnchorDate.ISO(),
		"safe_budget_cents":   cfg.SafeBudgetCents,
		"fle_deduction_cents": cfg.FLEDeductionCents,
		"manual_override":     cfg.ManualOverride,
	})
}
