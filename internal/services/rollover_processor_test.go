package services

import (
	"context"
	"testing"
	"time"
)

func TestRolloverProcessor_ProcessRollover(t *testing.T) {
	budget, _ := newTestBudgetService(t)
	ctx := context.Background()

	if _, err := budget.CreateGoal(ctx, "Vacation", 50000, 5000); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	p := NewRolloverProcessor(budget, time.Hour)
	now := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)

	steps, err := p.ProcessRollover(ctx, now)
	if err != nil {
		t.Fatalf("ProcessRollover: %v", err)
	}
	if steps != 3 {
		t.Errorf("steps = %d, want 3 for three elapsed days", steps)
	}

	// Same day again is a no-op.
	steps, err = p.ProcessRollover(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ProcessRollover repeat: %v", err)
	}
	if steps != 0 {
		t.Errorf("repeat steps = %d, want 0", steps)
	}

	goal := budget.ListGoals()[0]
	if goal.SavedCents != 15000 {
		t.Errorf("SavedCents = %d, want 15000", goal.SavedCents)
	}
}

func TestRolloverProcessor_NotInitialized(t *testing.T) {
	p := NewRolloverProcessor(nil, 0)
	if _, err := p.ProcessRollover(context.Background(), time.Now()); err == nil {
		t.Error("ProcessRollover without a budget service should fail")
	}
}

func TestNewRolloverProcessor_DefaultInterval(t *testing.T) {
	p := NewRolloverProcessor(nil, 0)
	if p.interval != time.Hour {
		t.Errorf("interval = %v, want 1h default", p.interval)
	}
}
