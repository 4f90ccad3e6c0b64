package sheets

import (
	"context"

	"bilancio/internal/core"
)

// GoalRow pairs a goal's name with its progress for export.
type GoalRow struct {
	Name     string
	Progress core.GoalProgress
}

// Ports for outbound spreadsheet adapters.
type (
	// SnapshotWriter appends one evaluated budget state as a spreadsheet row.
	SnapshotWriter interface {
		AppendSnapshot(ctx context.Context, state core.BudgetState) (rowRef string, err error)
	}

	// ProgressWriter appends the per-goal savings balances for a given date.
	ProgressWriter interface {
		AppendGoalProgress(ctx context.Context, asOf core.Date, goals []GoalRow) error
	}
)
