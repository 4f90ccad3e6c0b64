package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/sheets"
)

// ExportWorker appends budget snapshots and goal balances to the spreadsheet
// when a rollover publishes an export message. Export is fire-and-forget
// from the engine's point of view; a lost row never affects budget math.
type ExportWorker struct {
	budget   *services.BudgetService
	snapshot sheets.SnapshotWriter
	progress sheets.ProgressWriter
}

func NewExportWorker(budget *services.BudgetService, snapshot sheets.SnapshotWriter, progress sheets.ProgressWriter) *ExportWorker {
	return &ExportWorker{
		budget:   budget,
		snapshot: snapshot,
		progress: progress,
	}
}

// HandleExportMessage evaluates the budget as of the message date and
// appends one snapshot row plus one row per goal.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.SnapshotExportMessage) error {
	asOf, err := core.ParseDate(msg.AsOf)
	if err != nil {
		return fmt.Errorf("parse export date %q: %w", msg.AsOf, err)
	}
	return w.export(ctx, asOf)
}

// StartupExport appends one snapshot for today so the sheet is current even
// when the last export message was lost while the worker was down.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	asOf := core.DateOf(time.Now())
	if err := w.export(ctx, asOf); err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	slog.InfoContext(ctx, "Startup export completed", "as_of", asOf.ISO())
	return nil
}

func (w *ExportWorker) export(ctx context.Context, asOf core.Date) error {
	state := w.budget.EvaluateBudget(asOf)

	ref, err := w.snapshot.AppendSnapshot(ctx, state)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	slog.InfoContext(ctx, "Budget snapshot exported",
		"as_of", asOf.ISO(),
		"budget_cents", state.BudgetCents,
		"row_ref", ref)

	goals := w.budget.ListGoals()
	rows := make([]sheets.GoalRow, 0, len(goals))
	for _, g := range goals {
		rows = append(rows, sheets.GoalRow{
			Name: g.Name,
			Progress: core.GoalProgress{
				SavedCents:  g.SavedCents,
				TargetCents: g.TargetCents,
				IsReached:   g.IsReached(),
			},
		})
	}
	if err := w.progress.AppendGoalProgress(ctx, asOf, rows); err != nil {
		return fmt.Errorf("append goal progress: %w", err)
	}
	return nil
}
