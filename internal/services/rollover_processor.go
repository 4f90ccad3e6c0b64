package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

// RolloverProcessor drives period rollovers on a schedule. The ledger's
// watermark makes each tick idempotent, so a generous interval with catch-up
// on start is enough; there is no requirement to fire exactly at midnight.
type RolloverProcessor struct {
	budget   *BudgetService
	interval time.Duration
}

func NewRolloverProcessor(budget *BudgetService, interval time.Duration) *RolloverProcessor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RolloverProcessor{
		budget:   budget,
		interval: interval,
	}
}

// ProcessRollover applies any pending period boundaries as of now.
func (p *RolloverProcessor) ProcessRollover(ctx context.Context, now time.Time) (int, error) {
	if p.budget == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	steps, err := p.budget.ApplyRollover(ctx, core.DateOf(now))
	if err != nil {
		return steps, fmt.Errorf("apply rollover: %w", err)
	}
	if steps > 0 {
		slog.InfoContext(ctx, "Rollover processing complete",
			"periods_applied", steps,
			"processing_date", now.Format("2006-01-02"))
	}
	return steps, nil
}

// Run processes immediately, then on every tick until the context ends. The
// immediate pass covers boundaries missed while the process was down.
func (p *RolloverProcessor) Run(ctx context.Context) error {
	if _, err := p.ProcessRollover(ctx, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Initial rollover failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Rollover processor stopping", "reason", ctx.Err())
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := p.ProcessRollover(ctx, now); err != nil {
				slog.ErrorContext(ctx, "Rollover failed", "error", err)
			}
		}
	}
}
