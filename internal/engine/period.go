// Package engine implements the budget computation core: period counting,
// the amortization and savings ledgers, the deduction aggregator and the
// transaction/source matching pipeline. Everything here is pure computation;
// persistence and transport live elsewhere.
//
// Period counting uses the Strategy Pattern: each period type (day, week,
// month) has its own counter that encapsulates the boundary arithmetic.
package engine

import (
	"fmt"

	"bilancio/internal/core"
)

// PeriodCounter is the strategy interface for counting complete period
// boundaries between two dates.
type PeriodCounter interface {
	// PeriodsSince returns the number of complete period boundaries elapsed
	// from start to asOf. Never negative: dates before start count as zero.
	PeriodsSince(start, asOf core.Date) int
}

// DayCounter counts whole calendar days.
type DayCounter struct{}

func (DayCounter) PeriodsSince(start, asOf core.Date) int {
	days := start.DaysUntil(asOf)
	if days < 0 {
		return 0
	}
	return days
}

// WeekCounter counts whole seven-day spans from the start date.
type WeekCounter struct{}

func (WeekCounter) PeriodsSince(start, asOf core.Date) int {
	days := start.DaysUntil(asOf)
	if days < 0 {
		return 0
	}
	return days / 7
}

// MonthCounter counts calendar-month boundaries, anchored on the start
// date's day of month: the month difference is reduced by one until asOf
// has reached that day.
type MonthCounter struct{}

func (MonthCounter) PeriodsSince(start, asOf core.Date) int {
	months := (asOf.Year()*12 + int(asOf.Month())) - (start.Year()*12 + int(start.Month()))
	if asOf.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// periodCounters maps period types to their counters.
var periodCounters = map[core.PeriodType]PeriodCounter{
	core.PeriodDay:   DayCounter{},
	core.PeriodWeek:  WeekCounter{},
	core.PeriodMonth: MonthCounter{},
}

// GetPeriodCounter returns the counter for a period type.
func GetPeriodCounter(p core.PeriodType) (PeriodCounter, error) {
	c, ok := periodCounters[p]
	if !ok {
		return nil, fmt.Errorf("unknown period type: %s", p)
	}
	return c, nil
}

// PeriodsSince is the convenience entry point used by the ledgers: it
// resolves the counter for p and counts boundaries from start to asOf.
func PeriodsSince(start core.Date, p core.PeriodType, asOf core.Date) (int, error) {
	c, err := GetPeriodCounter(p)
	if err != nil {
		return 0, err
	}
	return c.PeriodsSince(start, asOf), nil
}
