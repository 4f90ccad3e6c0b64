package engine

import (
	"testing"

	"bilancio/internal/core"
)

func TestDayCounter_PeriodsSince(t *testing.T) {
	counter := DayCounter{}
	start := core.NewDate(2025, 3, 1)

	tests := []struct {
		name string
		asOf core.Date
		want int
	}{
		{name: "same day", asOf: core.NewDate(2025, 3, 1), want: 0},
		{name: "next day", asOf: core.NewDate(2025, 3, 2), want: 1},
		{name: "45 days later", asOf: core.NewDate(2025, 4, 15), want: 45},
		{name: "before start clamps to zero", asOf: core.NewDate(2025, 2, 20), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counter.PeriodsSince(start, tt.asOf); got != tt.want {
				t.Errorf("PeriodsSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWeekCounter_PeriodsSince(t *testing.T) {
	counter := WeekCounter{}
	start := core.NewDate(2025, 3, 1)

	tests := []struct {
		name string
		asOf core.Date
		want int
	}{
		{name: "same day", asOf: core.NewDate(2025, 3, 1), want: 0},
		{name: "six days is not a week", asOf: core.NewDate(2025, 3, 7), want: 0},
		{name: "seventh day crosses boundary", asOf: core.NewDate(2025, 3, 8), want: 1},
		{name: "partial second week floors", asOf: core.NewDate(2025, 3, 13), want: 1},
		{name: "two full weeks", asOf: core.NewDate(2025, 3, 15), want: 2},
		{name: "before start clamps to zero", asOf: core.NewDate(2025, 2, 1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counter.PeriodsSince(start, tt.asOf); got != tt.want {
				t.Errorf("PeriodsSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonthCounter_PeriodsSince(t *testing.T) {
	counter := MonthCounter{}

	tests := []struct {
		name  string
		start core.Date
		asOf  core.Date
		want  int
	}{
		{name: "same month", start: core.NewDate(2025, 3, 15), asOf: core.NewDate(2025, 3, 20), want: 0},
		{name: "next month same day", start: core.NewDate(2025, 3, 15), asOf: core.NewDate(2025, 4, 15), want: 1},
		{name: "next month earlier day", start: core.NewDate(2025, 3, 15), asOf: core.NewDate(2025, 4, 14), want: 0},
		{name: "across year boundary", start: core.NewDate(2024, 11, 10), asOf: core.NewDate(2025, 2, 10), want: 3},
		{name: "year boundary day short", start: core.NewDate(2024, 11, 10), asOf: core.NewDate(2025, 2, 9), want: 2},
		{name: "before start clamps to zero", start: core.NewDate(2025, 3, 15), asOf: core.NewDate(2025, 1, 1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counter.PeriodsSince(tt.start, tt.asOf); got != tt.want {
				t.Errorf("PeriodsSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetPeriodCounter(t *testing.T) {
	for _, p := range []core.PeriodType{core.PeriodDay, core.PeriodWeek, core.PeriodMonth} {
		if _, err := GetPeriodCounter(p); err != nil {
			t.Errorf("GetPeriodCounter(%q) unexpected error: %v", p, err)
		}
	}
	if _, err := GetPeriodCounter("quarter"); err == nil {
		t.Error("GetPeriodCounter(quarter) should fail")
	}
}
