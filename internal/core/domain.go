package core

import (
	"errors"
	"strings"
	"time"
)

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

type (
	// PeriodType is the budgeting cadence unit chosen by the user.
	PeriodType string

	// Date is a day-granular calendar date (UTC midnight).
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// AmortizationEntry spreads a one-time expense evenly across a fixed
	// number of future budget periods.
	AmortizationEntry struct {
		ID          int64
		SourceName  string // also the matching key for incoming transactions
		TotalCents  int64
		PeriodCount int
		StartDate   Date
		// PerPeriodCents is fixed at create/edit time, never re-derived
		// from elapsed state.
		PerPeriodCents int64
	}

	// SavingsGoal accrues a fixed contribution per period until the target
	// is reached. SavedCents is persisted state, not derived.
	SavingsGoal struct {
		ID                int64
		Name              string
		TargetCents       int64
		ContributionCents int64
		SavedCents        int64
		Paused            bool
	}

	// BudgetState is the result of one aggregator evaluation.
	BudgetState struct {
		AsOf                  Date
		PeriodIndex           int
		SafeBudgetCents       int64
		FLEDeductionCents     int64
		AmortizationDeduction int64
		SavingsDeduction      int64
		ManualOverrideActive  bool
		BudgetCents           int64
	}

	// Transaction is an incoming bank or manual transaction awaiting (or
	// holding) a classification.
	Transaction struct {
		ID           int64
		MerchantText string
		AmountCents  int64
		Date         Date
		Status       ClassificationStatus
		// MatchedSourceID records the proposal that produced a pending or
		// amortized status; nil when no source cleared the threshold.
		MatchedSourceID *int64
	}

	// MatchCandidate is the ephemeral result of matching one transaction
	// against the amortization sources. Amount is advisory context for the
	// confirmation prompt, never a filter.
	MatchCandidate struct {
		MerchantText    string
		AmountCents     int64
		MatchedSourceID *int64
		Score           int
	}

	// ClassificationStatus tells the cash-balance layer whether a
	// transaction's cost is already absorbed by a per-period deduction.
	ClassificationStatus string

	// Confirmation is the user's answer to a match proposal.
	Confirmation string
)

const (
	StatusPending   ClassificationStatus = "pending"
	StatusRegular   ClassificationStatus = "regular"
	StatusAmortized ClassificationStatus = "amortized"

	ConfirmNone Confirmation = "none"
	ConfirmYes  Confirmation = "yes"
	ConfirmNo   Confirmation = "no"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidPeriodCount = errors.New("invalid period count")
	ErrInvalidPeriodType  = errors.New("invalid period type")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidDate        = errors.New("invalid date")
)

// NewDate creates a day-granular date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO "2006-01-02" date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// ISO formats the date as "2006-01-02".
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// DateOf truncates an arbitrary instant to its day-granular date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// DaysUntil returns the whole-day difference from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time) / (24 * time.Hour))
}

func (p PeriodType) Validate() error {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return nil
	default:
		return ErrInvalidPeriodType
	}
}

func (c Confirmation) Validate() error {
	switch c {
	case ConfirmNone, ConfirmYes, ConfirmNo:
		return nil
	default:
		return errors.New("invalid confirmation")
	}
}

// PerPeriodCents splits total evenly across count periods with half-up
// rounding, so the schedule stays within one cent of the total.
func PerPeriodCents(totalCents int64, count int) int64 {
	n := int64(count)
	q := totalCents / n
	if 2*(totalCents%n) >= n {
		q++
	}
	return q
}

func (e AmortizationEntry) Validate() error {
	if strings.TrimSpace(e.SourceName) == "" {
		return ErrEmptyName
	}
	if e.TotalCents < 0 {
		return ErrInvalidAmount
	}
	if e.PeriodCount < 1 {
		return ErrInvalidPeriodCount
	}
	return e.StartDate.Validate()
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.TargetCents < 0 || g.ContributionCents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsReached reports whether the goal's balance has hit its target.
func (g SavingsGoal) IsReached() bool {
	return g.SavedCents >= g.TargetCents
}

// EntryProgress is the display tuple for an amortization entry.
type EntryProgress struct {
	PeriodsElapsed int
	PeriodCount    int
	IsComplete     bool
}

// GoalProgress is the display tuple for a savings goal.
type GoalProgress struct {
	SavedCents  int64
	TargetCents int64
	IsReached   bool
}
