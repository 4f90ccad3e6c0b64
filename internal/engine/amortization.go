package engine

import (
	"fmt"
	"sort"
	"sync"

	"bilancio/internal/core"
)

// AmortizationLedger owns the amortization entries for one budget. All
// methods are safe for concurrent use; a single mutex serializes mutation
// against reads, which is all the single-user scope needs.
type AmortizationLedger struct {
	mu      sync.Mutex
	period  core.PeriodType
	counter PeriodCounter
	entries map[int64]core.AmortizationEntry
	nextID  int64
}

// EntryUpdate carries the editable fields of an amortization entry. Nil
// fields are left unchanged; touching amount or period count recomputes the
// per-period deduction from the new values.
type EntryUpdate struct {
	SourceName  *string
	TotalCents  *int64
	PeriodCount *int
	StartDate   *core.Date
}

func NewAmortizationLedger(period core.PeriodType) (*AmortizationLedger, error) {
	counter, err := GetPeriodCounter(period)
	if err != nil {
		return nil, err
	}
	return &AmortizationLedger{
		period:  period,
		counter: counter,
		entries: make(map[int64]core.AmortizationEntry),
		nextID:  1,
	}, nil
}

// Load replaces the ledger contents with a persisted snapshot and seeds the
// ID sequence past the highest loaded ID.
func (l *AmortizationLedger) Load(entries []core.AmortizationEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[int64]core.AmortizationEntry, len(entries))
	l.nextID = 1
	for _, e := range entries {
		l.entries[e.ID] = e
		if e.ID >= l.nextID {
			l.nextID = e.ID + 1
		}
	}
}

// Create validates and adds a new entry, fixing its per-period deduction
// from the given total and period count.
func (l *AmortizationLedger) Create(sourceName string, totalCents int64, periodCount int, startDate core.Date) (core.AmortizationEntry, error) {
	e := core.AmortizationEntry{
		SourceName:  sourceName,
		TotalCents:  totalCents,
		PeriodCount: periodCount,
		StartDate:   startDate,
	}
	if err := e.Validate(); err != nil {
		return core.AmortizationEntry{}, fmt.Errorf("validate amortization entry: %w", err)
	}
	e.PerPeriodCents = core.PerPeriodCents(totalCents, periodCount)

	l.mu.Lock()
	defer l.mu.Unlock()

	e.ID = l.nextID
	l.nextID++
	l.entries[e.ID] = e
	return e, nil
}

// Edit applies an update to an existing entry. The whole update is
// validated before anything is stored, so a rejected edit leaves the entry
// untouched. Elapsed periods are derived state and survive edits.
func (l *AmortizationLedger) Edit(id int64, update EntryUpdate) (core.AmortizationEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return core.AmortizationEntry{}, fmt.Errorf("edit amortization entry %d: %w", id, core.ErrNotFound)
	}
	if update.SourceName != nil {
		e.SourceName = *update.SourceName
	}
	if update.TotalCents != nil {
		e.TotalCents = *update.TotalCents
	}
	if update.PeriodCount != nil {
		e.PeriodCount = *update.PeriodCount
	}
	if update.StartDate != nil {
		e.StartDate = *update.StartDate
	}
	if err := e.Validate(); err != nil {
		return core.AmortizationEntry{}, fmt.Errorf("validate amortization entry: %w", err)
	}
	e.PerPeriodCents = core.PerPeriodCents(e.TotalCents, e.PeriodCount)
	l.entries[id] = e
	return e, nil
}

// Delete removes an entry. Completed entries are never removed
// automatically; this is the only way they leave the ledger.
func (l *AmortizationLedger) Delete(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; !ok {
		return fmt.Errorf("delete amortization entry %d: %w", id, core.ErrNotFound)
	}
	delete(l.entries, id)
	return nil
}

// Get returns a single entry by ID.
func (l *AmortizationLedger) Get(id int64) (core.AmortizationEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return core.AmortizationEntry{}, fmt.Errorf("get amortization entry %d: %w", id, core.ErrNotFound)
	}
	return e, nil
}

// Snapshot returns all entries ordered by ID.
func (l *AmortizationLedger) Snapshot() []core.AmortizationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.AmortizationEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveDeductionTotal sums the per-period deduction of every entry whose
// schedule has not completed as of the given date. Completed entries
// contribute zero but stay in the ledger until deleted by the user.
func (l *AmortizationLedger) ActiveDeductionTotal(asOf core.Date) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, e := range l.entries {
		if l.periodsElapsed(e, asOf) < e.PeriodCount {
			total += e.PerPeriodCents
		}
	}
	return total
}

// Progress returns the display tuple (periodsElapsed, periodCount,
// isComplete) for one entry.
func (l *AmortizationLedger) Progress(id int64, asOf core.Date) (core.EntryProgress, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return core.EntryProgress{}, fmt.Errorf("progress for amortization entry %d: %w", id, core.ErrNotFound)
	}
	elapsed := l.periodsElapsed(e, asOf)
	return core.EntryProgress{
		PeriodsElapsed: elapsed,
		PeriodCount:    e.PeriodCount,
		IsComplete:     elapsed >= e.PeriodCount,
	}, nil
}

// periodsElapsed clamps the raw boundary count to [0, periodCount].
// Callers must hold l.mu.
func (l *AmortizationLedger) periodsElapsed(e core.AmortizationEntry, asOf core.Date) int {
	elapsed := l.counter.PeriodsSince(e.StartDate, asOf)
	if elapsed > e.PeriodCount {
		return e.PeriodCount
	}
	return elapsed
}
