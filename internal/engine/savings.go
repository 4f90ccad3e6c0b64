package engine

import (
	"fmt"
	"sort"
	"sync"

	"bilancio/internal/core"
)

// SavingsLedger owns the savings goals and the rollover watermark for one
// budget. Contributions accrue at period boundaries through
// ApplyPeriodRollover; reads never mutate.
type SavingsLedger struct {
	mu      sync.Mutex
	period  core.PeriodType
	counter PeriodCounter
	anchor  core.Date
	goals   map[int64]core.SavingsGoal
	nextID  int64
	// lastRolloverIdx is the cycle period index accruals have been applied
	// through. Calling ApplyPeriodRollover again inside the same period is
	// a no-op, which makes rollover safe against double invocation.
	lastRolloverIdx int
}

// GoalUpdate carries the editable fields of a savings goal. Nil fields are
// left unchanged. Lowering the target below the saved balance caps the
// balance at the new target.
type GoalUpdate struct {
	Name              *string
	TargetCents       *int64
	ContributionCents *int64
}

// NewSavingsLedger creates a ledger anchored on the budget cycle start
// date; period indices for the rollover watermark count from that anchor.
func NewSavingsLedger(period core.PeriodType, anchor core.Date) (*SavingsLedger, error) {
	counter, err := GetPeriodCounter(period)
	if err != nil {
		return nil, err
	}
	if err := anchor.Validate(); err != nil {
		return nil, fmt.Errorf("savings ledger anchor: %w", err)
	}
	return &SavingsLedger{
		period:  period,
		counter: counter,
		anchor:  anchor,
		goals:   make(map[int64]core.SavingsGoal),
		nextID:  1,
	}, nil
}

// Load replaces the ledger contents with a persisted snapshot and restores
// the rollover watermark.
func (l *SavingsLedger) Load(goals []core.SavingsGoal, lastRolloverIdx int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.goals = make(map[int64]core.SavingsGoal, len(goals))
	l.nextID = 1
	for _, g := range goals {
		l.goals[g.ID] = g
		if g.ID >= l.nextID {
			l.nextID = g.ID + 1
		}
	}
	l.lastRolloverIdx = lastRolloverIdx
}

func (l *SavingsLedger) Create(name string, targetCents, contributionCents int64) (core.SavingsGoal, error) {
	g := core.SavingsGoal{
		Name:              name,
		TargetCents:       targetCents,
		ContributionCents: contributionCents,
	}
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("validate savings goal: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	g.ID = l.nextID
	l.nextID++
	l.goals[g.ID] = g
	return g, nil
}

// Edit applies an update; the edited fields take effect from the next
// evaluation. The saved balance is re-capped so 0 ≤ saved ≤ target holds
// after every mutation.
func (l *SavingsLedger) Edit(id int64, update GoalUpdate) (core.SavingsGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals[id]
	if !ok {
		return core.SavingsGoal{}, fmt.Errorf("edit savings goal %d: %w", id, core.ErrNotFound)
	}
	if update.Name != nil {
		g.Name = *update.Name
	}
	if update.TargetCents != nil {
		g.TargetCents = *update.TargetCents
	}
	if update.ContributionCents != nil {
		g.ContributionCents = *update.ContributionCents
	}
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("validate savings goal: %w", err)
	}
	if g.SavedCents > g.TargetCents {
		g.SavedCents = g.TargetCents
	}
	l.goals[id] = g
	return g, nil
}

// Delete removes a goal. The saved balance is not refunded anywhere;
// deletion is final.
func (l *SavingsLedger) Delete(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.goals[id]; !ok {
		return fmt.Errorf("delete savings goal %d: %w", id, core.ErrNotFound)
	}
	delete(l.goals, id)
	return nil
}

func (l *SavingsLedger) Get(id int64) (core.SavingsGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals[id]
	if !ok {
		return core.SavingsGoal{}, fmt.Errorf("get savings goal %d: %w", id, core.ErrNotFound)
	}
	return g, nil
}

// SetPaused toggles a goal's pause flag without touching its balance.
func (l *SavingsLedger) SetPaused(id int64, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals[id]
	if !ok {
		return fmt.Errorf("pause savings goal %d: %w", id, core.ErrNotFound)
	}
	g.Paused = paused
	l.goals[id] = g
	return nil
}

// SetPausedAll toggles every goal at once.
func (l *SavingsLedger) SetPausedAll(paused bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, g := range l.goals {
		g.Paused = paused
		l.goals[id] = g
	}
}

// ApplyPeriodRollover accrues contributions for every period boundary
// crossed since the last rollover, at most once per boundary. Each elapsed
// period adds one contribution per active goal, capped at the target; no
// backlog accumulates for paused or reached goals. Returns the number of
// periods applied (zero when asOf maps to an already-applied or earlier
// period).
func (l *SavingsLedger) ApplyPeriodRollover(asOf core.Date) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.counter.PeriodsSince(l.anchor, asOf)
	if idx <= l.lastRolloverIdx {
		return 0
	}
	steps := idx - l.lastRolloverIdx

	for id, g := range l.goals {
		if g.Paused {
			continue
		}
		for i := 0; i < steps && g.SavedCents < g.TargetCents; i++ {
			g.SavedCents += g.ContributionCents
			if g.SavedCents > g.TargetCents {
				g.SavedCents = g.TargetCents
			}
		}
		l.goals[id] = g
	}
	l.lastRolloverIdx = idx
	return steps
}

// ActiveDeductionTotal sums the contribution of every goal that is neither
// paused nor reached, against the current pre-rollover balance: the
// deduction applies to the period in progress while accrual happens at the
// rollover into it.
func (l *SavingsLedger) ActiveDeductionTotal() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, g := range l.goals {
		if g.Paused || g.IsReached() {
			continue
		}
		total += g.ContributionCents
	}
	return total
}

// Progress returns the display tuple (saved, target, isReached).
func (l *SavingsLedger) Progress(id int64) (core.GoalProgress, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals[id]
	if !ok {
		return core.GoalProgress{}, fmt.Errorf("progress for savings goal %d: %w", id, core.ErrNotFound)
	}
	return core.GoalProgress{
		SavedCents:  g.SavedCents,
		TargetCents: g.TargetCents,
		IsReached:   g.IsReached(),
	}, nil
}

// Snapshot returns all goals ordered by ID.
func (l *SavingsLedger) Snapshot() []core.SavingsGoal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.SavingsGoal, 0, len(l.goals))
	for _, g := range l.goals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Watermark returns the period index accruals have been applied through,
// for persistence after a rollover.
func (l *SavingsLedger) Watermark() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRolloverIdx
}
