package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

// ProgressRecord is one AppendGoalProgress call as the store received it.
type ProgressRecord struct {
	AsOf  core.Date
	Goals []ports.GoalRow
}

// Store is an in-memory spreadsheet stand-in for tests and local runs.
type Store struct {
	mu        sync.Mutex
	snapshots []core.BudgetState
	progress  []ProgressRecord
}

var (
	_ ports.SnapshotWriter = (*Store)(nil)
	_ ports.ProgressWriter = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// AppendSnapshot stores the state and returns a synthetic row reference.
func (s *Store) AppendSnapshot(_ context.Context, state core.BudgetState) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, state)
	return fmt.Sprintf("mem:%d", len(s.snapshots)), nil
}

func (s *Store) AppendGoalProgress(_ context.Context, asOf core.Date, goals []ports.GoalRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, ProgressRecord{
		AsOf:  asOf,
		Goals: append([]ports.GoalRow(nil), goals...),
	})
	return nil
}

// Snapshots returns a copy of everything appended so far.
func (s *Store) Snapshots() []core.BudgetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.BudgetState(nil), s.snapshots...)
}

// Progress returns a copy of all recorded goal progress appends.
func (s *Store) Progress() []ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressRecord(nil), s.progress...)
}
