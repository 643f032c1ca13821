package memory

import (
	"context"
	"fmt"
	"sync"

	"expensa/internal/mirror"
)

var (
	_ mirror.Mirror        = (*Store)(nil)
	_ mirror.ExpenseLister = (*Store)(nil)
)

// Store keeps mirrored rows in process memory, in insertion order.
type Store struct {
	mu    sync.Mutex
	index map[string]int
	rows  []mirror.Row
}

func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Upsert stores the row and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, r mirror.Row) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[r.ExpenseID]; ok {
		s.rows[i] = r
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, r)
	s.index[r.ExpenseID] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) Delete(_ context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[expenseID]
	if !ok {
		return nil
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	delete(s.index, expenseID)
	for id, j := range s.index {
		if j > i {
			s.index[id] = j - 1
		}
	}
	return nil
}

func (s *Store) ExpenseIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, r := range s.rows {
		if r.UserID == userID {
			ids = append(ids, r.ExpenseID)
		}
	}
	return ids, nil
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows() []mirror.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mirror.Row(nil), s.rows...)
}
