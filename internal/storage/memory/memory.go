package memory

import (
	"context"
	"fmt"
	"sync"

	"expenses/internal/core"
	"expenses/internal/storage"
)

// Store keeps expenses in process memory, in insertion order. Contents are
// lost when the process exits.
type Store struct {
	mu     sync.Mutex
	lastID int64
	items  []core.Expense
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Add stores the expense under the next id.
func (s *Store) Add(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	e.ID = s.lastID
	s.items = append(s.items, *e)
	return nil
}

func (s *Store) Update(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == e.ID {
			s.items[i] = e
			return nil
		}
	}
	return fmt.Errorf("update expense %d: %w", e.ID, core.ErrNotFound)
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetAll returns a copy, so callers cannot mutate stored records.
func (s *Store) GetAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...), nil
}
