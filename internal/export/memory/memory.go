// Package memory is an in-process export target, used in tests and as a
// stand-in when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/export"
)

type Store struct {
	mu   sync.Mutex
	rows map[int64]core.ClassifiedTransaction
}

var _ export.Target = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[int64]core.ClassifiedTransaction)}
}

func (s *Store) UpsertTransaction(_ context.Context, tx core.ClassifiedTransaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Get returns the exported row for a transaction id, if present.
func (s *Store) Get(id int64) (core.ClassifiedTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.rows[id]
	return tx, ok
}

// Len reports how many rows the target holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
