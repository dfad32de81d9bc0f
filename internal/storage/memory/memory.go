// Package memory is an in-process Ledger Store used by tests and the memory backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"saldo/internal/core"
	"saldo/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	record *core.AppData
	// FailWrites makes every SaveData fail, for exercising commit failures.
	FailWrites bool
	// FailReads makes Init and GetData report the store as unavailable.
	FailReads bool
	saves     int
}

var _ storage.LedgerStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewWithData returns a store that already holds data.
func NewWithData(data core.AppData) *Store {
	cp := data.Clone()
	return &Store{record: &cp}
}

func (s *Store) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return fmt.Errorf("%w: memory store disabled", core.ErrStorageUnavailable)
	}
	return nil
}

func (s *Store) GetData(_ context.Context) (*core.AppData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return nil, fmt.Errorf("%w: memory store disabled", core.ErrStorageUnavailable)
	}
	if s.record == nil {
		return nil, nil
	}
	cp := s.record.Clone()
	return &cp, nil
}

func (s *Store) SaveData(_ context.Context, data core.AppData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return fmt.Errorf("%w: memory store rejects writes", core.ErrWriteFailed)
	}
	if s.record != nil && data.Version <= s.record.Version {
		return fmt.Errorf("%w: version %d", core.ErrStaleWrite, data.Version)
	}
	cp := data.Clone()
	s.record = &cp
	s.saves++
	return nil
}

// SetFailWrites toggles write failures under the store lock.
func (s *Store) SetFailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailWrites = fail
}

// Saves returns the number of successful commits.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Close() error { return nil }
