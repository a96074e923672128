package modestore

import (
	"context"
	"sync"
	"time"
)

type MemModeStore struct {
	mu   sync.RWMutex
	mode Mode
}

var _ ModeStore = (*MemModeStore)(nil)

func NewMemModeStore() *MemModeStore {
	return &MemModeStore{}
}

func (s *MemModeStore) Get(ctx context.Context) (Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, nil
}

func (s *MemModeStore) Set(ctx context.Context, active bool, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = Mode{Active: active, UpdatedAt: ts}
	return nil
}
