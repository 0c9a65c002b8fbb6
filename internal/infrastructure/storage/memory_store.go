package storage

import (
	"context"
	"sync"

	"garagelink.app/client/internal/core/ports"
)

// MemoryStore implements an in-memory key-value store (for testing and
// ephemeral sessions)
type MemoryStore struct {
	slots map[string]string
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.slots[key]
	return v, ok, nil
}

func (s *MemoryStore) SetMany(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.slots[k] = v
	}
	return nil
}

func (s *MemoryStore) DeleteMany(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.slots, k)
	}
	return nil
}

// Len returns the number of stored slots
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

var _ ports.KeyValueStore = (*MemoryStore)(nil)
