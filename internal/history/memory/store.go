// Package memory keeps history in-memory for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/listingwatch/internal/history"
)

// Store records keys in process memory. Nothing survives a restart.
type Store struct {
	mu   sync.RWMutex
	keys []string
}

// New creates a store pre-seeded with keys.
func New(keys ...string) *Store {
	return &Store{keys: append([]string(nil), keys...)}
}

// Load returns a snapshot of the recorded keys.
func (s *Store) Load(_ context.Context) (history.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return history.NewSet(s.keys...), nil
}

// Append records key.
func (s *Store) Append(_ context.Context, key string) error {
	if err := history.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

// Keys returns every appended key in order, including duplicates.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
