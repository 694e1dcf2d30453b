package stores

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store backed by a map. It is safe for
// concurrent use and intended for tests and ephemeral contexts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns the value for key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Put stores value under key.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// Delete removes key, reporting whether a value was present.
func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}

// List returns entries with the given prefix in ascending key order.
func (s *MemoryStore) List(_ context.Context, prefix string, limit int) ([]KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, len(s.data[k]))
		copy(v, s.data[k])
		out = append(out, KV{Key: k, Value: v})
	}
	return out, nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }
