package tags

import (
	"maps"
	"sync"
)

// Store keeps the latest value per tag name and remembers which names
// changed since the last flush.
type Store struct {
	mu     sync.Mutex
	values map[string]any
	dirty  map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		values: map[string]any{},
		dirty:  map[string]struct{}{},
	}
}

// Set overwrites name and marks it dirty.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	s.values[name] = value
	s.dirty[name] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

// String returns the first non-empty string value among names.
func (s *Store) String(names ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if v, ok := s.values[n].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}

// TakeDirty returns the changed entries and clears the dirty set.
func (s *Store) TakeDirty() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.dirty))
	for name := range s.dirty {
		out[name] = s.values[name]
	}
	clear(s.dirty)
	return out
}

func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *Store) Reset() {
	s.mu.Lock()
	clear(s.values)
	clear(s.dirty)
	s.mu.Unlock()
}
