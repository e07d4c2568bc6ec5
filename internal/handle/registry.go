// Package handle maps integer ids to live instances so callbacks can carry a
// plain id instead of a pointer.
package handle

import "sync"

type ID uint32

// Invalid is never handed out.
const Invalid ID = 0

type Registry[T any] struct {
	mu    sync.Mutex
	next  ID
	items map[ID]T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[ID]T)}
}

// Add stores v under a fresh id. Ids are not reused.
func (r *Registry[T]) Add(v T) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.items[r.next] = v
	return r.next
}

func (r *Registry[T]) Get(id ID) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	return v, ok
}

// Remove deletes id and returns what was stored there.
func (r *Registry[T]) Remove(id ID) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	delete(r.items, id)
	return v, ok
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Each calls fn for every entry. fn must not call back into the registry.
func (r *Registry[T]) Each(fn func(ID, T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range r.items {
		fn(id, v)
	}
}
