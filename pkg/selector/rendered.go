package selector

import "sync"

// Rendered records the last selection a host actually committed.
//
// The host writes it after a render; an Instance only reads it, on its first
// commit, to reuse an equal rendered value instead of a fresh one. A nil
// *Rendered is valid and never holds a value.
type Rendered[T any] struct {
	mu    sync.RWMutex
	has   bool
	value T
}

// Commit stores v as the rendered value.
func (r *Rendered[T]) Commit(v T) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.value = v
	r.has = true
	r.mu.Unlock()
}

// Load returns the rendered value, if any.
func (r *Rendered[T]) Load() (T, bool) {
	if r == nil {
		var zero T
		return zero, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.has
}

// Reset forgets the rendered value.
func (r *Rendered[T]) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	var zero T
	r.value = zero
	r.has = false
	r.mu.Unlock()
}
