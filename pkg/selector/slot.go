package selector

import (
	"reflect"
	"sync"
)

// Slot holds the Instance for one logical subscription across repeated
// Use calls, the way a hook slot survives re-renders. It rebuilds the
// instance whenever the source or the dependency list changes and keeps the
// rendered-value record across rebuilds.
type Slot[S, T any] struct {
	mu       sync.Mutex
	inst     *Instance[S, T]
	src      Source[S]
	deps     []any
	rendered *Rendered[T]
	opts     []Option
	builds   int
}

// NewSlot creates an empty slot. opts are applied to every Instance it builds.
func NewSlot[S, T any](opts ...Option) *Slot[S, T] {
	return &Slot[S, T]{
		rendered: &Rendered[T]{},
		opts:     opts,
	}
}

// Use returns the slot's Instance, building a new one if src or deps differ
// from the previous call. deps stand in for the identity of the selector and
// equality functions, which Go cannot compare. The replaced instance is
// closed; its subscribers must subscribe to the new one.
func (s *Slot[S, T]) Use(src Source[S], sel Selector[S, T], deps ...any) *Instance[S, T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inst != nil && sameValue(s.src, src) && sameDeps(s.deps, deps) {
		return s.inst
	}

	if s.inst != nil {
		_ = s.inst.Close()
	}

	opts := make([]Option, 0, len(s.opts)+1)
	opts = append(opts, s.opts...)
	opts = append(opts, WithRendered(s.rendered))

	s.inst = New(src, sel, opts...)
	s.src = src
	s.deps = append([]any(nil), deps...)
	s.builds++
	return s.inst
}

// Current returns the last Instance built, or nil.
func (s *Slot[S, T]) Current() *Instance[S, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inst
}

// Rendered returns the record the host commits rendered selections to.
func (s *Slot[S, T]) Rendered() *Rendered[T] {
	return s.rendered
}

// Builds returns how many instances the slot has built.
func (s *Slot[S, T]) Builds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

// Close closes the current Instance.
func (s *Slot[S, T]) Close() error {
	s.mu.Lock()
	inst := s.inst
	s.inst = nil
	s.mu.Unlock()

	if inst == nil {
		return nil
	}
	return inst.Close()
}

func sameDeps(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameValue compares with == when the dynamic types are comparable.
// Non-comparable values never match.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return comparableEqual(a, b)
}
