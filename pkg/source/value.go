package source

import "sync"

// Value is an in-memory store holding one snapshot.
//
// Set notifies subscribers synchronously, in subscription order, after the
// new snapshot is visible to Snapshot. Value is safe for concurrent use.
type Value[S any] struct {
	mu        sync.Mutex
	snap      S
	server    S
	hasServer bool
	version   uint64
	subs      []subscription
	nextID    uint64
}

type subscription struct {
	id uint64
	fn func()
}

// NewValue creates a store holding initial.
func NewValue[S any](initial S) *Value[S] {
	return &Value[S]{snap: initial}
}

// Subscribe registers onStoreChange. The returned function unsubscribes and
// is safe to call more than once.
func (v *Value[S]) Subscribe(onStoreChange func()) func() {
	if onStoreChange == nil {
		return func() {}
	}

	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.subs = append(v.subs, subscription{id: id, fn: onStoreChange})
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			for i, s := range v.subs {
				if s.id == id {
					v.subs = append(v.subs[:i], v.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Snapshot returns the current snapshot.
func (v *Value[S]) Snapshot() S {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// Set replaces the snapshot and notifies subscribers.
func (v *Value[S]) Set(snap S) {
	v.mu.Lock()
	v.snap = snap
	subs := v.publishLocked()
	v.mu.Unlock()
	notify(subs)
}

// Update replaces the snapshot with fn applied to the current one.
// fn runs under the store lock and must not call back into the store.
func (v *Value[S]) Update(fn func(S) S) {
	v.mu.Lock()
	v.snap = fn(v.snap)
	subs := v.publishLocked()
	v.mu.Unlock()
	notify(subs)
}

func (v *Value[S]) publishLocked() []subscription {
	v.version++
	subs := make([]subscription, len(v.subs))
	copy(subs, v.subs)
	return subs
}

func notify(subs []subscription) {
	for _, s := range subs {
		s.fn()
	}
}

// SetServerSnapshot sets the snapshot reported by ServerSnapshot.
// It does not notify.
func (v *Value[S]) SetServerSnapshot(snap S) {
	v.mu.Lock()
	v.server = snap
	v.hasServer = true
	v.mu.Unlock()
}

// ServerSnapshot returns the server snapshot, if one was set.
func (v *Value[S]) ServerSnapshot() (S, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.server, v.hasServer
}

// Version returns how many times Set has been called.
func (v *Value[S]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Subscribers returns the number of registered callbacks.
func (v *Value[S]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}
