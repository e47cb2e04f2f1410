package selector

import "sync"

// bus is the per-instance subscriber set.
//
// The first subscriber subscribes the instance to its upstream store and the
// last one to leave unsubscribes it, so the instance listens upstream exactly
// while the host listens to the instance.
type bus struct {
	// lifecycle serializes add, remove and close so upstream subscribe and
	// unsubscribe calls always pair up.
	lifecycle sync.Mutex

	// mu protects subs and closed.
	mu     sync.RWMutex
	subs   []Listener
	closed bool

	upstream    func() (unsubscribe func())
	unsubscribe func()
}

func newBus(upstream func() (unsubscribe func())) *bus {
	return &bus{upstream: upstream}
}

// add registers l and returns an idempotent disposer.
func (b *bus) add(l Listener) (dispose func()) {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	id := l.ID()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	dup := false
	for _, existing := range b.subs {
		if existing.ID() == id {
			dup = true
			break
		}
	}
	if !dup {
		b.subs = append(b.subs, l)
	}
	first := len(b.subs) == 1 && !dup
	b.mu.Unlock()

	if first && b.unsubscribe == nil && b.upstream != nil {
		b.unsubscribe = b.upstream()
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// remove drops the listener with the given ID. Removing the last listener
// unsubscribes from upstream.
func (b *bus) remove(id uint64) {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	found := false
	for i, existing := range b.subs {
		if existing.ID() == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			found = true
			break
		}
	}
	last := found && len(b.subs) == 0
	b.mu.Unlock()

	if last {
		b.releaseUpstream()
	}
}

// notifyAll calls MarkDirty on a copy of the current subscribers, so a
// listener may add or remove listeners while being notified.
// Returns the number of listeners notified.
func (b *bus) notifyAll() int {
	b.mu.RLock()
	subs := make([]Listener, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.MarkDirty()
	}
	return len(subs)
}

// len returns the number of subscribers.
func (b *bus) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// close drops every subscriber and releases the upstream subscription.
func (b *bus) close() {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	b.closed = true
	b.subs = nil
	b.mu.Unlock()

	b.releaseUpstream()
}

// releaseUpstream must be called with lifecycle held.
func (b *bus) releaseUpstream() {
	if b.unsubscribe == nil {
		return
	}
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	unsubscribe()
}
