package selector

import "sync/atomic"

// Listener is notified when an Instance commits or recomputes a selection.
// Listeners are deduplicated by ID, so subscribing the same listener twice
// registers it once.
type Listener interface {
	// MarkDirty tells the listener to pull the selection again.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	ID() uint64
}

// listenerIDCounter is shared by every listener ID allocated in this package.
var listenerIDCounter uint64

// NextListenerID returns a process-unique listener ID.
func NextListenerID() uint64 {
	return atomic.AddUint64(&listenerIDCounter, 1)
}

// funcListener adapts a plain callback to Listener with a fresh ID.
type funcListener struct {
	id uint64
	fn func()
}

func newFuncListener(fn func()) *funcListener {
	return &funcListener{id: NextListenerID(), fn: fn}
}

func (l *funcListener) MarkDirty() { l.fn() }
func (l *funcListener) ID() uint64 { return l.id }
