package source

// Funcs adapts plain functions to selector.Source and selector.ServerSource.
//
// A nil SubscribeFunc never notifies. A nil ServerSnapshotFunc means the
// store has no server snapshot.
type Funcs[S any] struct {
	SubscribeFunc      func(onStoreChange func()) (unsubscribe func())
	SnapshotFunc       func() S
	ServerSnapshotFunc func() S
}

// Subscribe calls SubscribeFunc.
func (f Funcs[S]) Subscribe(onStoreChange func()) func() {
	if f.SubscribeFunc == nil {
		return func() {}
	}
	return f.SubscribeFunc(onStoreChange)
}

// Snapshot calls SnapshotFunc, or returns the zero value if it is nil.
func (f Funcs[S]) Snapshot() S {
	if f.SnapshotFunc == nil {
		var zero S
		return zero
	}
	return f.SnapshotFunc()
}

// ServerSnapshot calls ServerSnapshotFunc. ok is false when it is nil.
func (f Funcs[S]) ServerSnapshot() (S, bool) {
	if f.ServerSnapshotFunc == nil {
		var zero S
		return zero, false
	}
	return f.ServerSnapshotFunc(), true
}
