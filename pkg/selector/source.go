package selector

// Source is the external store an Instance projects from.
//
// Subscribe registers a callback that the store calls, with no arguments,
// whenever its snapshot may have changed. Spurious calls are allowed.
// Snapshot must be cheap; it is called on every notification and every read.
type Source[S any] interface {
	Subscribe(onStoreChange func()) (unsubscribe func())
	Snapshot() S
}

// ServerSource is implemented by sources that can provide a snapshot for
// non-interactive rendering. ok is false when no server snapshot exists.
type ServerSource[S any] interface {
	ServerSnapshot() (snap S, ok bool)
}
