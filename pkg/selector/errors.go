package selector

import "errors"

// ErrClosed is returned by operations on an Instance after Close.
var ErrClosed = errors.New("selector: instance closed")

// ErrResultType is returned by an Adapt selector whose function produced a
// value that is neither a selection nor an awaitable selection.
var ErrResultType = errors.New("selector: unsupported selector result type")

// ResolveError wraps the failure of an asynchronous resolution.
// It is delivered to the error handler, never returned from Get.
type ResolveError struct {
	InstanceID string
	Origin     Origin
	Err        error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return "selector: async resolution from " + e.Origin.String() + " failed: " + e.Err.Error()
}

// Unwrap returns the selector's error for errors.Is/As support.
func (e *ResolveError) Unwrap() error {
	return e.Err
}
