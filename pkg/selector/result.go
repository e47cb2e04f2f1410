package selector

import (
	"context"

	"github.com/vango-dev/selector/pkg/future"
)

// Result is what a Selector produces: either an immediate selection or a
// future that resolves to one.
type Result[T any] struct {
	value T
	fut   *future.Future[T]
}

// Now wraps an immediate selection.
func Now[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Later wraps a pending selection. It panics if f is nil.
func Later[T any](f *future.Future[T]) Result[T] {
	if f == nil {
		panic("selector: Later called with nil future")
	}
	return Result[T]{fut: f}
}

// IsPending reports whether the selection is still being computed.
func (r Result[T]) IsPending() bool {
	return r.fut != nil
}

// Value returns the immediate selection, or the zero value if pending.
func (r Result[T]) Value() T {
	return r.value
}

// Future returns the pending computation, or nil for an immediate result.
func (r Result[T]) Future() *future.Future[T] {
	return r.fut
}

// Selector derives a selection from a snapshot.
// ctx is cancelled when the owning Instance is closed.
type Selector[S, T any] func(ctx context.Context, snap S) (Result[T], error)

// Sync builds a Selector from a plain function.
func Sync[S, T any](fn func(S) T) Selector[S, T] {
	return func(_ context.Context, snap S) (Result[T], error) {
		return Now(fn(snap)), nil
	}
}

// SyncE builds a Selector from a function that can fail.
func SyncE[S, T any](fn func(S) (T, error)) Selector[S, T] {
	return func(_ context.Context, snap S) (Result[T], error) {
		v, err := fn(snap)
		if err != nil {
			return Result[T]{}, err
		}
		return Now(v), nil
	}
}

// Async builds a Selector that always runs fn on its own goroutine.
func Async[S, T any](fn func(ctx context.Context, snap S) (T, error)) Selector[S, T] {
	return func(ctx context.Context, snap S) (Result[T], error) {
		return Later(future.Go(ctx, func(ctx context.Context) (T, error) {
			return fn(ctx, snap)
		})), nil
	}
}
