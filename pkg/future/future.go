package future

import (
	"context"
	"errors"
	"sync"
)

// ErrAbandoned settles a Deferred that was dropped without a value.
var ErrAbandoned = errors.New("future: abandoned")

// Awaitable is anything that can be waited on for a value.
// The selector adapter uses it as the capability check that separates
// deferred selections from immediate ones.
type Awaitable[T any] interface {
	Await(ctx context.Context) (T, error)
}

// Future is a value that becomes available later.
type Future[T any] struct {
	done chan struct{}
	once sync.Once

	// value and err are written once, before done is closed.
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// settle stores the outcome. Reports false if the future was already settled.
func (f *Future[T]) settle(v T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a value or an error.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Go runs fn on a new goroutine and returns its future.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := fn(ctx)
		f.settle(v, err)
	}()
	return f
}

// Resolved returns a future that is already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.settle(v, nil)
	return f
}

// Rejected returns a future that is already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.settle(zero, err)
	return f
}

// From adapts a foreign Awaitable into a Future. A *Future is returned as is.
func From[T any](ctx context.Context, a Awaitable[T]) *Future[T] {
	if f, ok := a.(*Future[T]); ok {
		return f
	}
	return Go(ctx, a.Await)
}

// Deferred is the producer side of a Future.
type Deferred[T any] struct {
	f *Future[T]
}

// NewDeferred creates an unsettled Deferred.
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{f: newFuture[T]()}
}

// Future returns the consumer side.
func (d *Deferred[T]) Future() *Future[T] {
	return d.f
}

// Resolve settles the future with v. Later calls are ignored and return false.
func (d *Deferred[T]) Resolve(v T) bool {
	return d.f.settle(v, nil)
}

// Reject settles the future with err. A nil err becomes ErrAbandoned.
func (d *Deferred[T]) Reject(err error) bool {
	if err == nil {
		err = ErrAbandoned
	}
	var zero T
	return d.f.settle(zero, err)
}
