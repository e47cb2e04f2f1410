// Package scheduler provides the cooperative task queues that selector
// instances use to apply asynchronous results.
//
// Work that finishes on another goroutine is handed back through
// Scheduler.Dispatch, so all state transitions of an instance happen in the
// order they were dispatched. Inline applies them immediately on the calling
// goroutine; Loop funnels them through a single event-loop goroutine.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrQueueFull is returned by TryDispatch when the loop queue has no room.
var ErrQueueFull = errors.New("scheduler: dispatch queue full")

// ErrStopped is returned by TryDispatch after the loop has been stopped.
var ErrStopped = errors.New("scheduler: loop stopped")

// DefaultQueueSize is the dispatch queue capacity used by NewLoop.
const DefaultQueueSize = 256

// Scheduler queues a function to run on the owner's event loop.
type Scheduler interface {
	Dispatch(fn func())
}

// Submitter is implemented by schedulers that can refuse work.
type Submitter interface {
	Scheduler
	Submit(fn func()) error
}

// Submit queues fn on s and reports whether it was refused. Schedulers that
// do not implement Submitter always accept.
func Submit(s Scheduler, fn func()) error {
	if sub, ok := s.(Submitter); ok {
		return sub.Submit(fn)
	}
	s.Dispatch(fn)
	return nil
}

// Func adapts a plain function to the Scheduler interface.
type Func func(fn func())

// Dispatch calls f(fn).
func (f Func) Dispatch(fn func()) { f(fn) }

type inline struct{}

func (inline) Dispatch(fn func()) { fn() }

// Inline runs dispatched functions synchronously on the caller's goroutine.
var Inline Scheduler = inline{}

// Loop is a single-goroutine event loop.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	executed atomic.Int64
	logger   *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.queue = make(chan func(), n)
		}
	}
}

// WithLogger sets the logger used for dropped work and recovered panics.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop creates a stopped loop. Call Run to start processing.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queue:  make(chan func(), DefaultQueueSize),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dispatch queues fn, blocking while the queue is full.
// Work dispatched after Stop is discarded.
func (l *Loop) Dispatch(fn func()) {
	if err := l.Submit(fn); err != nil {
		l.logger.Debug("loop stopped, discarding dispatch")
	}
}

// Submit is Dispatch with feedback: it returns ErrStopped when fn was
// discarded because the loop has been stopped.
func (l *Loop) Submit(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// TryDispatch queues fn without blocking.
func (l *Loop) TryDispatch(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	default:
		l.logger.Warn("dispatch queue full, discarding callback")
		return ErrQueueFull
	}
}

// Run processes dispatched functions until ctx is done or Stop is called.
// Only one Run may be active at a time.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("scheduler: loop already running")
	}
	defer l.running.Store(false)

	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		}
	}
}

// Drain runs every queued function on the caller's goroutine and returns how
// many ran. Useful when the loop is driven manually.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
			n++
		default:
			return n
		}
	}
}

// Stop ends Run and discards further dispatches. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// Executed returns the number of functions run so far.
func (l *Loop) Executed() int64 {
	return l.executed.Load()
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	return len(l.queue)
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.executed.Add(1)
	fn()
}
