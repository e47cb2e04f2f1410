// Package hostbind is a reference host for selector instances.
//
// A Binding subscribes to an instance, re-reads the selection when notified
// and calls a render function only when the selection differs from the one
// it rendered last. After each render it commits the value to a
// selector.Rendered record, which lets a rebuilt instance reuse an equal
// rendered value on its first commit.
//
//	slot := selector.NewSlot[State, View](selector.WithEqual(selector.DeepEqual[View]))
//	b := hostbind.New[View](slot.Use(store, selectView, "view"), slot.Rendered(), paint)
//	b.Start()
//	defer b.Stop()
package hostbind

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/selector/pkg/scheduler"
	"github.com/vango-dev/selector/pkg/selector"
)

// View is the part of a selector.Instance a Binding uses.
type View[T any] interface {
	Get() (T, error)
	SubscribeListener(l selector.Listener) (unsubscribe func())
}

// Option configures a Binding.
type Option func(*config)

type config struct {
	sched  scheduler.Scheduler
	logger *slog.Logger
}

// WithScheduler sets where re-reads and renders run. With scheduler.Inline
// (the default) they run in the notifying goroutine. With a scheduler.Loop,
// notifications that arrive while a re-read is queued are coalesced.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(c *config) {
		if s != nil {
			c.sched = s
		}
	}
}

// WithLogger sets the binding's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Binding connects one View to a render function.
type Binding[T any] struct {
	id       uint64
	rendered *selector.Rendered[T]
	render   func(T)
	sched    scheduler.Scheduler
	logger   *slog.Logger

	mu          sync.Mutex
	view        View[T]
	unsubscribe func()
	started     bool

	queued  atomic.Bool
	renders atomic.Int64
	skips   atomic.Int64
}

var _ selector.Listener = (*Binding[int])(nil)

// New creates a Binding. A nil rendered record gets a private one.
func New[T any](view View[T], rendered *selector.Rendered[T], render func(T), opts ...Option) *Binding[T] {
	if view == nil || render == nil {
		panic("hostbind: New called with nil view or render")
	}
	c := config{sched: scheduler.Inline, logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	if rendered == nil {
		rendered = &selector.Rendered[T]{}
	}
	return &Binding[T]{
		id:       selector.NextListenerID(),
		view:     view,
		rendered: rendered,
		render:   render,
		sched:    c.sched,
		logger:   c.logger,
	}
}

// ID implements selector.Listener.
func (b *Binding[T]) ID() uint64 {
	return b.id
}

// Start subscribes and renders the current selection.
func (b *Binding[T]) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.unsubscribe = b.view.SubscribeListener(b)
	b.mu.Unlock()

	b.pull()
}

// Stop unsubscribes. Queued re-reads still run but render nothing.
func (b *Binding[T]) Stop() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.started = false
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Rebind moves the binding to a new view, typically the instance a
// selector.Slot rebuilt, and renders from it.
func (b *Binding[T]) Rebind(view View[T]) {
	if view == nil {
		return
	}
	b.mu.Lock()
	if b.view == view {
		b.mu.Unlock()
		return
	}
	old := b.unsubscribe
	b.view = view
	b.unsubscribe = nil
	started := b.started
	if started {
		b.unsubscribe = view.SubscribeListener(b)
	}
	b.mu.Unlock()

	if old != nil {
		old()
	}
	if started {
		b.pull()
	}
}

// MarkDirty implements selector.Listener.
func (b *Binding[T]) MarkDirty() {
	if !b.queued.CompareAndSwap(false, true) {
		return
	}
	err := scheduler.Submit(b.sched, func() {
		b.queued.Store(false)
		b.pull()
	})
	if err != nil {
		b.queued.Store(false)
		b.logger.Debug("render dispatch refused", "error", err)
	}
}

// Renders returns how many times render was called.
func (b *Binding[T]) Renders() int64 {
	return b.renders.Load()
}

// Skips returns how many re-reads found the rendered selection unchanged.
func (b *Binding[T]) Skips() int64 {
	return b.skips.Load()
}

// Rendered returns the binding's rendered record.
func (b *Binding[T]) Rendered() *selector.Rendered[T] {
	return b.rendered
}

func (b *Binding[T]) pull() {
	b.mu.Lock()
	view, started := b.view, b.started
	b.mu.Unlock()
	if !started {
		return
	}

	v, err := view.Get()
	if err != nil {
		if !errors.Is(err, selector.ErrClosed) {
			b.logger.Error("selection read failed", "listener", b.id, "error", err)
		}
		return
	}

	if prev, ok := b.rendered.Load(); ok && selector.Identical(prev, v) {
		b.skips.Add(1)
		return
	}

	b.render(v)
	b.rendered.Commit(v)
	b.renders.Add(1)
}
