package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vango-dev/selector/pkg/scheduler"
)

// Instance is one memoized subscription to a Source.
//
// It owns its memo, its resolution tracker and its subscriber set; nothing
// is shared with other instances, even ones built from the same inputs.
type Instance[S, T any] struct {
	id       string
	src      Source[S]
	selector Selector[S, T]

	equal         Equal[T]
	snapshotEqual Equal[S]
	rendered      *Rendered[T]
	sched         scheduler.Scheduler
	logger        *slog.Logger
	observer      Observer
	onError       func(error)
	overlap       OverlapPolicy

	ctx    context.Context
	cancel context.CancelFunc

	// readMu orders snapshot reads with their sequence numbers. Only the
	// source's Snapshot runs under it.
	readMu sync.Mutex

	// mu protects memo, track and closed. It is never held while user code
	// runs.
	mu     sync.Mutex
	memo   memoState[S, T]
	track  tracker
	closed bool

	bus *bus
}

// New creates an Instance projecting src through sel.
//
// The instance does not subscribe to src until its first subscriber
// arrives. New panics if a typed option does not match S or T.
func New[S, T any](src Source[S], sel Selector[S, T], opts ...Option) *Instance[S, T] {
	if src == nil {
		panic("selector: New called with nil Source")
	}
	if sel == nil {
		panic("selector: New called with nil Selector")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	in := &Instance[S, T]{
		id:            uuid.NewString(),
		src:           src,
		selector:      sel,
		snapshotEqual: Identical[S],
		sched:         o.scheduler,
		observer:      o.observer,
		onError:       o.onError,
		overlap:       o.overlap,
		memo:          memoState[S, T]{firstRun: true},
	}
	if o.equal != nil {
		eq, ok := o.equal.(Equal[T])
		if !ok {
			panic(fmt.Sprintf("selector: WithEqual type %T does not match selection type", o.equal))
		}
		in.equal = eq
	}
	if o.snapshotEqual != nil {
		eq, ok := o.snapshotEqual.(Equal[S])
		if !ok {
			panic(fmt.Sprintf("selector: WithSnapshotEqual type %T does not match snapshot type", o.snapshotEqual))
		}
		in.snapshotEqual = eq
	}
	if o.rendered != nil {
		r, ok := o.rendered.(*Rendered[T])
		if !ok {
			panic(fmt.Sprintf("selector: WithRendered type %T does not match selection type", o.rendered))
		}
		in.rendered = r
	}

	in.ctx, in.cancel = context.WithCancel(o.ctx)
	in.logger = o.logger.With("instance", in.id)
	in.bus = newBus(in.subscribeUpstream)
	return in
}

// ID returns the instance's unique identifier.
func (in *Instance[S, T]) ID() string {
	return in.id
}

// Subscribe registers fn to be called whenever the selection may have
// changed. The returned function unsubscribes; it is safe to call more than
// once. The first subscriber subscribes the instance to its source and the
// last unsubscribe releases it.
func (in *Instance[S, T]) Subscribe(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return in.bus.add(newFuncListener(fn))
}

// SubscribeListener registers l. A listener with the same ID as an existing
// one is not added twice.
func (in *Instance[S, T]) SubscribeListener(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	return in.bus.add(l)
}

// Subscribers returns the number of registered listeners.
func (in *Instance[S, T]) Subscribers() int {
	return in.bus.len()
}

// Get returns the current selection.
//
// While a resolution is in flight it returns the last committed selection
// (the zero value if none). Otherwise it reads the source snapshot and
// returns the memoized or freshly computed selection. If the selector
// answers with a pending result, the first such Get starts its resolution;
// later ones leave that to store notifications and return the committed
// selection. Selector errors are returned unmodified.
func (in *Instance[S, T]) Get() (T, error) {
	in.mu.Lock()
	if in.closed {
		v := in.memo.selection
		in.mu.Unlock()
		return v, ErrClosed
	}
	if in.track.pending() {
		v := in.memo.selection
		in.mu.Unlock()
		return v, nil
	}
	in.mu.Unlock()

	next, seq := in.readSnapshot()
	res, err := in.computeSelection(next, seq, OriginGetter)
	if err != nil {
		var zero T
		return zero, err
	}
	if !res.IsPending() {
		return res.Value(), nil
	}

	if in.startResolve(true) {
		in.resolveAsync(next, res.Future(), seq, OriginGetter)
	}

	in.mu.Lock()
	v := in.memo.selection
	in.mu.Unlock()
	return v, nil
}

// HandleStoreChange recomputes the selection after a store notification.
// An immediate selection notifies subscribers right away; a pending one
// starts a resolution that notifies when it commits.
//
// The instance calls this from its own upstream subscription. It is exported
// for hosts that forward store notifications themselves.
func (in *Instance[S, T]) HandleStoreChange() error {
	in.mu.Lock()
	closed := in.closed
	in.mu.Unlock()
	if closed {
		return ErrClosed
	}

	next, seq := in.readSnapshot()
	res, err := in.computeSelection(next, seq, OriginStore)
	if err != nil {
		return err
	}
	if res.IsPending() {
		if in.startResolve(false) {
			in.resolveAsync(next, res.Future(), seq, OriginStore)
		}
		return nil
	}
	in.notify()
	return nil
}

// ServerSelection runs the selector once against the source's server
// snapshot, awaiting a pending result. Nothing is memoized. ok is false when
// the source has no server snapshot.
func (in *Instance[S, T]) ServerSelection(ctx context.Context) (value T, ok bool, err error) {
	ss, isServer := in.src.(ServerSource[S])
	if !isServer {
		return value, false, nil
	}
	snap, has := ss.ServerSnapshot()
	if !has {
		return value, false, nil
	}

	res, err := in.selector(ctx, snap)
	if err != nil {
		return value, true, err
	}
	if !res.IsPending() {
		return res.Value(), true, nil
	}
	value, err = res.Future().Await(ctx)
	return value, true, err
}

// Pending reports whether an asynchronous resolution is in flight.
func (in *Instance[S, T]) Pending() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.track.pending()
}

// Close releases the upstream subscription, drops all subscribers and
// cancels the selector context. Resolutions that settle afterwards are
// discarded. Close is idempotent.
func (in *Instance[S, T]) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	in.mu.Unlock()

	in.cancel()
	in.bus.close()
	in.logger.Debug("instance closed")
	return nil
}

// subscribeUpstream is called by the bus when its first listener arrives.
func (in *Instance[S, T]) subscribeUpstream() (unsubscribe func()) {
	in.logger.Debug("subscribing to source")
	unsubscribe = in.src.Subscribe(in.onStoreChange)
	if unsubscribe == nil {
		return func() {}
	}
	return func() {
		in.logger.Debug("unsubscribing from source")
		unsubscribe()
	}
}

// onStoreChange is the callback handed to the source. Failures have no
// caller to return to and go to the error handler.
func (in *Instance[S, T]) onStoreChange() {
	if err := in.HandleStoreChange(); err != nil && !errors.Is(err, ErrClosed) {
		in.reportError(err)
	}
}

// notify fans out to every subscriber. Callers must have committed first.
func (in *Instance[S, T]) notify() {
	n := in.bus.notifyAll()
	in.observer.OnNotify(in.id, n)
}

func (in *Instance[S, T]) reportError(err error) {
	if in.onError != nil {
		in.onError(err)
		return
	}
	in.logger.Error("selector failed", "error", err)
}
