package selector

import (
	"context"
	"time"

	"github.com/vango-dev/selector/pkg/future"
	"github.com/vango-dev/selector/pkg/scheduler"
)

// tracker holds the asynchronous resolution state of an Instance.
// All fields are protected by the Instance mutex.
type tracker struct {
	// inFlight counts resolutions that have started and not yet settled.
	inFlight int

	// nextSeq numbers computations in the order their snapshot was read.
	// Allocation happens inside readSnapshot.
	nextSeq uint64

	// committedSeq is the sequence number of the committed pair.
	committedSeq uint64
}

// begin allocates the sequence number for a new computation.
func (t *tracker) begin() uint64 {
	t.nextSeq++
	return t.nextSeq
}

// pending reports whether a resolution is in flight.
func (t *tracker) pending() bool {
	return t.inFlight > 0
}

// startResolve marks a resolution as in flight and clears the first-run
// latch. When onlyFirst is set, nothing starts unless the latch was still
// set. Reports whether the resolution was started.
func (in *Instance[S, T]) startResolve(onlyFirst bool) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return false
	}
	if onlyFirst && !in.memo.firstRun {
		return false
	}
	in.memo.firstRun = false
	in.track.inFlight++
	return true
}

// resolveAsync awaits a pending selection off the caller's goroutine and
// applies the outcome through the scheduler. Callers must have called
// startResolve first.
func (in *Instance[S, T]) resolveAsync(next S, f *future.Future[T], seq uint64, origin Origin) {
	start := time.Now()
	spanCtx := in.observer.OnResolveStart(in.ctx, in.id, origin)
	in.logger.Debug("resolution started", "origin", origin.String(), "seq", seq)

	go func() {
		value, err := f.Await(in.ctx)
		refused := scheduler.Submit(in.sched, func() {
			in.settle(spanCtx, next, value, err, seq, origin, start)
		})
		if refused != nil {
			in.abandon(spanCtx, seq, origin, start, refused)
		}
	}()
}

// abandon releases a resolution whose settlement the scheduler refused, so
// the instance does not stay pending forever.
func (in *Instance[S, T]) abandon(spanCtx context.Context, seq uint64, origin Origin, start time.Time, err error) {
	in.mu.Lock()
	in.track.inFlight--
	in.mu.Unlock()

	in.logger.Warn("scheduler refused resolution", "origin", origin.String(), "seq", seq, "error", err)
	in.observer.OnResolveSettle(spanCtx, in.id, origin, time.Since(start), false, err)
}

// settle applies a settled resolution: rejected and stale outcomes leave the
// memo alone; a fulfilled one is committed and then announced. The in-flight
// count drops in the same critical section as the commit, so readers never
// see the instance idle before the new selection is in place.
func (in *Instance[S, T]) settle(spanCtx context.Context, next S, value T, err error, seq uint64, origin Origin, start time.Time) {
	in.mu.Lock()
	st := in.memo
	closed := in.closed
	stale := in.overlap == OverlapLatestWins && st.hasMemo && seq < in.track.committedSeq
	if closed || err != nil || stale {
		in.track.inFlight--
	}
	in.mu.Unlock()

	elapsed := time.Since(start)

	switch {
	case closed:
		in.observer.OnResolveSettle(spanCtx, in.id, origin, elapsed, false, ErrClosed)
		return
	case err != nil:
		in.reportError(&ResolveError{InstanceID: in.id, Origin: origin, Err: err})
		in.observer.OnResolveSettle(spanCtx, in.id, origin, elapsed, false, err)
		return
	case stale:
		in.logger.Warn("discarding stale resolution", "origin", origin.String(), "seq", seq)
		in.observer.OnStale(in.id, origin)
		in.observer.OnResolveSettle(spanCtx, in.id, origin, elapsed, false, nil)
		return
	}

	chosen := in.chooseSelection(st, value)

	in.mu.Lock()
	in.track.inFlight--
	_, committed := in.commitLocked(seq, next, chosen, in.overlap == OverlapSettleOrder)
	in.mu.Unlock()

	in.observer.OnResolveSettle(spanCtx, in.id, origin, elapsed, committed, nil)
	if !committed {
		in.logger.Warn("discarding stale resolution", "origin", origin.String(), "seq", seq)
		in.observer.OnStale(in.id, origin)
		return
	}

	in.logger.Debug("resolution committed", "origin", origin.String(), "seq", seq, "duration", elapsed)
	in.notify()
}
