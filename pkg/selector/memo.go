package selector

import "time"

// memoState is the single cached (snapshot, selection) pair of an Instance.
// snapshot and selection are only meaningful when hasMemo is true, and they
// are always written together.
type memoState[S, T any] struct {
	hasMemo   bool
	snapshot  S
	selection T

	// firstRun stays true until the first asynchronous resolution has been
	// scheduled. It lets Get start one resolution on its own.
	firstRun bool
}

// readSnapshot reads the source snapshot and numbers it. Reads are
// serialized so a later read always carries a higher sequence number.
func (in *Instance[S, T]) readSnapshot() (S, uint64) {
	in.readMu.Lock()
	defer in.readMu.Unlock()

	next := in.src.Snapshot()
	in.mu.Lock()
	seq := in.track.begin()
	in.mu.Unlock()
	return next, seq
}

// computeSelection returns the selection for next, either from the memo or
// by running the selector. seq comes from the readSnapshot call that
// produced next. A pending result leaves the memo untouched.
func (in *Instance[S, T]) computeSelection(next S, seq uint64, origin Origin) (Result[T], error) {
	in.mu.Lock()
	st := in.memo
	in.mu.Unlock()

	if st.hasMemo && in.snapshotEqual(st.snapshot, next) {
		in.observer.OnReuse(in.id, origin)
		return Now(st.selection), nil
	}

	start := time.Now()
	res, err := in.selector(in.ctx, next)
	if err != nil {
		return Result[T]{}, err
	}
	if res.IsPending() {
		in.logger.Debug("selector pending", "origin", origin.String(), "seq", seq)
		return res, nil
	}
	in.observer.OnCompute(in.id, origin, time.Since(start))

	value := in.chooseSelection(st, res.Value())
	committed, _ := in.commit(seq, next, value, false)
	return Now(committed), nil
}

// chooseSelection applies the selection equality to a fresh value.
//
// Before the first commit the fresh value is compared with what the host has
// rendered; afterwards with the memoized selection. An equal value is
// replaced by the older one so its identity survives.
func (in *Instance[S, T]) chooseSelection(st memoState[S, T], fresh T) T {
	if in.equal == nil {
		return fresh
	}
	if !st.hasMemo {
		if rendered, ok := in.rendered.Load(); ok && in.equal(rendered, fresh) {
			return rendered
		}
		return fresh
	}
	if in.equal(st.selection, fresh) {
		return st.selection
	}
	return fresh
}

// commit stores the (snapshot, selection) pair computed at seq.
//
// Unless force is set, a pair older than the committed one is rejected and
// the committed selection is returned instead. force is used by
// OverlapSettleOrder settlements.
func (in *Instance[S, T]) commit(seq uint64, snap S, value T, force bool) (T, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.commitLocked(seq, snap, value, force)
}

func (in *Instance[S, T]) commitLocked(seq uint64, snap S, value T, force bool) (T, bool) {
	if in.closed {
		return in.memo.selection, false
	}
	if !force && in.memo.hasMemo && seq < in.track.committedSeq {
		return in.memo.selection, false
	}
	in.memo.hasMemo = true
	in.memo.snapshot = snap
	in.memo.selection = value
	if seq > in.track.committedSeq {
		in.track.committedSeq = seq
	}
	return value, true
}
