// Package selector memoizes a derived slice of an external store.
//
// An Instance sits between a Source (anything with Subscribe and Snapshot)
// and a host that wants to observe only a selection of that source. The
// selection is recomputed only when the snapshot changes identity, and an
// optional equality function lets semantically equal selections keep their
// previous value so downstream memoization stays stable.
//
// # Basic Usage
//
//	inst := selector.New(store, selector.Sync(func(s *State) int {
//	    return len(s.Todos)
//	}))
//	defer inst.Close()
//
//	unsubscribe := inst.Subscribe(func() {
//	    n, _ := inst.Get()
//	    fmt.Println("todos:", n)
//	})
//	defer unsubscribe()
//
// # Asynchronous Selectors
//
// A selector may return a pending Result. The instance awaits it off the
// caller's goroutine, commits the value through its Scheduler and then
// notifies subscribers. While a resolution is in flight, Get returns the
// last committed selection:
//
//	inst := selector.New(store, selector.Async(func(ctx context.Context, s *State) (Profile, error) {
//	    return api.LoadProfile(ctx, s.UserID)
//	}))
//
// The first Get that sees a pending result starts a resolution exactly once.
// After that, only store change notifications start new ones.
//
// # Overlapping Resolutions
//
// Two store changes in quick succession can leave two resolutions in flight.
// With OverlapLatestWins (the default) a resolution that started before the
// last committed one is discarded when it settles. OverlapSettleOrder commits
// every resolution in the order it settles.
//
// # Identity
//
// Go functions are not comparable, so Slot rebuilds its Instance when the
// Source or the caller-supplied dependency list changes:
//
//	inst := slot.Use(store, sel, userID, filter)
//
// # Thread Safety
//
// Instances are safe for concurrent use. Selectors, equality functions,
// subscribers and the Source are never called while internal locks are held.
package selector
