package selector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func countSelector(calls *int32) Selector[*state, *selection] {
	return Sync(func(s *state) *selection {
		atomic.AddInt32(calls, 1)
		return &selection{Count: s.Count}
	})
}

func TestReuseLawSkipsSelector(t *testing.T) {
	snap := &state{Count: 1}
	store := newTestStore(snap)

	var calls int32
	in := New[*state, *selection](store, countSelector(&calls))
	defer in.Close()

	if _, err := in.Get(); err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Same pointer again: identical snapshot.
	store.Set(snap)
	if _, err := in.Get(); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected selector to run once, ran %d times", got)
	}
}

func TestGetReturnsSameReference(t *testing.T) {
	store := newTestStore(&state{Count: 3})
	var calls int32
	in := New[*state, *selection](store, countSelector(&calls))
	defer in.Close()

	a, _ := in.Get()
	b, _ := in.Get()
	if a != b {
		t.Errorf("expected identical references, got %p and %p", a, b)
	}
	if a.Count != 3 {
		t.Errorf("expected count 3, got %d", a.Count)
	}
}

func TestSnapshotChangeRecomputes(t *testing.T) {
	store := newTestStore(&state{Count: 1})
	var calls int32
	in := New[*state, *selection](store, countSelector(&calls))
	defer in.Close()

	first, _ := in.Get()
	store.Set(&state{Count: 2})
	second, _ := in.Get()

	if first == second {
		t.Error("expected a new selection after the snapshot changed")
	}
	if second.Count != 2 {
		t.Errorf("expected count 2, got %d", second.Count)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 selector runs, got %d", got)
	}
}

func TestNotifyAllLeavesSelectionAlone(t *testing.T) {
	store := newTestStore(&state{Count: 1})
	var calls int32
	in := New[*state, *selection](store, countSelector(&calls))
	defer in.Close()

	notified := 0
	unsubscribe := in.Subscribe(func() { notified++ })
	defer unsubscribe()

	before, _ := in.Get()
	for i := 0; i < 3; i++ {
		in.bus.notifyAll()
	}
	after, _ := in.Get()

	if before != after {
		t.Error("repeated notifyAll must not change the memoized selection")
	}
	if notified != 3 {
		t.Errorf("expected 3 notifications, got %d", notified)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected selector to run once, ran %d times", got)
	}
}

func TestEqualReusesRenderedValue(t *testing.T) {
	store := newTestStore(&state{Count: 5})
	rendered := &Rendered[*selection]{}
	prior := &selection{Count: 5}
	rendered.Commit(prior)

	in := New[*state, *selection](store,
		Sync(func(s *state) *selection { return &selection{Count: s.Count} }),
		WithEqual(DeepEqual[*selection]),
		WithRendered(rendered),
	)
	defer in.Close()

	got, err := in.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != prior {
		t.Error("expected the currently rendered reference to be reused")
	}
}

func TestRenderedIgnoredWithoutEqual(t *testing.T) {
	store := newTestStore(&state{Count: 5})
	rendered := &Rendered[*selection]{}
	prior := &selection{Count: 5}
	rendered.Commit(prior)

	in := New[*state, *selection](store,
		Sync(func(s *state) *selection { return &selection{Count: s.Count} }),
		WithRendered(rendered),
	)
	defer in.Close()

	got, _ := in.Get()
	if got == prior {
		t.Error("without a selection equality the fresh value must be used")
	}
}

func TestEqualKeepsPreviousSelection(t *testing.T) {
	store := newTestStore(&state{Count: 1, Name: "a"})
	var calls int32
	in := New[*state, *selection](store, countSelector(&calls), WithEqual(DeepEqual[*selection]))
	defer in.Close()

	first, _ := in.Get()

	// Different snapshot, same derived count.
	next := &state{Count: 1, Name: "b"}
	store.Set(next)
	second, _ := in.Get()
	if first != second {
		t.Error("expected the previous selection to be kept when equal")
	}

	// The snapshot advanced with the kept selection, so reading again does
	// not rerun the selector.
	third, _ := in.Get()
	if third != first {
		t.Error("expected the kept selection on the next read")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 selector runs, got %d", got)
	}
}

func TestSelectorErrorPropagatesUnmodified(t *testing.T) {
	wantErr := errors.New("selector exploded")
	store := newTestStore(&state{Count: 1})

	in := New[*state, *selection](store, SyncE(func(s *state) (*selection, error) {
		if s.Count < 0 {
			return nil, wantErr
		}
		return &selection{Count: s.Count}, nil
	}))
	defer in.Close()

	good, err := in.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	store.Set(&state{Count: -1})
	_, err = in.Get()
	if err != wantErr {
		t.Fatalf("expected the selector error unchanged, got %v", err)
	}

	// The failed computation committed nothing.
	store.Set(&state{Count: 1})
	in.mu.Lock()
	kept := in.memo.selection
	in.mu.Unlock()
	if kept != good {
		t.Error("a failed selector must leave the memo untouched")
	}
}

func TestStoreChangeErrorGoesToHandler(t *testing.T) {
	wantErr := errors.New("bad snapshot")
	store := newTestStore(&state{Count: 1})

	var handled []error
	in := New[*state, *selection](store,
		SyncE(func(s *state) (*selection, error) {
			if s.Count < 0 {
				return nil, wantErr
			}
			return &selection{Count: s.Count}, nil
		}),
		WithErrorHandler(func(err error) { handled = append(handled, err) }),
	)
	defer in.Close()

	unsubscribe := in.Subscribe(func() {})
	defer unsubscribe()

	store.Set(&state{Count: -1})

	if len(handled) != 1 || handled[0] != wantErr {
		t.Fatalf("expected handler to receive %v, got %v", wantErr, handled)
	}
}

func TestEqualPanicPropagates(t *testing.T) {
	store := newTestStore(&state{Count: 1})
	in := New[*state, *selection](store,
		Sync(func(s *state) *selection { return &selection{Count: s.Count} }),
		WithEqual(func(a, b *selection) bool { panic("bad equality") }),
	)
	defer in.Close()

	if _, err := in.Get(); err != nil {
		t.Fatalf("Get: %v", err)
	}

	store.Set(&state{Count: 2})

	defer func() {
		if r := recover(); r != "bad equality" {
			t.Errorf("expected equality panic to propagate, got %v", r)
		}
	}()
	_, _ = in.Get()
	t.Error("expected Get to panic")
}

func TestSnapshotEqualOverride(t *testing.T) {
	store := newTestStore(&state{Count: 1, Name: "x"})
	var calls int32
	in := New[*state, *selection](store, countSelector(&calls),
		WithSnapshotEqual(func(a, b *state) bool { return a.Count == b.Count }),
	)
	defer in.Close()

	_, _ = in.Get()
	store.Set(&state{Count: 1, Name: "y"})
	_, _ = in.Get()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("custom snapshot equality should skip the selector, ran %d times", got)
	}
}

func TestSelectorContextCancelledOnClose(t *testing.T) {
	store := newTestStore(&state{Count: 1})
	var seen context.Context
	in := New[*state, *selection](store, func(ctx context.Context, s *state) (Result[*selection], error) {
		seen = ctx
		return Now(&selection{Count: s.Count}), nil
	})

	_, _ = in.Get()
	if seen.Err() != nil {
		t.Fatal("selector context should be live before Close")
	}
	in.Close()
	if seen.Err() == nil {
		t.Error("selector context should be cancelled by Close")
	}
}
