package selector

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testStore is a minimal external store for exercising instances.
type testStore[S any] struct {
	mu           sync.Mutex
	snap         S
	server       *S
	listeners    map[int]func()
	nextID       int
	subscribes   int
	unsubscribes int
}

func newTestStore[S any](initial S) *testStore[S] {
	return &testStore[S]{snap: initial, listeners: make(map[int]func())}
}

func (s *testStore[S]) Subscribe(onStoreChange func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = onStoreChange
	s.subscribes++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			s.unsubscribes++
		}
	}
}

func (s *testStore[S]) Snapshot() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Set replaces the snapshot and notifies listeners synchronously.
func (s *testStore[S]) Set(v S) {
	s.mu.Lock()
	s.snap = v
	listeners := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

func (s *testStore[S]) counts() (subscribes, unsubscribes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes, s.unsubscribes
}

// serverStore adds a server snapshot to testStore.
type serverStore[S any] struct {
	*testStore[S]
}

func (s serverStore[S]) ServerSnapshot() (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		var zero S
		return zero, false
	}
	return *s.server, true
}

type state struct {
	Count int
	Name  string
}

type selection struct {
	Count int
}

// recordingObserver counts events and signals every settlement.
type recordingObserver struct {
	NopObserver

	mu       sync.Mutex
	computes int
	reuses   int
	starts   int
	stale    int
	notifies int
	settled  chan bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{settled: make(chan bool, 16)}
}

func (o *recordingObserver) OnCompute(string, Origin, time.Duration) {
	o.mu.Lock()
	o.computes++
	o.mu.Unlock()
}

func (o *recordingObserver) OnReuse(string, Origin) {
	o.mu.Lock()
	o.reuses++
	o.mu.Unlock()
}

func (o *recordingObserver) OnResolveStart(ctx context.Context, _ string, _ Origin) context.Context {
	o.mu.Lock()
	o.starts++
	o.mu.Unlock()
	return ctx
}

func (o *recordingObserver) OnResolveSettle(_ context.Context, _ string, _ Origin, _ time.Duration, committed bool, _ error) {
	o.settled <- committed
}

func (o *recordingObserver) OnStale(string, Origin) {
	o.mu.Lock()
	o.stale++
	o.mu.Unlock()
}

func (o *recordingObserver) OnNotify(string, int) {
	o.mu.Lock()
	o.notifies++
	o.mu.Unlock()
}

func (o *recordingObserver) snapshot() (computes, reuses, starts, stale, notifies int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.computes, o.reuses, o.starts, o.stale, o.notifies
}

func waitSettled(t *testing.T, o *recordingObserver) bool {
	t.Helper()
	select {
	case committed := <-o.settled:
		return committed
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolution to settle")
		return false
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func expectNoSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected extra notification")
	case <-time.After(50 * time.Millisecond):
	}
}
