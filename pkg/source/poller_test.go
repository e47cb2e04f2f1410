package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/selector/pkg/selector"
)

type doc struct {
	Items []string `json:"items"`
}

func decodeDoc(data []byte) (*doc, error) {
	var d doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// scriptedFetcher returns canned results in order, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	snap *doc
	fp   string
	err  error
}

func (f *scriptedFetcher) Fetch(context.Context) (*doc, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r.snap, r.fp, r.err
}

func TestPollerPublishesOnlyOnFingerprintChange(t *testing.T) {
	a := &doc{Items: []string{"a"}}
	aAgain := &doc{Items: []string{"a"}}
	b := &doc{Items: []string{"b"}}
	f := &scriptedFetcher{results: []fetchResult{
		{snap: a, fp: "1"},
		{snap: aAgain, fp: "1"},
		{snap: b, fp: "2"},
	}}
	p := NewPoller[*doc](f)

	notified := 0
	u := p.Subscribe(func() { notified++ })
	defer u()

	ctx := context.Background()
	for i, want := range []bool{true, false, true} {
		changed, err := p.Refresh(ctx)
		if err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
		if changed != want {
			t.Errorf("refresh %d: expected changed=%v", i, want)
		}
		if i == 1 && p.Snapshot() != a {
			t.Error("unchanged fingerprint must keep the snapshot identity")
		}
	}

	if p.Snapshot() != b {
		t.Error("expected the latest snapshot")
	}
	if notified != 2 {
		t.Errorf("expected 2 notifications, got %d", notified)
	}
	if p.Fetches() != 3 || p.Changes() != 2 {
		t.Errorf("expected 3 fetches and 2 changes, got %d and %d", p.Fetches(), p.Changes())
	}
	if p.Fingerprint() != "2" {
		t.Errorf("expected fingerprint 2, got %q", p.Fingerprint())
	}
	if s, ok := p.ServerSnapshot(); !ok || s != a {
		t.Error("server snapshot should be the first fetched snapshot")
	}
}

func TestPollerKeepsSnapshotOnError(t *testing.T) {
	a := &doc{Items: []string{"a"}}
	wantErr := errors.New("backend down")
	f := &scriptedFetcher{results: []fetchResult{
		{snap: a, fp: "1"},
		{err: wantErr},
	}}
	p := NewPoller[*doc](f)
	ctx := context.Background()

	if _, err := p.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Refresh(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if p.Snapshot() != a {
		t.Error("failed fetch must keep the last good snapshot")
	}
}

func TestPollerRunReportsErrorsAndStops(t *testing.T) {
	wantErr := errors.New("flaky")
	f := &scriptedFetcher{results: []fetchResult{{err: wantErr}}}

	errs := make(chan error, 8)
	p := NewPoller[*doc](f,
		WithInterval(5*time.Millisecond),
		WithErrorHandler(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-errs:
		if !errors.Is(err, wantErr) {
			t.Errorf("expected %v, got %v", wantErr, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch error")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPollerRunTwice(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{snap: &doc{}, fp: "1"}}}
	p := NewPoller[*doc](f, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for p.Fetches() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := p.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"items":["x"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPoller(File(path, decodeDoc))
	ctx := context.Background()

	if changed, err := p.Refresh(ctx); err != nil || !changed {
		t.Fatalf("first refresh: changed=%v err=%v", changed, err)
	}
	first := p.Snapshot()

	// Rewrite identical content.
	if err := os.WriteFile(path, []byte(`{"items":["x"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if changed, _ := p.Refresh(ctx); changed {
		t.Error("identical content must not publish")
	}
	if p.Snapshot() != first {
		t.Error("identical content must keep the snapshot identity")
	}

	if err := os.WriteFile(path, []byte(`{"items":["x","y"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if changed, _ := p.Refresh(ctx); !changed {
		t.Error("new content must publish")
	}
	if got := p.Snapshot().Items; len(got) != 2 {
		t.Errorf("expected 2 items, got %v", got)
	}
}

func TestFileFetcherDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := File(path, decodeDoc).Fetch(context.Background()); err == nil {
		t.Error("expected a decode error")
	}
}

// A selection over a poller is recomputed only when the backend data
// actually changes.
func TestPollerKeepsMemoAcrossUnchangedPolls(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{
		{snap: &doc{Items: []string{"a"}}, fp: "1"},
		{snap: &doc{Items: []string{"a"}}, fp: "1"},
		{snap: &doc{Items: []string{"a", "b"}}, fp: "2"},
	}}
	p := NewPoller[*doc](f)
	ctx := context.Background()
	if _, err := p.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	runs := 0
	in := selector.New[*doc, int](p, selector.Sync(func(d *doc) int {
		runs++
		return len(d.Items)
	}))
	defer in.Close()

	notified := 0
	u := in.Subscribe(func() { notified++ })
	defer u()

	if n, _ := in.Get(); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	p.Refresh(ctx)
	in.Get()
	if runs != 1 || notified != 0 {
		t.Errorf("unchanged poll: runs=%d notified=%d", runs, notified)
	}

	p.Refresh(ctx)
	if n, _ := in.Get(); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	if runs != 2 || notified != 1 {
		t.Errorf("changed poll: runs=%d notified=%d", runs, notified)
	}
}
