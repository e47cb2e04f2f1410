package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 5 * time.Second

// ErrAlreadyRunning is returned by Run when the poller is already running.
var ErrAlreadyRunning = errors.New("source: poller already running")

// Fetcher loads a snapshot from a backend together with a fingerprint that
// changes whenever the data does.
type Fetcher[S any] interface {
	Fetch(ctx context.Context) (snap S, fingerprint string, err error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc[S any] func(ctx context.Context) (S, string, error)

// Fetch calls f.
func (f FetchFunc[S]) Fetch(ctx context.Context) (S, string, error) {
	return f(ctx)
}

// PollerOption configures a Poller.
type PollerOption func(*pollerConfig)

type pollerConfig struct {
	interval time.Duration
	logger   *slog.Logger
	onError  func(error)
}

// WithInterval sets how often Run fetches.
func WithInterval(d time.Duration) PollerOption {
	return func(c *pollerConfig) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the poller's logger.
func WithLogger(logger *slog.Logger) PollerOption {
	return func(c *pollerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorHandler receives fetch errors from Run. The default logs them at
// Warn and keeps the last good snapshot.
func WithErrorHandler(fn func(error)) PollerOption {
	return func(c *pollerConfig) {
		c.onError = fn
	}
}

// Poller is a store backed by a Fetcher.
//
// The snapshot is replaced only when the fingerprint changes. The first
// successful fetch is also kept as the server snapshot.
type Poller[S any] struct {
	fetcher  Fetcher[S]
	value    *Value[S]
	interval time.Duration
	logger   *slog.Logger
	onError  func(error)

	// refreshMu serializes fetches so fingerprints are applied in order.
	refreshMu   sync.Mutex
	fingerprint string
	loaded      bool

	running atomic.Bool
	fetches atomic.Int64
	changes atomic.Int64
}

// NewPoller creates a poller. It holds the zero snapshot until the first
// Refresh.
func NewPoller[S any](fetcher Fetcher[S], opts ...PollerOption) *Poller[S] {
	if fetcher == nil {
		panic("source: NewPoller called with nil Fetcher")
	}
	config := pollerConfig{
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var zero S
	return &Poller[S]{
		fetcher:  fetcher,
		value:    NewValue(zero),
		interval: config.interval,
		logger:   config.logger,
		onError:  config.onError,
	}
}

// Subscribe implements selector.Source.
func (p *Poller[S]) Subscribe(onStoreChange func()) func() {
	return p.value.Subscribe(onStoreChange)
}

// Snapshot implements selector.Source.
func (p *Poller[S]) Snapshot() S {
	return p.value.Snapshot()
}

// ServerSnapshot implements selector.ServerSource. It reports the snapshot
// from the first successful fetch.
func (p *Poller[S]) ServerSnapshot() (S, bool) {
	return p.value.ServerSnapshot()
}

// Refresh fetches once and publishes the result if the fingerprint changed.
// On error the current snapshot is kept.
func (p *Poller[S]) Refresh(ctx context.Context) (changed bool, err error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	snap, fp, err := p.fetcher.Fetch(ctx)
	p.fetches.Add(1)
	if err != nil {
		return false, fmt.Errorf("source: fetch: %w", err)
	}
	if p.loaded && fp == p.fingerprint {
		return false, nil
	}

	first := !p.loaded
	p.fingerprint = fp
	p.loaded = true
	p.changes.Add(1)

	if first {
		p.value.SetServerSnapshot(snap)
	}
	p.logger.Debug("snapshot changed", "fingerprint", fp)
	p.value.Set(snap)
	return true, nil
}

// Run refreshes immediately and then on every interval until ctx is done.
// Fetch errors go to the error handler and do not stop the loop.
func (p *Poller[S]) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.handleError(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Fingerprint returns the fingerprint of the published snapshot.
func (p *Poller[S]) Fingerprint() string {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	return p.fingerprint
}

// Fetches returns how many fetches were attempted.
func (p *Poller[S]) Fetches() int64 {
	return p.fetches.Load()
}

// Changes returns how many snapshots were published.
func (p *Poller[S]) Changes() int64 {
	return p.changes.Load()
}

func (p *Poller[S]) handleError(err error) {
	if p.onError != nil {
		p.onError(err)
		return
	}
	p.logger.Warn("poll failed", "error", err)
}
