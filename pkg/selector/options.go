package selector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vango-dev/selector/pkg/scheduler"
)

// OverlapPolicy decides what happens when asynchronous resolutions settle
// out of the order in which they started.
type OverlapPolicy int

const (
	// OverlapLatestWins discards a settling resolution that started before
	// the currently committed selection was computed.
	OverlapLatestWins OverlapPolicy = iota

	// OverlapSettleOrder commits every resolution in settle order, so an
	// older resolution that settles last overwrites a newer one.
	OverlapSettleOrder
)

// String returns the policy name.
func (p OverlapPolicy) String() string {
	switch p {
	case OverlapLatestWins:
		return "latest-wins"
	case OverlapSettleOrder:
		return "settle-order"
	default:
		return fmt.Sprintf("OverlapPolicy(%d)", int(p))
	}
}

// Option configures an Instance or a Slot.
type Option func(*options)

type options struct {
	// equal, snapshotEqual and rendered hold typed values (Equal[T],
	// Equal[S], *Rendered[T]) checked against the Instance's type
	// parameters in New.
	equal         any
	snapshotEqual any
	rendered      any

	scheduler scheduler.Scheduler
	logger    *slog.Logger
	observer  Observer
	onError   func(error)
	overlap   OverlapPolicy
	ctx       context.Context
}

func defaultOptions() options {
	return options{
		scheduler: scheduler.Inline,
		logger:    slog.Default(),
		observer:  NopObserver{},
		overlap:   OverlapLatestWins,
		ctx:       context.Background(),
	}
}

// WithEqual sets the selection equality. When it reports a fresh selection
// equal to the previous one, the previous value is kept.
func WithEqual[T any](eq func(a, b T) bool) Option {
	return func(o *options) {
		if eq != nil {
			o.equal = Equal[T](eq)
		}
	}
}

// WithSnapshotEqual replaces Identical as the snapshot comparison.
func WithSnapshotEqual[S any](eq func(a, b S) bool) Option {
	return func(o *options) {
		if eq != nil {
			o.snapshotEqual = Equal[S](eq)
		}
	}
}

// WithRendered connects the host's rendered-value record.
func WithRendered[T any](r *Rendered[T]) Option {
	return func(o *options) {
		if r != nil {
			o.rendered = r
		}
	}
}

// WithScheduler sets where asynchronous results are applied.
// Default: scheduler.Inline.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the instrumentation hooks.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithErrorHandler receives failures that have no synchronous caller:
// selector errors raised from a store notification and rejected
// asynchronous resolutions. Default: log at error level.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithOverlapPolicy sets the overlap policy. Default: OverlapLatestWins.
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(o *options) {
		o.overlap = p
	}
}

// WithContext sets the parent of the context handed to selectors.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}
