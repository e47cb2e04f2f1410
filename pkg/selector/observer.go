package selector

import (
	"context"
	"time"
)

// Origin identifies the path that triggered a computation.
type Origin int

const (
	// OriginGetter is a pull through Instance.Get.
	OriginGetter Origin = iota
	// OriginStore is a store change notification.
	OriginStore
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginGetter:
		return "getter"
	case OriginStore:
		return "store"
	default:
		return "unknown"
	}
}

// Observer receives instrumentation events from an Instance.
// Methods are called outside instance locks and must not block.
type Observer interface {
	// OnCompute is called after the selector produced an immediate value.
	OnCompute(id string, origin Origin, d time.Duration)

	// OnReuse is called when the snapshot was identical and the memoized
	// selection was returned without calling the selector.
	OnReuse(id string, origin Origin)

	// OnResolveStart is called when an asynchronous resolution begins.
	// The returned context is passed to OnResolveSettle.
	OnResolveStart(ctx context.Context, id string, origin Origin) context.Context

	// OnResolveSettle is called when a resolution settles. committed is
	// false for rejected, stale or post-close settlements.
	OnResolveSettle(ctx context.Context, id string, origin Origin, d time.Duration, committed bool, err error)

	// OnStale is called when a settlement is discarded by OverlapLatestWins.
	OnStale(id string, origin Origin)

	// OnNotify is called after subscribers were notified.
	OnNotify(id string, subscribers int)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnCompute(string, Origin, time.Duration) {}
func (NopObserver) OnReuse(string, Origin)                  {}
func (NopObserver) OnResolveStart(ctx context.Context, _ string, _ Origin) context.Context {
	return ctx
}
func (NopObserver) OnResolveSettle(context.Context, string, Origin, time.Duration, bool, error) {}
func (NopObserver) OnStale(string, Origin)                                                      {}
func (NopObserver) OnNotify(string, int)                                                        {}
