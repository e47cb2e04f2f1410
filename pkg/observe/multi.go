package observe

import (
	"context"
	"time"

	"github.com/vango-dev/selector/pkg/selector"
)

// Multi fans every event out to observers in order. Nil observers are
// skipped. OnResolveStart threads the context through each observer, so a
// span started by one is visible to the next.
func Multi(observers ...selector.Observer) selector.Observer {
	list := make([]selector.Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return selector.NopObserver{}
	case 1:
		return list[0]
	}
	return multi(list)
}

type multi []selector.Observer

func (m multi) OnCompute(id string, origin selector.Origin, d time.Duration) {
	for _, o := range m {
		o.OnCompute(id, origin, d)
	}
}

func (m multi) OnReuse(id string, origin selector.Origin) {
	for _, o := range m {
		o.OnReuse(id, origin)
	}
}

func (m multi) OnResolveStart(ctx context.Context, id string, origin selector.Origin) context.Context {
	for _, o := range m {
		ctx = o.OnResolveStart(ctx, id, origin)
	}
	return ctx
}

func (m multi) OnResolveSettle(ctx context.Context, id string, origin selector.Origin, d time.Duration, committed bool, err error) {
	for _, o := range m {
		o.OnResolveSettle(ctx, id, origin, d, committed, err)
	}
}

func (m multi) OnStale(id string, origin selector.Origin) {
	for _, o := range m {
		o.OnStale(id, origin)
	}
}

func (m multi) OnNotify(id string, subscribers int) {
	for _, o := range m {
		o.OnNotify(id, subscribers)
	}
}
