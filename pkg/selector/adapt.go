package selector

import (
	"context"
	"fmt"

	"github.com/vango-dev/selector/pkg/future"
)

// Adapt builds a Selector from a function whose result shape is only known
// at run time. The result is classified once, here:
//
//   - a T is an immediate selection
//   - a *future.Future[T] or any future.Awaitable[T] is pending
//   - an error is returned as the selector's error
//   - nil is the zero selection
//
// Anything else fails with ErrResultType.
func Adapt[S, T any](fn func(ctx context.Context, snap S) any) Selector[S, T] {
	return func(ctx context.Context, snap S) (Result[T], error) {
		return classify[T](ctx, fn(ctx, snap))
	}
}

func classify[T any](ctx context.Context, out any) (Result[T], error) {
	switch v := out.(type) {
	case nil:
		var zero T
		return Now(zero), nil
	case T:
		return Now(v), nil
	case *future.Future[T]:
		return Later(v), nil
	case future.Awaitable[T]:
		return Later(future.From[T](ctx, v)), nil
	case error:
		return Result[T]{}, v
	default:
		return Result[T]{}, fmt.Errorf("%w: %T", ErrResultType, out)
	}
}
