// Package future provides a single-assignment deferred value.
//
// A Future is settled exactly once, either with a value or with an error.
// Any number of goroutines may wait for it:
//
//	f := future.Go(ctx, func(ctx context.Context) (int, error) {
//	    return api.Count(ctx)
//	})
//	n, err := f.Await(ctx)
//
// Deferred exposes the settle side for callers that produce the value
// themselves, which is the common shape in tests:
//
//	d := future.NewDeferred[string]()
//	go func() { d.Resolve("ready") }()
//	v, _ := d.Future().Await(context.Background())
package future
