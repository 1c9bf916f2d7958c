package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group coalesces concurrent calls for the same key into a single execution
// of the supplied function. The execution is detached from the caller's
// context: a caller that gives up waiting does not cancel the work, and the
// remaining waiters still receive its result. This keeps one slow client
// from poisoning a refresh that several clients are waiting on.
type Group[V any] struct {
	flight singleflight.Group
}

// Do returns the value for key, invoking fn at most once per key across
// concurrent callers. fn receives a context that survives cancellation of
// ctx. If ctx is done before the shared execution completes, Do returns
// ctx.Err() and the execution continues for the other waiters.
func (g *Group[V]) Do(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Forget drops the in-flight record for key so that the next Do call
// executes fn again instead of joining an earlier execution.
func (g *Group[V]) Forget(key string) {
	g.flight.Forget(key)
}
