package cache

import (
	"context"

	"go.uber.org/zap"
)

// Do is the primary entry point for the agent's read-only query tools: look
// the call up in the cache and only invoke compute on a miss. Errors from
// compute propagate unchanged and are never cached; only successful results
// are written through. Within one TTL window compute runs at most once per
// argument set, though concurrent first callers racing on a cold cache may
// each invoke it (no single-flight suppression).
func Do[T any](ctx context.Context, c *MultiLevelCache, op string, args []any, kwargs map[string]any, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := c.Lookup(ctx, op, args, kwargs, &cached); err == nil && hit {
		return cached, nil
	}

	result, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.Store(ctx, op, args, kwargs, result); err != nil {
		// The caller still gets its computed value; the next call recomputes.
		c.logger.Warn("failed caching result", zap.String("op", op), zap.Error(err))
	}

	return result, nil
}

// ComputeFunc is a cacheable operation taking the same argument shape the
// key is derived from.
type ComputeFunc[T any] func(ctx context.Context, args []any, kwargs map[string]any) (T, error)

// Wrap returns a callable that transparently cache-checks and
// cache-populates every invocation of fn under the given operation name.
func Wrap[T any](c *MultiLevelCache, op string, fn ComputeFunc[T]) ComputeFunc[T] {
	return func(ctx context.Context, args []any, kwargs map[string]any) (T, error) {
		return Do(ctx, c, op, args, kwargs, func(ctx context.Context) (T, error) {
			return fn(ctx, args, kwargs)
		})
	}
}
