package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultObjectTTL spans one multi-step user request, not across requests.
const DefaultObjectTTL = 2 * time.Minute

// ObjectCache keeps fetched resource objects keyed directly by resource id,
// in a namespace separate from the function-result cache. The analysis
// workflow runs several operations against the same large fetched resource
// within one user turn and needs the object itself reused verbatim, not a
// re-derivable formatted string.
type ObjectCache[T any] struct {
	mu      sync.Mutex
	entries map[int64]objectEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

type objectEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

// NewObjectCache builds an ObjectCache. A non-positive ttl falls back to
// DefaultObjectTTL.
func NewObjectCache[T any](ttl time.Duration) *ObjectCache[T] {
	if ttl <= 0 {
		ttl = DefaultObjectTTL
	}
	return &ObjectCache[T]{
		entries: make(map[int64]objectEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrFetch returns the cached object for id when fresh, otherwise calls
// fetch and caches the result. Fetch errors propagate uncached. Every fetch
// also prunes whatever other entries have expired, bounding growth without a
// background task. The lock is not held across fetch, so concurrent cold
// callers may fetch the same id twice.
func (c *ObjectCache[T]) GetOrFetch(ctx context.Context, id int64, fetch func(context.Context, int64) (T, error)) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	value, err := fetch(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[id] = objectEntry[T]{value: value, fetchedAt: now}
	for other, e := range c.entries {
		if other != id && now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, other)
		}
	}

	return value, nil
}

// Len reports the current entry count, expired entries included.
func (c *ObjectCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
