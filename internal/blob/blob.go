// Package blob provides the durable key-value stores backing the cache's L2
// tier: a local filesystem store (one file per key) and a Redis store. Both
// report missing keys as a not-found result rather than an error and
// tolerate concurrent writers to different keys.
package blob

import "context"

// Store is a durable mapping from cache key to raw record bytes.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}
