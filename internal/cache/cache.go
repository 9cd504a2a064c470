// Package cache implements the two-tier function-result cache used by the
// agent's read-only query tools: a bounded in-memory L1 tier in front of a
// durable L2 tier, with write-through stores and promotion on L2 hits.
//
// Cached payloads are formatted text (or any JSON-serializable value); a
// false hit only ever returns a slightly stale formatted result, so tier
// faults are absorbed rather than surfaced to callers.
package cache

import (
	"context"
	"time"
)

// Tier is a single cache level storing raw serialized payloads. Each tier
// owns its TTL; entries are stamped at Set time and lazily expired on Get.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	// Capacity reports the tier's entry bound, or 0 when unbounded.
	Capacity() int
}

// Stats is a point-in-time view of tier sizes. The two tiers are read at
// slightly different instants, so the counts are not mutually consistent.
type Stats struct {
	L1Count    int `json:"l1_count"`
	L1Capacity int `json:"l1_capacity"`
	L2Count    int `json:"l2_count"`
}

// Defaults match the agent's environment configuration.
const (
	DefaultL1TTL        = 60 * time.Second
	DefaultL2TTL        = 5 * time.Minute
	DefaultL1MaxEntries = 100
)
