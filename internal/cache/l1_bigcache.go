package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BigCacheTier is an alternative L1 tier backed by
// github.com/allegro/bigcache, for deployments that prefer a memory-size
// bound over an entry-count bound. Eviction follows bigcache's own
// oldest-first policy; Capacity reports 0 since there is no entry bound.
// Entry freshness is tracked by an expiry header prepended to each payload,
// checked against the tier TTL on read.
type BigCacheTier struct {
	cache *bigcache.BigCache
	ttl   time.Duration
	now   func() time.Time
}

// BigCacheTierConfig allows customizing the underlying cache.
type BigCacheTierConfig struct {
	TTL    time.Duration
	Config bigcache.Config
}

// NewBigCacheTier constructs a BigCacheTier.
func NewBigCacheTier(cfg BigCacheTierConfig) (*BigCacheTier, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultL1TTL
	}

	config := cfg.Config
	if config.LifeWindow == 0 {
		config = bigcache.DefaultConfig(ttl)
		config.CleanWindow = time.Minute
	}

	bc, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &BigCacheTier{cache: bc, ttl: ttl, now: time.Now}, nil
}

// Close shuts down the underlying cache.
func (b *BigCacheTier) Close() error {
	if b == nil || b.cache == nil {
		return nil
	}
	return b.cache.Close()
}

// Get returns the payload if present and not expired. Stale or malformed
// records are deleted and reported as misses.
func (b *BigCacheTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	if b == nil || b.cache == nil {
		return nil, false, errors.New("bigcache tier not initialized")
	}

	data, err := b.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	payload, ok := b.decodeEntry(data)
	if !ok {
		_ = b.cache.Delete(key)
		return nil, false, nil
	}

	return payload, true, nil
}

// Set stores the payload stamped with the tier TTL.
func (b *BigCacheTier) Set(_ context.Context, key string, value []byte) error {
	if b == nil || b.cache == nil {
		return errors.New("bigcache tier not initialized")
	}
	return b.cache.Set(key, b.encodeEntry(value))
}

// Clear drops every entry.
func (b *BigCacheTier) Clear(_ context.Context) error {
	if b == nil || b.cache == nil {
		return errors.New("bigcache tier not initialized")
	}
	return b.cache.Reset()
}

// Len reports the raw entry count.
func (b *BigCacheTier) Len(_ context.Context) (int, error) {
	if b == nil || b.cache == nil {
		return 0, errors.New("bigcache tier not initialized")
	}
	return b.cache.Len(), nil
}

// Capacity reports 0: bigcache bounds memory, not entries.
func (b *BigCacheTier) Capacity() int {
	return 0
}

func (b *BigCacheTier) encodeEntry(payload []byte) []byte {
	expiry := b.now().Add(b.ttl).UnixNano()
	out := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(out[:8], uint64(expiry))
	copy(out[8:], payload)
	return out
}

func (b *BigCacheTier) decodeEntry(raw []byte) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	expiry := int64(binary.LittleEndian.Uint64(raw[:8]))
	if expiry > 0 && b.now().UnixNano() > expiry {
		return nil, false
	}
	cp := make([]byte, len(raw)-8)
	copy(cp, raw[8:])
	return cp, true
}
