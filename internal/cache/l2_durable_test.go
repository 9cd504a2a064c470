package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridagent/gridagent/internal/blob"
)

// memoryBlobStore is an in-memory blob.Store for exercising the durable tier
// without disk I/O.
type memoryBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{data: make(map[string][]byte)}
}

func (s *memoryBlobStore) Write(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[key] = cp
	return nil
}

func (s *memoryBlobStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (s *memoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memoryBlobStore) ListKeys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// failingBlobStore simulates an unavailable durable store.
type failingBlobStore struct{}

func (failingBlobStore) Write(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func (failingBlobStore) Read(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store offline")
}

func (failingBlobStore) Delete(context.Context, string) error {
	return errors.New("store offline")
}

func (failingBlobStore) ListKeys(context.Context) ([]string, error) {
	return nil, errors.New("store offline")
}

var _ blob.Store = (*memoryBlobStore)(nil)
var _ blob.Store = failingBlobStore{}

func TestDurableTierRoundTrip(t *testing.T) {
	t.Parallel()

	tier := NewDurableTier(newMemoryBlobStore(), time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "key", []byte("payload")))

	data, ok, err := tier.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), data)

	_, ok, err = tier.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDurableTierExpiryDeletesRecord(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	store := newMemoryBlobStore()
	tier := NewDurableTier(store, time.Minute, nil)
	tier.now = clk.Now
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "key", []byte("payload")))
	clk.Advance(61 * time.Second)

	_, ok, err := tier.Get(ctx, "key")
	require.NoError(t, err)
	require.False(t, ok)

	// The stale record was deleted as a side effect of the read.
	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestDurableTierCorruptRecordDeleted(t *testing.T) {
	t.Parallel()

	store := newMemoryBlobStore()
	tier := NewDurableTier(store, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "key", []byte("{not valid json")))

	_, ok, err := tier.Get(ctx, "key")
	require.NoError(t, err)
	require.False(t, ok)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestDurableTierWriteFailureSwallowed(t *testing.T) {
	t.Parallel()

	tier := NewDurableTier(failingBlobStore{}, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "key", []byte("payload")))

	// Reads against the broken store degrade to misses.
	_, ok, err := tier.Get(ctx, "key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDurableTierLenAndClear(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	tier := NewDurableTier(newMemoryBlobStore(), time.Minute, nil)
	tier.now = clk.Now
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "a", []byte("1")))
	require.NoError(t, tier.Set(ctx, "b", []byte("2")))

	// Len reports raw record counts without filtering by TTL.
	clk.Advance(2 * time.Minute)
	n, err := tier.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, tier.Clear(ctx))
	n, err = tier.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
