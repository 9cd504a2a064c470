package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryTier is the default L1 tier: a bounded in-process map guarded by a
// single coarse lock. Inserting a new key at capacity evicts the entry with
// the oldest write timestamp (write recency, not read recency). Expired
// entries are removed lazily when a Get observes them; there is no
// background sweep.
type MemoryTier struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// NewMemoryTier builds a MemoryTier. A non-positive ttl or maxEntries falls
// back to the package defaults.
func NewMemoryTier(ttl time.Duration, maxEntries int) *MemoryTier {
	if ttl <= 0 {
		ttl = DefaultL1TTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultL1MaxEntries
	}
	return &MemoryTier{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the payload for key if present and fresh. An expired entry is
// deleted and reported as a miss.
func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().Sub(e.storedAt) >= m.ttl {
		delete(m.entries, key)
		return nil, false, nil
	}

	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, true, nil
}

// Set inserts or overwrites key with the current timestamp, evicting the
// oldest-written entry first when a new key would exceed capacity.
func (m *MemoryTier) Set(_ context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}

	m.entries[key] = memoryEntry{data: cp, storedAt: m.now()}
	return nil
}

// evictOldestLocked removes the entry with the minimum write timestamp.
// Callers must hold m.mu.
func (m *MemoryTier) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range m.entries {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if found {
		delete(m.entries, oldestKey)
	}
}

// Clear empties the tier.
func (m *MemoryTier) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}

// Len reports the raw entry count, including entries whose TTL has elapsed
// but which no Get has swept yet.
func (m *MemoryTier) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

// Capacity reports the configured entry bound.
func (m *MemoryTier) Capacity() int {
	return m.maxEntries
}
