package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/gridagent/gridagent/internal/blob"
)

// durableRecord is the encoded form of one L2 entry. The format only needs
// to round-trip within a process generation: undecodable records from older
// builds are treated as corruption and deleted.
type durableRecord struct {
	Payload  []byte `json:"payload"`
	StoredAt int64  `json:"stored_at_unix_nano"`
}

// DurableTier is the L2 tier: TTL bookkeeping layered over a blob.Store.
// It is strictly best-effort — write failures are logged and swallowed, and
// read-side faults (store errors, corrupt records) degrade to misses, so a
// broken durable store costs latency, never correctness.
type DurableTier struct {
	store  blob.Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewDurableTier builds a DurableTier over store. A non-positive ttl falls
// back to the package default; a nil logger is replaced with a no-op.
func NewDurableTier(store blob.Store, ttl time.Duration, logger *zap.Logger) *DurableTier {
	if ttl <= 0 {
		ttl = DefaultL2TTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DurableTier{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(zap.String("component", "cache_l2")),
	}
}

// Get returns the payload for key if a fresh record exists. Expired records
// are deleted as a side effect; corrupt records are deleted so they do not
// recur on every lookup.
func (d *DurableTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := d.store.Read(ctx, key)
	if err != nil {
		d.logger.Warn("durable read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}

	var rec durableRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		d.logger.Warn("corrupt durable record, deleting", zap.String("key", key), zap.Error(err))
		if derr := d.store.Delete(ctx, key); derr != nil {
			d.logger.Debug("failed deleting corrupt record", zap.String("key", key), zap.Error(derr))
		}
		return nil, false, nil
	}

	if d.now().Sub(time.Unix(0, rec.StoredAt)) >= d.ttl {
		if derr := d.store.Delete(ctx, key); derr != nil {
			d.logger.Debug("failed deleting expired record", zap.String("key", key), zap.Error(derr))
		}
		return nil, false, nil
	}

	return rec.Payload, true, nil
}

// Set writes the payload stamped with the current time. Failures are
// swallowed: the caller already has its computed value and L1 still serves
// it for the remainder of its window.
func (d *DurableTier) Set(ctx context.Context, key string, value []byte) error {
	data, err := json.Marshal(durableRecord{Payload: value, StoredAt: d.now().UnixNano()})
	if err != nil {
		d.logger.Warn("failed encoding durable record", zap.String("key", key), zap.Error(err))
		return nil
	}
	if err := d.store.Write(ctx, key, data); err != nil {
		d.logger.Warn("durable write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Clear deletes every record the store manages.
func (d *DurableTier) Clear(ctx context.Context) error {
	keys, err := d.store.ListKeys(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, key := range keys {
		if err := d.store.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports the raw record count without filtering by TTL.
func (d *DurableTier) Len(ctx context.Context) (int, error) {
	keys, err := d.store.ListKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Capacity reports 0: the durable tier is unbounded.
func (d *DurableTier) Capacity() int {
	return 0
}
