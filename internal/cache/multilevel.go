package cache

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrSerializerMissing indicates the serializer dependency is absent.
var ErrSerializerMissing = errors.New("serializer is required")

// MultiLevelCache composes an L1 and L2 tier with read-through lookups,
// write-through stores, and promotion of L2 hits into L1. Either tier may be
// nil, leaving a single-level cache. Tier faults are absorbed: a lookup or
// store never fails for well-formed arguments, the worst outcome is a miss.
type MultiLevelCache struct {
	l1         Tier
	l2         Tier
	serializer Serializer
	logger     *zap.Logger
	metrics    *Metrics
}

// Option customizes a MultiLevelCache.
type Option func(*MultiLevelCache)

// WithLogger attaches a logger for swallowed tier faults.
func WithLogger(logger *zap.Logger) Option {
	return func(c *MultiLevelCache) {
		if logger != nil {
			c.logger = logger.With(zap.String("component", "cache"))
		}
	}
}

// WithMetrics attaches hit/miss instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *MultiLevelCache) { c.metrics = m }
}

// New builds a MultiLevelCache over the given tiers.
func New(l1, l2 Tier, serializer Serializer, opts ...Option) (*MultiLevelCache, error) {
	if serializer == nil {
		return nil, ErrSerializerMissing
	}
	c := &MultiLevelCache{
		l1:         l1,
		l2:         l2,
		serializer: serializer,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup derives the key for one tool invocation and consults L1 then L2.
// An L2 hit is promoted into L1 so subsequent lookups stay in memory. The
// hit payload is unmarshaled into dest.
func (c *MultiLevelCache) Lookup(ctx context.Context, op string, args []any, kwargs map[string]any, dest any) (bool, error) {
	key := DeriveKey(op, args, kwargs)

	if c.l1 != nil {
		data, ok, err := c.l1.Get(ctx, key)
		if err != nil {
			c.logger.Warn("l1 read failed, treating as miss", zap.String("op", op), zap.Error(err))
		} else if ok {
			if err := c.serializer.Unmarshal(data, dest); err != nil {
				c.logger.Warn("undecodable l1 payload, treating as miss", zap.String("op", op), zap.Error(err))
			} else {
				c.metrics.hit("l1")
				c.logger.Debug("cache hit", zap.String("tier", "l1"), zap.String("op", op))
				return true, nil
			}
		}
	}

	if c.l2 == nil {
		c.metrics.miss()
		return false, nil
	}

	data, ok, err := c.l2.Get(ctx, key)
	if err != nil {
		c.logger.Warn("l2 read failed, treating as miss", zap.String("op", op), zap.Error(err))
		c.metrics.miss()
		return false, nil
	}
	if !ok {
		c.metrics.miss()
		c.logger.Debug("cache miss", zap.String("op", op))
		return false, nil
	}

	if err := c.serializer.Unmarshal(data, dest); err != nil {
		c.logger.Warn("undecodable l2 payload, treating as miss", zap.String("op", op), zap.Error(err))
		c.metrics.miss()
		return false, nil
	}

	c.metrics.hit("l2")
	c.logger.Debug("cache hit", zap.String("tier", "l2"), zap.String("op", op))

	if c.l1 != nil {
		// Best-effort promotion; a failure just leaves the next lookup on L2.
		if err := c.l1.Set(ctx, key, data); err != nil {
			c.logger.Warn("l1 promotion failed", zap.String("op", op), zap.Error(err))
		}
	}

	return true, nil
}

// Store serializes value and writes it through to both tiers. The only
// caller-visible failure is a value that cannot be serialized; tier write
// faults are logged and swallowed.
func (c *MultiLevelCache) Store(ctx context.Context, op string, args []any, kwargs map[string]any, value any) error {
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return err
	}

	key := DeriveKey(op, args, kwargs)

	if c.l1 != nil {
		if err := c.l1.Set(ctx, key, data); err != nil {
			c.logger.Warn("l1 write failed", zap.String("op", op), zap.Error(err))
		}
	}
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, data); err != nil {
			c.logger.Warn("l2 write failed", zap.String("op", op), zap.Error(err))
		}
	}

	c.metrics.store()
	return nil
}

// InvalidateAll clears both tiers. Backs the operator-facing refresh
// command.
func (c *MultiLevelCache) InvalidateAll(ctx context.Context) error {
	var firstErr error

	if c.l1 != nil {
		if err := c.l1.Clear(ctx); err != nil {
			firstErr = err
		}
	}
	if c.l2 != nil {
		if err := c.l2.Clear(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	c.logger.Info("cache cleared")
	return firstErr
}

// Statistics reports point-in-time tier counts. Backs the operator-facing
// cache-status command. Tier read failures report as zero rather than
// failing the command.
func (c *MultiLevelCache) Statistics(ctx context.Context) Stats {
	var s Stats

	if c.l1 != nil {
		s.L1Capacity = c.l1.Capacity()
		if n, err := c.l1.Len(ctx); err == nil {
			s.L1Count = n
		} else {
			c.logger.Warn("l1 count failed", zap.Error(err))
		}
	}
	if c.l2 != nil {
		if n, err := c.l2.Len(ctx); err == nil {
			s.L2Count = n
		} else {
			c.logger.Warn("l2 count failed", zap.Error(err))
		}
	}

	return s
}
