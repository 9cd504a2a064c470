package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountHitsAndMisses(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	l1 := NewMemoryTier(time.Minute, 100)
	l2 := NewDurableTier(newMemoryBlobStore(), 5*time.Minute, nil)

	c, err := New(l1, l2, JSONSerializer{}, WithMetrics(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	var out string
	hit, err := c.Lookup(ctx, "list_sheets", nil, nil, &out)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Store(ctx, "list_sheets", nil, nil, "Found 2 sheets"))

	hit, err = c.Lookup(ctx, "list_sheets", nil, nil, &out)
	require.NoError(t, err)
	require.True(t, hit)

	require.NoError(t, l1.Clear(ctx))
	hit, err = c.Lookup(ctx, "list_sheets", nil, nil, &out)
	require.NoError(t, err)
	require.True(t, hit)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.hits.WithLabelValues("l1")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.hits.WithLabelValues("l2")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.misses))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.stores))
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	c, err := New(NewMemoryTier(time.Minute, 10), nil, JSONSerializer{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, "a", nil, nil, "1"))

	var out string
	_, err = c.Lookup(ctx, "a", nil, nil, &out)
	require.NoError(t, err)
}
