package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoInvokesComputeOncePerWindow(t *testing.T) {
	t.Parallel()

	c, _, _, _ := testCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "Found 3 sheets: A, B, C", nil
	}

	for i := 0; i < 5; i++ {
		out, err := Do(ctx, c, "list_sheets", nil, nil, compute)
		require.NoError(t, err)
		require.Equal(t, "Found 3 sheets: A, B, C", out)
	}
	require.Equal(t, 1, calls)

	// Varying any argument invokes compute again.
	_, err := Do(ctx, c, "list_sheets", nil, map[string]any{"use_cache": false}, compute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoRecomputesAfterExpiry(t *testing.T) {
	t.Parallel()

	c, _, _, clk := testCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "payload", nil
	}

	_, err := Do(ctx, c, "get_sheet", []any{int64(1)}, nil, compute)
	require.NoError(t, err)

	// Within the L2 window the cache still serves.
	clk.Advance(2 * time.Minute)
	_, err = Do(ctx, c, "get_sheet", []any{int64(1)}, nil, compute)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Past both windows compute runs again.
	clk.Advance(10 * time.Minute)
	_, err = Do(ctx, c, "get_sheet", []any{int64(1)}, nil, compute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoPropagatesErrorsUncached(t *testing.T) {
	t.Parallel()

	c, _, _, _ := testCache(t)
	ctx := context.Background()

	boom := errors.New("upstream unavailable")
	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "", boom
	}

	_, err := Do(ctx, c, "get_sheet", []any{int64(9)}, nil, compute)
	require.ErrorIs(t, err, boom)

	// Failures are never cached: the next call computes again.
	_, err = Do(ctx, c, "get_sheet", []any{int64(9)}, nil, compute)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}

func TestDoShieldsCallerFromUpstreamFailure(t *testing.T) {
	t.Parallel()

	c, _, _, _ := testCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		if calls > 1 {
			return "", errors.New("rate limited")
		}
		return "Found 3 sheets: A, B, C", nil
	}

	first, err := Do(ctx, c, "list_sheets", nil, nil, fetch)
	require.NoError(t, err)
	require.Equal(t, "Found 3 sheets: A, B, C", first)

	// The second call within the window never reaches the broken upstream.
	second, err := Do(ctx, c, "list_sheets", nil, nil, fetch)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	c, _, _, _ := testCache(t)
	ctx := context.Background()

	calls := 0
	wrapped := Wrap(c, "filter_rows", func(_ context.Context, args []any, kwargs map[string]any) (string, error) {
		calls++
		return "Found 2 matching rows", nil
	})

	for i := 0; i < 3; i++ {
		out, err := wrapped(ctx, []any{int64(1)}, map[string]any{"column": "Status", "value": "Active"})
		require.NoError(t, err)
		require.Equal(t, "Found 2 matching rows", out)
	}
	require.Equal(t, 1, calls)

	_, err := wrapped(ctx, []any{int64(1)}, map[string]any{"column": "Status", "value": "Paused"})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoCachesStructuredValues(t *testing.T) {
	t.Parallel()

	c, _, _, _ := testCache(t)
	ctx := context.Background()

	type rowCount struct {
		Column string         `json:"column"`
		Counts map[string]int `json:"counts"`
	}

	calls := 0
	compute := func(context.Context) (rowCount, error) {
		calls++
		return rowCount{Column: "Status", Counts: map[string]int{"Active": 2, "Paused": 1}}, nil
	}

	first, err := Do(ctx, c, "count_rows", []any{int64(1)}, nil, compute)
	require.NoError(t, err)
	second, err := Do(ctx, c, "count_rows", []any{int64(1)}, nil, compute)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}
