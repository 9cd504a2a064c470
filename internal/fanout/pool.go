// Package fanout runs batches of independent blocking calls (typically
// cache-wrapped fetches against the remote grid API) on a bounded worker
// pool. Failures are captured per call and never cancel sibling calls.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers matches the agent's fixed-size executor.
const DefaultWorkers = 4

// Call is one unit of work. Calls must honor ctx cancellation: the batch
// timeout is delivered through the context.
type Call func(ctx context.Context) (any, error)

// Result carries one call's outcome. Exactly one of Value and Err is
// meaningful.
type Result struct {
	Value any
	Err   error
}

// Pool bounds how many calls run concurrently across all batches.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a Pool with the given worker bound and per-batch wall-clock
// timeout. Non-positive arguments fall back to 4 workers and 30 seconds.
func New(workers int, timeout time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
		logger:  logger.With(zap.String("component", "fanout")),
	}
}

// Run executes every call with bounded parallelism and returns results in
// call order. The batch shares one timeout; a call that cannot start (or
// finish) before it elapses reports the context error as its result. A
// panicking call is captured as that call's error.
func (p *Pool) Run(ctx context.Context, calls []Call) []Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]Result, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()

			if err := p.sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{Err: err}
				return
			}
			defer p.sem.Release(1)

			value, err := runCall(ctx, call)
			results[i] = Result{Value: value, Err: err}
		}(i, call)
	}

	wg.Wait()

	for i := range results {
		if results[i].Err != nil {
			p.logger.Debug("fanout call failed", zap.Int("index", i), zap.Error(results[i].Err))
		}
	}
	return results
}

func runCall(ctx context.Context, call Call) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("call panicked: %v", r)
		}
	}()
	return call(ctx)
}
