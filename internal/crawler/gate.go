package crawler

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gate bounds the number of fetches in flight. One Gate is shared by every
// seed traversal of a run, so the limit is global rather than per seed.
//
// An optional requests-per-second limit spaces fetches out on top of the
// concurrency limit.
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	limit   int
}

// NewGate creates a gate admitting at most limit concurrent fetches.
// A limit below 1 is treated as 1. requestsPerSecond <= 0 disables rate
// limiting.
func NewGate(limit int, requestsPerSecond float64) *Gate {
	if limit < 1 {
		limit = 1
	}

	g := &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
	if requestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return g
}

// Limit returns the maximum number of concurrent fetches.
func (g *Gate) Limit() int {
	return g.limit
}

// Do runs fn while holding one slot of the gate. It blocks until a slot is
// free (and the rate limiter allows another request) or ctx is done, in which
// case fn is not called and ctx's error is returned.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	return fn(ctx)
}
