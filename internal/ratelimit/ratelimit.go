package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate spaces calls so that consecutive Wait returns are at least the
// configured delay apart. Callers wait, they never get refused.
type Gate struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	minDelay time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customises a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock and the sleeper, used with a fake clock in tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gate) {
		g.now = now
		g.sleep = sleep
	}
}

// NewGate returns a gate allowing one call per minDelay, burst 1.
// A non-positive delay disables spacing.
func NewGate(minDelay time.Duration, opts ...Option) *Gate {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	g := &Gate{
		limiter:  rate.NewLimiter(limit, 1),
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wait blocks until the next call is allowed. The slot is reserved before
// sleeping, so concurrent callers queue in order.
func (g *Gate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	now := g.now()
	r := g.limiter.ReserveN(now, 1)
	if !r.OK() {
		g.mu.Unlock()
		return context.Canceled
	}
	delay := r.DelayFrom(now)
	// rate.Limiter accounts in float seconds; the floor keeps spacing exact.
	if !g.last.IsZero() && g.minDelay > 0 {
		if floor := g.last.Add(g.minDelay).Sub(now); delay < floor {
			delay = floor
		}
	}
	g.last = now.Add(delay)
	g.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	if err := g.sleep(ctx, delay); err != nil {
		r.CancelAt(g.now())
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
