package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// Retries is the number of attempts after the first one.
	Retries uint64
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Navigation is the policy around page loads. The site is slow far more
// often than it is down, so waits grow quickly.
func Navigation(retries uint64) Policy {
	return Policy{
		Retries: retries,
		Initial: time.Second,
		Max:     8 * time.Second,
		Factor:  2,
	}
}

// Lookup is the policy for third-party search APIs.
func Lookup() Policy {
	return Policy{
		Retries: 2,
		Initial: 500 * time.Millisecond,
		Max:     5 * time.Second,
		Factor:  1.5,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Initial
	bo.MaxInterval = p.Max
	bo.Multiplier = p.Factor
	bo.MaxElapsedTime = 0
	bo.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(bo, p.Retries), ctx)
}

// Permanent marks err as not worth retrying; Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, fails permanently, exhausts p or ctx ends.
func Do(ctx context.Context, log logger.Logger, name string, p Policy, op func() error) error {
	attempt := 1
	notify := func(err error, wait time.Duration) {
		log.Warn("Attempt failed, retrying",
			"operation", name,
			"attempt", attempt,
			"of", p.Retries+1,
			"error", err,
			"next_attempt_in", wait.Round(time.Millisecond).String(),
		)
		attempt++
	}
	return backoff.RetryNotify(op, p.backOff(ctx), notify)
}
