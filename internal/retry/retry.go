// Package retry provides the backoff schedule used while waiting for PostgreSQL.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config holds configuration for retry logic
type Config struct {
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterPercent uint64
}

// PostgreSQLDefaults returns the schedule used while waiting for PostgreSQL:
// 1s, 2s, 4s, 8s, then 10s for every further attempt.
func PostgreSQLDefaults() *Config {
	return &Config{
		BaseDelay: 1 * time.Second,
		MaxDelay:  10 * time.Second,
	}
}

// Clock abstracts wall time so the wait loop can be driven without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real clock
type SystemClock struct{}

// Now returns the current local time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d or until ctx is done
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CreateBackoff creates the backoff strategy from config. Every delay is
// capped to the time left until deadline; once nothing is left the backoff
// reports stop.
func (c *Config) CreateBackoff(clock Clock, deadline time.Time) retry.Backoff {
	backoff := retry.NewExponential(c.BaseDelay)
	backoff = retry.WithCappedDuration(c.MaxDelay, backoff)
	if c.JitterPercent > 0 {
		backoff = retry.WithJitterPercent(c.JitterPercent, backoff)
	}
	return WithDeadline(clock, deadline, backoff)
}

// WithDeadline caps the delays of next to the remaining time before deadline
// as measured by clock.
func WithDeadline(clock Clock, deadline time.Time, next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		val, stop := next.Next()
		if stop {
			return 0, true
		}
		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return 0, true
		}
		if val > remaining {
			val = remaining
		}
		return val, false
	})
}
