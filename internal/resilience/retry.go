package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Policy configures per-call timeout and retry with exponential backoff.
type Policy struct {
	// MaxAttempts is the maximum number of attempts for transient failures (including the first).
	MaxAttempts int

	// Timeout bounds each individual attempt. Zero disables the per-call timeout.
	Timeout time.Duration

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// Multiplier grows the backoff after each retry.
	Multiplier float64

	// Jitter is the maximum jitter as a fraction of the backoff (0-1).
	Jitter float64
}

// DefaultPolicy returns the defaults used for inference and search calls.
func DefaultPolicy() Policy {
	return PolicyFromConfig(model.DefaultConfig().Retry)
}

// PolicyFromConfig converts the retry section of the configuration.
func PolicyFromConfig(c model.RetryConfig) Policy {
	return Policy{
		MaxAttempts:    c.MaxAttempts,
		Timeout:        c.Timeout,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		Multiplier:     c.Multiplier,
		Jitter:         c.Jitter,
	}
}

// sleepFunc waits for d or until ctx ends. Tests replace it to avoid real sleeps.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withJitter spreads base by +/- jitter.
func withJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || base <= 0 {
		return base
	}
	factor := 1.0 + (rand.Float64()*2-1)*jitter
	return time.Duration(float64(base) * factor)
}

// nextBackoff calculates the next backoff value.
func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	if factor < 1 {
		factor = 1
	}
	next := time.Duration(float64(current) * factor)
	if max > 0 && next > max {
		return max
	}
	return next
}
