package resilience

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ppiankov/claimcheck/internal/logging"
)

// Executor runs external calls through the shared breaker with a per-call
// timeout and the retry policy.
//
// Failure accounting:
//   - transient and timeout failures count against the breaker and are retried
//     up to Policy.MaxAttempts;
//   - the first malformed response is retried once without touching the breaker,
//     a second one counts as a failure and ends the call;
//   - permanent failures and caller cancellation end the call immediately and
//     leave the breaker untouched.
//
// Thread Safety: Safe for concurrent use.
type Executor struct {
	breaker *Breaker
	policy  Policy
	logger  *slog.Logger
}

// NewExecutor creates an executor. A nil breaker gets a private one with defaults.
func NewExecutor(breaker *Breaker, policy Policy, logger *slog.Logger) *Executor {
	if breaker == nil {
		breaker = NewBreaker(DefaultBreakerConfig())
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Executor{
		breaker: breaker,
		policy:  policy,
		logger:  logging.OrDefault(logger),
	}
}

// Breaker returns the breaker shared by this executor.
func (e *Executor) Breaker() *Breaker {
	return e.breaker
}

// Do runs fn until it succeeds or the policy gives up. The returned error is
// always a *Failure.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := e.policy.InitialBackoff
	attempts := 0
	transient := 0
	malformedRetried := false

	for {
		permit, err := e.breaker.Acquire(ctx)
		if err != nil {
			return &Failure{Op: op, Kind: KindOf(err), Attempts: attempts, Err: err}
		}

		attempts++
		timedOut, err := e.attempt(ctx, fn)
		if err == nil {
			permit.Success()
			return nil
		}

		kind := KindOf(err)
		if timedOut {
			kind = KindTimeout
		}
		if ctx.Err() != nil {
			permit.Release()
			return &Failure{Op: op, Kind: KindCanceled, Attempts: attempts, Err: errors.Join(err, ctx.Err())}
		}

		switch kind {
		case KindPermanent, KindCanceled:
			permit.Release()
			return &Failure{Op: op, Kind: kind, Attempts: attempts, Err: err}

		case KindMalformed:
			if !malformedRetried {
				malformedRetried = true
				permit.Release()
				e.logger.Debug("malformed response, retrying", "op", op, "error", err)
				continue
			}
			permit.Failure()
			return &Failure{Op: op, Kind: KindMalformed, Attempts: attempts, Err: err}

		default:
			permit.Failure()
			transient++
			if transient >= e.policy.MaxAttempts {
				return &Failure{Op: op, Kind: kind, Attempts: attempts, Err: err}
			}
			wait := withJitter(backoff, e.policy.Jitter)
			e.logger.Debug("external call failed, backing off", "op", op, "kind", kind.String(), "attempt", attempts, "wait", wait, "error", err)
			if err := sleepFunc(ctx, wait); err != nil {
				return &Failure{Op: op, Kind: KindCanceled, Attempts: attempts, Err: err}
			}
			backoff = nextBackoff(backoff, e.policy.Multiplier, e.policy.MaxBackoff)
		}
	}
}

// attempt runs fn once under the per-call timeout.
func (e *Executor) attempt(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	callCtx := ctx
	cancel := func() {}
	if e.policy.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.policy.Timeout)
	}
	defer cancel()

	err := fn(callCtx)
	timedOut := err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded)
	return timedOut, err
}
