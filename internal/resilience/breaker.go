package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is normal operation.
	StateClosed State = iota
	// StateOpen delays every caller until the cooldown has elapsed.
	StateOpen
	// StateHalfOpen admits exactly one trial call.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker (default: 5).
	FailureThreshold int

	// Cooldown is how long the breaker stays open before a trial call (default: 30s).
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// BreakerStats contains circuit breaker statistics.
type BreakerStats struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Opens               int64  `json:"opens"`
	Delayed             int64  `json:"delayed"` // Acquire calls that had to wait
}

// Breaker is a circuit breaker shared by every caller of an external service.
//
// Unlike a rejecting breaker, an open Breaker never fails a caller: Acquire
// blocks until the cooldown has elapsed and then hands out a single trial
// permit. Other callers keep waiting until the trial resolves. A successful
// trial closes the breaker, a failed one reopens it for another cooldown.
//
// Thread Safety: Safe for concurrent use.
type Breaker struct {
	config BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
	changed  chan struct{} // closed and replaced on every state change

	opens   int64
	delayed int64

	now      func() time.Time
	onChange func(from, to State)
}

// NewBreaker creates a closed breaker. Non-positive settings fall back to defaults.
func NewBreaker(config BreakerConfig) *Breaker {
	defaults := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}
	return &Breaker{
		config:  config,
		state:   StateClosed,
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// OnStateChange registers a callback invoked (under the breaker lock) on every
// transition. It must be set before the breaker is shared and must not block.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Permit is handed to a caller admitted by Acquire. Exactly one of Success,
// Failure or Release must be called once the external call has finished.
type Permit struct {
	b     *Breaker
	trial bool
}

// Trial reports whether this permit is the half-open trial.
func (p Permit) Trial() bool {
	return p.trial
}

// Success records a successful call.
func (p Permit) Success() {
	p.b.record(p.trial, true)
}

// Failure records a failed call.
func (p Permit) Failure() {
	p.b.record(p.trial, false)
}

// Release gives up the permit without affecting the failure count.
func (p Permit) Release() {
	if !p.trial {
		return
	}
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
	b.broadcast()
}

// Acquire waits until a call may be attempted. It only returns an error when
// ctx ends while waiting.
func (b *Breaker) Acquire(ctx context.Context) (Permit, error) {
	waited := false
	for {
		b.mu.Lock()
		var wait time.Duration
		switch b.state {
		case StateClosed:
			b.mu.Unlock()
			return Permit{b: b}, nil

		case StateOpen:
			remaining := b.config.Cooldown - b.now().Sub(b.openedAt)
			if remaining <= 0 {
				b.transitionTo(StateHalfOpen)
				b.trial = true
				b.mu.Unlock()
				return Permit{b: b, trial: true}, nil
			}
			wait = remaining

		case StateHalfOpen:
			if !b.trial {
				b.trial = true
				b.mu.Unlock()
				return Permit{b: b, trial: true}, nil
			}
		}

		if !waited {
			waited = true
			b.delayed++
		}
		changed := b.changed
		b.mu.Unlock()

		if err := waitFor(ctx, changed, wait); err != nil {
			return Permit{}, err
		}
	}
}

// waitFor blocks until changed is closed, d elapses (when positive), or ctx ends.
func waitFor(ctx context.Context, changed <-chan struct{}, d time.Duration) error {
	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
		return nil
	case <-timeout:
		return nil
	}
}

func (b *Breaker) record(trial, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trial = false
		if success {
			b.failures = 0
			b.transitionTo(StateClosed)
		} else {
			b.openedAt = b.now()
			b.transitionTo(StateOpen)
		}
		b.broadcast()
		return
	}

	// Calls admitted while closed only move the counter while still closed.
	if b.state != StateClosed {
		return
	}
	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.config.FailureThreshold {
		b.openedAt = b.now()
		b.transitionTo(StateOpen)
		b.broadcast()
	}
}

// transitionTo changes state. Caller must hold b.mu.
func (b *Breaker) transitionTo(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateOpen {
		b.opens++
	}
	if to == StateClosed {
		b.failures = 0
	}
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

// broadcast wakes every waiter. Caller must hold b.mu.
func (b *Breaker) broadcast() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of breaker statistics.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
		Opens:               b.opens,
		Delayed:             b.delayed,
	}
}
