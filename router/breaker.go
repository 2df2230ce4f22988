package router

import (
	"sync"
	"time"
)

// BreakerState is the lifecycle state of a circuit breaker.
type BreakerState int

const (
	// StateClosed allows all calls through.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cool-down elapses.
	StateOpen
	// StateHalfOpen admits a single probe call.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s BreakerState) String() string {
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

// BreakerOptions configures a circuit breaker.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold int
	// BaseCoolDown is the initial open duration.
	BaseCoolDown time.Duration
	// CoolDownFactor multiplies the cool-down after each failed probe.
	CoolDownFactor float64
	// MaxCoolDown caps cool-down growth.
	MaxCoolDown time.Duration
	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Breaker is a per-route-entry circuit breaker. A run of consecutive
// failures opens it; after the cool-down a single probe is admitted, and
// a successful probe closes it again. Each failed probe grows the
// cool-down, which never shrinks below its current value until a call
// succeeds.
type Breaker struct {
	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	coolDown time.Duration
	probing  bool
	opts     BreakerOptions
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(optFns ...func(o *BreakerOptions)) *Breaker {
	opts := BreakerOptions{
		FailureThreshold: 3,
		BaseCoolDown:     10 * time.Second,
		CoolDownFactor:   2.0,
		MaxCoolDown:      5 * time.Minute,
		Clock:            time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Breaker{state: StateClosed, coolDown: opts.BaseCoolDown, opts: opts}
}

// Allow reports whether a call may proceed. An open breaker whose
// cool-down has elapsed transitions to half-open and admits exactly one
// probe; further calls are rejected until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.opts.Clock().Sub(b.openedAt) < b.coolDown {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// Success records a successful call. It closes the breaker, resets the
// consecutive-failure count and returns the cool-down to its base value.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.coolDown = b.opts.BaseCoolDown
	b.probing = false
}

// Failure records a failed call. In the closed state it trips the
// breaker open once the threshold is reached; a failed half-open probe
// reopens immediately with a longer cool-down.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.opts.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.opts.Clock()
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.opts.Clock()
		b.probing = false
		b.coolDown = b.growCoolDown()
	case StateOpen:
		// A call that started before the trip finished late. The
		// breaker is already open; nothing to record.
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) growCoolDown() time.Duration {
	grown := time.Duration(float64(b.coolDown) * b.opts.CoolDownFactor)
	if grown < b.coolDown {
		// Factor below 1 would shrink the window; hold instead.
		grown = b.coolDown
	}
	if grown > b.opts.MaxCoolDown {
		grown = b.opts.MaxCoolDown
	}
	return grown
}
