package provider

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's finite-state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker is a consecutive-failure circuit breaker with clock-driven
// transitions: Closed → Open after threshold counted failures, Open → HalfOpen
// once the cooldown elapses, HalfOpen admits exactly one probe call and
// returns to Closed on success or Open on failure.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	consecutive int
	threshold   int
	cooldown    time.Duration
	openedAt    time.Time
	probeInUse  bool

	now func() time.Time
}

// NewBreaker creates a closed breaker. The clock is injectable for tests via
// WithClock.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 10
	}
	return &Breaker{
		state:     BreakerClosed,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock replaces the breaker's clock and returns it, for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow reports whether a call may proceed. In the open state it fails fast
// until the cooldown elapses, then admits a single half-open probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.probeInUse = true
		return true
	case BreakerHalfOpen:
		if b.probeInUse {
			return false
		}
		b.probeInUse = true
		return true
	}
	return false
}

// RecordSuccess resets the failure count; a successful half-open probe closes
// the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
	b.probeInUse = false
	b.state = BreakerClosed
}

// ReleaseProbe frees the half-open trial slot when the admitted call was
// abandoned before reaching the upstream, so the next caller can still probe.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen {
		b.probeInUse = false
	}
}

// RecordFailure counts one breaker-relevant failure. A failed half-open probe
// reopens immediately; in the closed state the breaker trips once the
// consecutive count reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.probeInUse = false
		return
	}

	b.consecutive++
	if b.state == BreakerClosed && b.consecutive >= b.threshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// State returns the current FSM state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
