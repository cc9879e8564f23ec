package provider

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a blocking token-bucket rate limiter.
//
// Tokens refill at a fixed rate up to the burst capacity; each call consumes
// one. Acquire waits for a token instead of failing under sustained load, but
// the wait is bounded by the caller's context deadline so nothing blocks
// forever.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTokenBucket creates a limiter allowing ratePerMinute sustained calls
// with the given burst headroom. The bucket starts full.
func NewTokenBucket(ratePerMinute, burst int) *TokenBucket {
	if ratePerMinute <= 0 {
		ratePerMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	b := &TokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: float64(ratePerMinute) / 60.0,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	b.lastRefill = b.now()
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.maxTokens, b.tokens+elapsed*b.refillRate)
		b.lastRefill = now
	}
}

// Acquire blocks until a token is available or ctx is done.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
		b.mu.Unlock()

		if deadline, ok := ctx.Deadline(); ok && b.now().Add(wait).After(deadline) {
			// Waiting cannot succeed before the deadline.
			return context.DeadlineExceeded
		}
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Available returns the current token count (may be fractional).
func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}
