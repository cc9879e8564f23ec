package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock advances only when the limiter sleeps, so tests run instantly.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return nil
}

func newTestBucket(ratePerMinute, burst int) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := NewTokenBucket(ratePerMinute, burst)
	b.now = clock.Now
	b.sleep = clock.Sleep
	b.lastRefill = clock.now
	return b, clock
}

func TestTokenBucketBurstThenBlocks(t *testing.T) {
	b, clock := newTestBucket(60, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Acquire(ctx); err != nil {
			t.Fatalf("burst acquire %d failed: %v", i, err)
		}
	}
	before := clock.now
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("post-burst acquire failed: %v", err)
	}
	waited := clock.now.Sub(before)
	if waited < 900*time.Millisecond || waited > 1100*time.Millisecond {
		t.Errorf("expected ~1s wait at 60/min, waited %v", waited)
	}
}

func TestTokenBucketRefillCapped(t *testing.T) {
	b, clock := newTestBucket(60, 2)
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	clock.now = clock.now.Add(time.Hour)
	if got := b.Available(); got != 2 {
		t.Errorf("Available() = %v after long idle, want capped at burst 2", got)
	}
}

func TestTokenBucketDeadlineExceeded(t *testing.T) {
	b, clock := newTestBucket(1, 1) // 1/min: the next token is a minute away
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	deadlineCtx, cancel := context.WithDeadline(ctx, clock.now.Add(time.Second))
	defer cancel()
	err := b.Acquire(deadlineCtx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire with unreachable deadline = %v, want DeadlineExceeded", err)
	}
}
