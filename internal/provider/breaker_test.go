package provider

import (
	"testing"
	"time"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(10, time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 9; i++ {
		b.RecordFailure()
		if got := b.State(); got != BreakerClosed {
			t.Fatalf("state after %d failures = %v, want closed", i+1, got)
		}
	}
	b.RecordFailure()
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state after 10 failures = %v, want open", got)
	}
	if b.Allow() {
		t.Errorf("open breaker allowed a call before cooldown")
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %v, want closed: success must reset the consecutive count", got)
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute).WithClock(func() time.Time { return now })

	b.RecordFailure()
	b.RecordFailure()
	if b.Allow() {
		t.Fatalf("open breaker allowed a call")
	}

	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Fatalf("breaker refused the half-open probe after cooldown")
	}
	if got := b.State(); got != BreakerHalfOpen {
		t.Fatalf("state = %v, want half_open", got)
	}
	if b.Allow() {
		t.Errorf("half-open breaker admitted a second concurrent probe")
	}

	b.RecordSuccess()
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state after successful probe = %v, want closed", got)
	}
	if !b.Allow() {
		t.Errorf("closed breaker refused a call")
	}
}

func TestBreakerReleaseProbeFreesSlot(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute).WithClock(func() time.Time { return now })

	b.RecordFailure()
	b.RecordFailure()
	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Fatalf("breaker refused the half-open probe after cooldown")
	}

	// The admitted call was abandoned before reaching the upstream.
	b.ReleaseProbe()
	if !b.Allow() {
		t.Errorf("breaker refused a new probe after the slot was released")
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute).WithClock(func() time.Time { return now })

	b.RecordFailure()
	b.RecordFailure()
	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Fatalf("breaker refused the half-open probe")
	}
	b.RecordFailure()
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state after failed probe = %v, want open", got)
	}
	if b.Allow() {
		t.Errorf("reopened breaker allowed a call before a fresh cooldown")
	}
	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Errorf("breaker refused a probe after the fresh cooldown")
	}
}
