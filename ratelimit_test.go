package cryogonal

import (
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestBucketNextWillLimit(t *testing.T) {
	now := time.Now()

	limited := NewBucket(5, 0, now.Add(time.Second))
	if !limited.NextWillLimit(now) {
		t.Fatal("expected NextWillLimit to be true with remaining=0 and reset in the future")
	}

	plenty := NewBucket(5, 3, now.Add(time.Second))
	if plenty.NextWillLimit(now) {
		t.Fatal("expected NextWillLimit to be false with remaining=3")
	}

	expired := NewBucket(5, 0, now.Add(-time.Second))
	if expired.NextWillLimit(now) {
		t.Fatal("expected NextWillLimit to be false once reset_time has passed")
	}
}

func TestBucketWaitWithoutCooldown(t *testing.T) {
	b := NewBucket(5, 5, time.Now().Add(time.Minute))

	elapsed, waited := b.Wait()
	if waited {
		t.Fatalf("expected Wait to return immediately, got waited=true elapsed=%v", elapsed)
	}
}

func TestBucketCooldownClockSkew(t *testing.T) {
	b := NewBucket(5, 0, time.Now().Add(-time.Second))

	if err := b.Cooldown(time.Now()); err != ErrClockSkew {
		t.Fatalf("Cooldown error = %v, want ErrClockSkew", err)
	}
}

// TestBucketMutualExclusionS6 is invariant 8 / scenario S6: a concurrent
// Wait() call started while Cooldown is in flight returns only after
// Cooldown exits, with an elapsed time close to the cooldown duration, and
// a Wait() issued after cooldown exits returns immediately.
func TestBucketMutualExclusionS6(t *testing.T) {
	const delay = 150 * time.Millisecond

	b := NewBucket(5, 0, time.Now().Add(delay))

	var g errgroup.Group

	g.Go(func() error {
		return b.Cooldown(time.Now())
	})

	// give Cooldown a chance to acquire the gate and set on_cooldown first.
	time.Sleep(20 * time.Millisecond)

	if !b.OnCooldown() {
		t.Fatal("expected on_cooldown to be true while Cooldown is in flight")
	}

	start := time.Now()

	elapsed, waited := b.Wait()
	if !waited {
		t.Fatal("expected Wait to block and report waited=true")
	}

	observed := time.Since(start)

	const epsilon = 80 * time.Millisecond
	if observed < delay-epsilon {
		t.Fatalf("Wait returned too early: observed %v, want at least ~%v", observed, delay)
	}

	if elapsed <= 0 {
		t.Fatalf("elapsed = %v, want > 0", elapsed)
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("Cooldown: %v", err)
	}

	if b.OnCooldown() {
		t.Fatal("expected on_cooldown to be false after Cooldown exits")
	}

	if _, waited := b.Wait(); waited {
		t.Fatal("expected a subsequent Wait to return immediately once cooldown has cleared")
	}
}

func TestBucketResetMutatesInPlace(t *testing.T) {
	b := NewBucket(5, 5, time.Now())

	reset := time.Now().Add(time.Minute)
	b.reset(10, 7, reset)

	if got := b.Limit(); got != 10 {
		t.Fatalf("Limit() = %d, want 10", got)
	}

	if got := b.Remaining(); got != 7 {
		t.Fatalf("Remaining() = %d, want 7", got)
	}

	if !b.ResetTime().Equal(reset) {
		t.Fatalf("ResetTime() = %v, want %v", b.ResetTime(), reset)
	}
}
