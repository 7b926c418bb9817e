package cryogonal

import (
	"sync"
	"time"
)

// Bucket is an observed Discord rate-limit window with a cooldown gate
// (spec.md §3, §4.4). Bucket fields are guarded by mu, not by gate; gate is
// held only for the duration of a Cooldown, as the exclusion that Wait
// blocks on. NextWillLimit and Cooldown read the fields under mu and do not
// re-read them under gate, so each read sees a consistent-per-field view.
type Bucket struct {
	gate sync.Mutex

	mu         sync.Mutex // guards the fields below
	limit      int
	remaining  int
	resetTime  time.Time
	onCooldown bool
}

// NewBucket constructs a Bucket with the given limit, remaining count and
// reset instant (spec.md §3 "Buckets are created lazily on first response
// to a key").
func NewBucket(limit, remaining int, reset time.Time) *Bucket {
	return &Bucket{limit: limit, remaining: remaining, resetTime: reset}
}

// Limit, Remaining, ResetTime and OnCooldown expose the Bucket's observed
// state (spec.md §3).
func (b *Bucket) Limit() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.limit
}

func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.remaining
}

func (b *Bucket) ResetTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.resetTime
}

func (b *Bucket) OnCooldown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.onCooldown
}

// NextWillLimit is the pure predicate from spec.md §3: the next request
// will be limited iff remaining-1 < 0 and the clock has not yet passed
// reset_time.
func (b *Bucket) NextWillLimit(now time.Time) bool {
	remaining := b.Remaining()
	reset := b.ResetTime()

	return remaining-1 < 0 && now.Before(reset)
}

// Wait blocks on the exclusion gate if, and only if, the Bucket is
// currently on cooldown, returning the wall-clock time spent waiting. If
// the Bucket is not on cooldown, Wait returns immediately with waited=false
// (spec.md §4.4 "wait").
func (b *Bucket) Wait() (elapsed time.Duration, waited bool) {
	if !b.OnCooldown() {
		return 0, false
	}

	start := time.Now()

	// block until whoever set cooldown releases the gate.
	b.gate.Lock()
	b.gate.Unlock() //nolint:staticcheck

	return time.Since(start), true
}

// Cooldown computes delta = reset_time - now; if negative, it returns
// ErrClockSkew. Otherwise it sets on_cooldown, holds the exclusion gate for
// delta, then clears on_cooldown (spec.md §4.4 "cooldown"). At most one
// goroutine may be inside Cooldown at a time per Bucket; concurrent Wait
// callers return only once this call exits (spec.md §4.4 "Concurrency
// contract", §8 invariant 8).
func (b *Bucket) Cooldown(now time.Time) error {
	reset := b.ResetTime()

	delta := reset.Sub(now)
	if delta < 0 {
		return ErrClockSkew
	}

	b.gate.Lock()
	defer b.gate.Unlock()

	b.mu.Lock()
	b.onCooldown = true
	b.mu.Unlock()

	timer := time.NewTimer(delta)
	defer timer.Stop()
	<-timer.C

	b.mu.Lock()
	b.onCooldown = false
	b.mu.Unlock()

	return nil
}

// reset mutates the Bucket in place with a freshly observed limit,
// remaining and reset time, used by LimitTable.update (spec.md §4.5 "inner
// update").
func (b *Bucket) reset(limit, remaining int, resetTime time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.limit = limit
	b.remaining = remaining
	b.resetTime = resetTime
}
