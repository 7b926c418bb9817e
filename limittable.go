package cryogonal

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// MajorParameterKind is the kind of major parameter (a path component that
// partitions an otherwise shared route into independent buckets) carried
// by a LimitKey (spec.md §3 GLOSSARY, §3 LimitKey).
type MajorParameterKind int

// MajorParameterKind values.
const (
	MajorParameterNone MajorParameterKind = iota
	MajorParameterChannelID
	MajorParameterGuildID
	MajorParameterWebhookID
)

// GlobalLimitKey is the special LimitKey representing the account-wide
// rate limit (spec.md §3 "A special value global exists for the
// account-wide rate limit").
var GlobalLimitKey = LimitKey{RouteTag: "global"}

// LimitKey identifies a route template plus, when applicable, the major
// parameter that partitions it. Equality is structural (spec.md §3).
type LimitKey struct {
	RouteTag          string
	MajorParameterKind MajorParameterKind
	MajorParameterID  string
}

// LimitTable is a dual-indexed registry coalescing route-keys to shared
// server rate-limit buckets (spec.md §3, §4.5). Whenever two distinct keys
// resolve to the same bucket id, both keys point to the same *Bucket
// instance, so a decrement observed through one key is observed through
// the other (spec.md §3 invariant, §8 invariant 7).
type LimitTable struct {
	mu        sync.Mutex
	byKey     map[LimitKey]*Bucket
	byBucketID map[string]*Bucket
}

// NewLimitTable constructs an empty LimitTable.
func NewLimitTable() *LimitTable {
	return &LimitTable{
		byKey:      make(map[LimitKey]*Bucket),
		byBucketID: make(map[string]*Bucket),
	}
}

// LookupKey returns the Bucket registered for key, or nil if none exists
// yet (spec.md §4.5 "lookup(key)").
func (t *LimitTable) LookupKey(key LimitKey) *Bucket {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.byKey[key]
}

// LookupBucketID returns the Bucket registered for a server bucket id, or
// nil if none exists yet (spec.md §4.5 "lookup(bucket_id)").
func (t *LimitTable) LookupBucketID(bucketID string) *Bucket {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.byBucketID[bucketID]
}

// rateLimitHeader is the parsed form of Discord's X-RateLimit-* response
// headers (spec.md §6).
type rateLimitHeader struct {
	limit      int
	remaining  int
	bucketID   string
	resetAfter float64 // not populated; Retry-After is parsed into retryAfter
	resetAt    int64   // unix seconds, from X-RateLimit-Reset
	hasBucket  bool
	retryAfter float64 // milliseconds, from Retry-After; used for Date-based resets and global 429 synthesis
	hasRetry   bool
	date       time.Time
	hasDate    bool
}

func parseRateLimitHeader(h http.Header) rateLimitHeader {
	var out rateLimitHeader

	if v := h.Get("Date"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			out.date = t
			out.hasDate = true
		}
	}

	limit, errL := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	remaining, errR := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	resetAt, errT := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	bucketID := h.Get("X-RateLimit-Bucket")

	if errL == nil && errR == nil && errT == nil && bucketID != "" {
		out.limit = limit
		out.remaining = remaining
		out.resetAt = resetAt
		out.bucketID = bucketID
		out.hasBucket = true
	}

	if v := h.Get("Retry-After"); v != "" {
		if ms, err := strconv.ParseFloat(v, 64); err == nil {
			out.retryAfter = ms
			out.hasRetry = true
		}
	}

	return out
}

// Update parses response headers and installs/updates the Bucket for key
// (spec.md §4.5 "update"). It implements the three-way priority: a full
// set of per-route headers, a global-429 Retry-After-only synthesis, or an
// ErrHeadersInsufficient failure.
func (t *LimitTable) Update(key LimitKey, headers http.Header) error {
	h := parseRateLimitHeader(headers)

	switch {
	case h.hasBucket:
		var reset time.Time

		if h.hasDate && h.hasRetry {
			reset = h.date.Add(time.Duration(h.retryAfter) * time.Millisecond)
		} else {
			reset = time.Unix(h.resetAt, 0)
		}

		t.update(key, h.bucketID, h.limit, h.remaining, reset)

		return nil

	case h.hasRetry:
		base := time.Now()
		if h.hasDate {
			base = h.date
		}

		reset := base.Add(time.Duration(h.retryAfter) * time.Millisecond)

		t.mu.Lock()
		t.byKey[key] = NewBucket(0, 0, reset)
		t.mu.Unlock()

		return nil

	default:
		return ErrHeadersInsufficient
	}
}

// update is the inner update of spec.md §4.5: if bucketID is already known,
// mutate that Bucket in place and alias key to it; otherwise create a new
// Bucket and install it at key and, if bucketID is non-empty, at
// by_bucket_id[bucketID] too. This aliasing is the invariant that lets two
// distinct route-keys sharing a server bucket observe one another's
// decrements (spec.md §4.5, §8 invariant 7, §8 S5).
func (t *LimitTable) update(key LimitKey, bucketID string, limit, remaining int, reset time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byBucketID[bucketID]; ok {
		existing.reset(limit, remaining, reset)
		t.byKey[key] = existing

		return
	}

	bucket := NewBucket(limit, remaining, reset)
	t.byKey[key] = bucket

	if bucketID != "" {
		t.byBucketID[bucketID] = bucket
	}
}
