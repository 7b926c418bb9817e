package cryogonal

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func headersFor(limit, remaining int, bucketID string, reset time.Time) http.Header {
	h := make(http.Header)
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	h.Set("X-RateLimit-Bucket", bucketID)

	return h
}

// TestLimitTableAliasingS5 is invariant 7 / scenario S5: two distinct keys
// updated to the same bucket id resolve to the identical *Bucket, and a
// decrement observed through one key is visible through the others.
func TestLimitTableAliasingS5(t *testing.T) {
	table := NewLimitTable()

	keyA := LimitKey{RouteTag: "get_a", MajorParameterKind: MajorParameterChannelID, MajorParameterID: "1"}
	keyB := LimitKey{RouteTag: "get_a", MajorParameterKind: MajorParameterGuildID, MajorParameterID: "2"}

	reset := time.Now().Add(time.Minute)

	if err := table.Update(keyA, headersFor(5, 4, "B", reset)); err != nil {
		t.Fatalf("Update(keyA): %v", err)
	}

	if err := table.Update(keyB, headersFor(5, 3, "B", reset)); err != nil {
		t.Fatalf("Update(keyB): %v", err)
	}

	bucketA := table.LookupKey(keyA)
	bucketB := table.LookupKey(keyB)
	bucketByID := table.LookupBucketID("B")

	if bucketA != bucketB || bucketB != bucketByID {
		t.Fatalf("expected keyA, keyB and bucket id %q to resolve to the identical *Bucket", "B")
	}

	if got := bucketA.Remaining(); got != 3 {
		t.Fatalf("Remaining() = %d, want 3 (the most recent update)", got)
	}
}

func TestLimitTableUpdateInsufficientHeaders(t *testing.T) {
	table := NewLimitTable()

	key := LimitKey{RouteTag: "get_a"}

	if err := table.Update(key, http.Header{}); err != ErrHeadersInsufficient {
		t.Fatalf("Update with no headers: err = %v, want ErrHeadersInsufficient", err)
	}
}

func TestLimitTableUpdateGlobalRetryAfterSynthesis(t *testing.T) {
	table := NewLimitTable()

	h := make(http.Header)
	h.Set("Retry-After", "2.5")

	if err := table.Update(GlobalLimitKey, h); err != nil {
		t.Fatalf("Update: %v", err)
	}

	bucket := table.LookupKey(GlobalLimitKey)
	if bucket == nil {
		t.Fatal("expected a synthesized Bucket for the global key")
	}

	if bucket.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", bucket.Remaining())
	}
}

func TestLimitTableLookupUnknown(t *testing.T) {
	table := NewLimitTable()

	if table.LookupKey(LimitKey{RouteTag: "nope"}) != nil {
		t.Fatal("expected a nil Bucket for an unregistered key")
	}

	if table.LookupBucketID("nope") != nil {
		t.Fatal("expected a nil Bucket for an unregistered bucket id")
	}
}
