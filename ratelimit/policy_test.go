package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fixedPolicy(store StateStore, now time.Time) *AdaptivePolicy {
	policy := NewAdaptivePolicy(store)
	policy.Now = func() time.Time { return now }
	return policy
}

func TestBeforeCall_NoStateAllows(t *testing.T) {
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	key := Key{Endpoint: "source.example.com", Bucket: "/item/"}
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected call allowed, got %v", err)
	}
}

func TestAfterCall_TooManyRequestsThrottles(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStateStore()
	policy := fixedPolicy(store, now)
	key := Key{Endpoint: "source.example.com", Bucket: "/item/"}

	err := policy.AfterCall(context.Background(), key, ResponseMeta{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "30"},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	err = policy.BeforeCall(context.Background(), key)
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if throttled.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry after, got %s", throttled.RetryAfter)
	}
	if throttled.Endpoint != "source.example.com" || throttled.Bucket != "/item/" {
		t.Fatalf("unexpected throttle identity: %+v", throttled)
	}
}

func TestAfterCall_ZeroRemainingThrottlesUntilReset(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStateStore()
	policy := fixedPolicy(store, now)
	key := Key{Endpoint: "target.example.com", Bucket: "/size/"}

	err := policy.AfterCall(context.Background(), key, ResponseMeta{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "100",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1788256920",
		},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	if err := policy.BeforeCall(context.Background(), key); err == nil {
		t.Fatalf("expected throttle with zero remaining before reset")
	}
}

func TestAfterCall_SuccessClearsThrottle(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStateStore()
	policy := fixedPolicy(store, now)
	key := Key{Endpoint: "source.example.com", Bucket: "/item/"}

	if err := policy.AfterCall(context.Background(), key, ResponseMeta{
		StatusCode: http.StatusTooManyRequests,
	}); err != nil {
		t.Fatalf("throttle: %v", err)
	}
	if err := policy.BeforeCall(context.Background(), key); err == nil {
		t.Fatalf("expected throttled")
	}

	if err := policy.AfterCall(context.Background(), key, ResponseMeta{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"X-RateLimit-Remaining": "50"},
	}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected throttle cleared, got %v", err)
	}
}

func TestNextBackoff_DoublesAndCaps(t *testing.T) {
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.InitialBackoff = time.Second
	policy.MaxBackoff = 8 * time.Second

	if got := policy.nextBackoff(1); got != time.Second {
		t.Fatalf("attempt 1: expected 1s, got %s", got)
	}
	if got := policy.nextBackoff(3); got != 4*time.Second {
		t.Fatalf("attempt 3: expected 4s, got %s", got)
	}
	if got := policy.nextBackoff(10); got != 8*time.Second {
		t.Fatalf("attempt 10: expected cap 8s, got %s", got)
	}
}

func TestThrottledError_ToSyncError(t *testing.T) {
	err := ThrottledError{
		Endpoint:   "source.example.com",
		Bucket:     "/item/",
		RetryAfter: 10 * time.Second,
	}
	rich := err.ToSyncError()
	if rich.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rich.Code)
	}
	if rich.Metadata["retry_after_ms"] != int64(10000) {
		t.Fatalf("expected retry_after_ms metadata, got %v", rich.Metadata)
	}
}

func TestKeyNormalization(t *testing.T) {
	store := NewMemoryStateStore()
	state := State{Key: Key{Endpoint: "Source.Example.COM", Bucket: " /Item/ "}}
	if err := store.Upsert(context.Background(), state); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := store.Get(context.Background(), Key{Endpoint: "source.example.com", Bucket: "/item/"}); err != nil {
		t.Fatalf("expected normalized lookup to hit, got %v", err)
	}
}
