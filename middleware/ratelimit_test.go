package middleware_test

import (
	"testing"
	"time"

	"github.com/meszmate/imap-mailbox/middleware"
)

func TestRateLimit_DefaultConfig(t *testing.T) {
	called := false
	handler := middleware.RateLimit(middleware.RateLimitConfig{})(middleware.HandlerFunc(func(call *middleware.Call) error {
		called = true
		return nil
	}))

	if err := handler.Handle(&middleware.Call{Name: "NOOP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler was not called")
	}
}

func TestRateLimit_BurstDoesNotWait(t *testing.T) {
	handler := middleware.RateLimit(middleware.RateLimitConfig{
		MaxCommandsPerSecond: 1,
		BurstSize:            5,
	})(middleware.HandlerFunc(func(call *middleware.Call) error { return nil }))

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := handler.Handle(&middleware.Call{Name: "NOOP"}); err != nil {
			t.Fatalf("command %d: unexpected error: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("burst took %v, expected no waiting", elapsed)
	}
}

func TestRateLimit_WaitsWhenEmpty(t *testing.T) {
	handler := middleware.RateLimit(middleware.RateLimitConfig{
		MaxCommandsPerSecond: 20,
		BurstSize:            1,
	})(middleware.HandlerFunc(func(call *middleware.Call) error { return nil }))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := handler.Handle(&middleware.Call{Name: "NOOP"}); err != nil {
			t.Fatalf("command %d: unexpected error: %v", i, err)
		}
	}
	// One token up front, then two more at 50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected commands to be paced, took only %v", elapsed)
	}
}
