package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	// MaxCommandsPerSecond is the sustained command rate.
	MaxCommandsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// RateLimit returns a middleware that paces commands through a token
// bucket. A command that finds the bucket empty waits for a token instead
// of failing.
func RateLimit(config RateLimitConfig) Middleware {
	if config.MaxCommandsPerSecond <= 0 {
		config.MaxCommandsPerSecond = 100
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 10
	}

	limiter := rate.NewLimiter(rate.Limit(config.MaxCommandsPerSecond), config.BurstSize)

	return func(next Handler) Handler {
		return HandlerFunc(func(call *Call) error {
			if err := limiter.Wait(context.Background()); err != nil {
				return fmt.Errorf("rate limit %s: %w", call.Name, err)
			}
			return next.Handle(call)
		})
	}
}
