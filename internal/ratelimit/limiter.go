// Package ratelimit throttles requests per key with a token bucket, in process or shared through valkey.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a single check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter consumes one token for key and reports whether the request may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
