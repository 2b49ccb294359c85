package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one rate.Limiter per key in memory
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	now     func() time.Time
	sweepAt time.Time
}

// NewLocalLimiter creates a limiter refilling rps tokens per second up to burst
func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return Result{
			Allowed:   true,
			Remaining: int(math.Floor(b.limiter.TokensAt(now))),
		}, nil
	}

	retry := time.Second
	if l.rps > 0 {
		missing := 1 - b.limiter.TokensAt(now)
		retry = time.Duration(math.Ceil(missing / float64(l.rps) * float64(time.Second)))
	}

	return Result{Allowed: false, RetryAfter: retry}, nil
}

// sweep drops buckets idle for longer than idleTTL; must be called with l.mu held
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, key)
		}
	}
	l.sweepAt = now.Add(idleTTL)
}
