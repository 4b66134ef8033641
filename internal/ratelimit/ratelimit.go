// Package ratelimit paces outbound API calls so unattended sessions cannot
// hammer the upstream, independent of the budget cap.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket tracks the token state for a single request kind.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a token-bucket pacer keyed by request kind. All kinds share the
// same rate; the zero kind key is valid.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration

	now   func() time.Time                                // injectable clock for testing
	sleep func(ctx context.Context, d time.Duration) error // injectable sleep for testing
}

// New creates a Limiter allowing rate requests per window for each kind.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// getBucket returns the bucket for kind, creating a full one if absent.
// Must be called with l.mu held.
func (l *Limiter) getBucket(kind string) *bucket {
	b, ok := l.buckets[kind]
	if !ok {
		b = &bucket{tokens: float64(l.rate), lastRefill: l.now()}
		l.buckets[kind] = b
	}
	return b
}

// refill adds tokens based on elapsed time. Must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	refillRate := float64(l.rate) / l.window.Seconds()
	b.tokens += elapsed * refillRate
	if b.tokens > float64(l.rate) {
		b.tokens = float64(l.rate)
	}
	b.lastRefill = now
}

// Allow reports whether a call of the given kind may proceed now, consuming
// one token when it may.
func (l *Limiter) Allow(kind string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(kind)
	l.refill(b)

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Wait blocks until a token is available for kind (or ctx is done), then
// consumes it.
func (l *Limiter) Wait(ctx context.Context, kind string) error {
	for {
		l.mu.Lock()
		b := l.getBucket(kind)
		l.refill(b)
		if b.tokens >= 1 {
			b.tokens--
			l.mu.Unlock()
			return nil
		}
		deficit := 1 - b.tokens
		refillRate := float64(l.rate) / l.window.Seconds()
		wait := time.Duration(deficit / refillRate * float64(time.Second))
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
