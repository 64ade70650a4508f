package rdap

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AdaptiveLimiter paces registry requests with a rate that adapts to server
// pushback: a "too many requests" response multiplies the inter-request
// delay, a sustained run of successes walks it back toward the floor. All
// methods are safe for concurrent use.
type AdaptiveLimiter struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	minRate    rate.Limit // slowest allowed (longest delay)
	maxRate    rate.Limit // fastest allowed (shortest delay)
	mul        float64
	streak     int
	decayAfter int
}

// NewAdaptiveLimiter builds a limiter bounded by minDelay and maxDelay
// between requests. mul is the backoff multiplier; decayAfter is the number
// of consecutive successes before the delay is reduced.
func NewAdaptiveLimiter(minDelay, maxDelay time.Duration, mul float64, decayAfter int) *AdaptiveLimiter {
	if minDelay <= 0 {
		minDelay = 100 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if mul <= 1 {
		mul = 2
	}
	if decayAfter <= 0 {
		decayAfter = 10
	}
	maxRate := rate.Every(minDelay)
	return &AdaptiveLimiter{
		limiter:    rate.NewLimiter(maxRate, 1),
		minRate:    rate.Every(maxDelay),
		maxRate:    maxRate,
		mul:        mul,
		decayAfter: decayAfter,
	}
}

// Wait blocks until the next request is allowed or ctx is done.
func (l *AdaptiveLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	lim := l.limiter
	l.mu.Unlock()
	return lim.Wait(ctx)
}

// Backoff slows the request rate after a rate-limit response.
func (l *AdaptiveLimiter) Backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streak = 0
	next := rate.Limit(float64(l.limiter.Limit()) / l.mul)
	if next < l.minRate {
		next = l.minRate
	}
	l.limiter.SetLimit(next)
}

// Success records a successful request; after decayAfter consecutive
// successes the delay is reduced (never below the configured floor).
func (l *AdaptiveLimiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streak++
	if l.streak < l.decayAfter {
		return
	}
	l.streak = 0
	next := rate.Limit(float64(l.limiter.Limit()) * l.mul)
	if next > l.maxRate {
		next = l.maxRate
	}
	l.limiter.SetLimit(next)
}

// Delay reports the current inter-request delay. Used for logging and tests.
func (l *AdaptiveLimiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit := float64(l.limiter.Limit())
	if limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / limit)
}
