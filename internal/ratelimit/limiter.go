package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
)

// idleBucketTTL is how long an untouched bucket survives a Prune.
const idleBucketTTL = 24 * time.Hour

// Limiter decides whether a user may start another job.
type Limiter interface {
	Allow(userID int64) bool
}

// TokenBucketLimiter gives every user limit tokens, refilling one token per refillRate.
type TokenBucketLimiter struct {
	limit      int
	refillRate time.Duration
	now        func() time.Time

	mu      sync.Mutex
	buckets map[int64]*bucket
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// New returns a token bucket limiter, or a Limiter that allows everything when limit or refillRate is not positive.
func New(limit int, refillRate time.Duration) Limiter {
	if limit <= 0 || refillRate <= 0 {
		return NoOpLimiter{}
	}
	return newTokenBucket(limit, refillRate, time.Now)
}

func newTokenBucket(limit int, refillRate time.Duration, now func() time.Time) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limit:      limit,
		refillRate: refillRate,
		now:        now,
		buckets:    make(map[int64]*bucket),
	}
}

func (l *TokenBucketLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{tokens: l.limit, lastRefill: now}
		l.buckets[userID] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed >= l.refillRate {
		refill := int(elapsed / l.refillRate)
		b.tokens = min(l.limit, b.tokens+refill)
		b.lastRefill = b.lastRefill.Add(time.Duration(refill) * l.refillRate)
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	logutils.Log.WithField("user_id", userID).Debug("Rate limit exceeded")
	return false
}

// Prune drops buckets that have not been refilled for idleBucketTTL and reports how many were removed.
func (l *TokenBucketLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for userID, b := range l.buckets {
		if now.Sub(b.lastRefill) > idleBucketTTL {
			delete(l.buckets, userID)
			removed++
		}
	}
	return removed
}

// StartPruning calls Prune every interval until ctx is done.
func (l *TokenBucketLimiter) StartPruning(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(); n > 0 {
				logutils.Log.WithField("count", n).Debug("Pruned idle rate limit buckets")
			}
		}
	}
}

// NoOpLimiter allows every request.
type NoOpLimiter struct{}

func (NoOpLimiter) Allow(int64) bool { return true }
