package router

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const localLimiterIdleTTL = 10 * time.Minute

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter in-process token buckets keyed like the redis limiter.
// Used when redis is disabled so single-node deployments stay throttled.
type LocalRateLimiter struct {
	rule    RateLimitRule
	mu      sync.Mutex
	buckets map[string]*localBucket
	sweptAt time.Time
	now     func() time.Time
}

// NewLocalRateLimiter allows MaxRequests per WindowSeconds with a burst of MaxRequests
func NewLocalRateLimiter(rule RateLimitRule) *LocalRateLimiter {
	return &LocalRateLimiter{
		rule:    rule,
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// Allow consumes one token for key
func (l *LocalRateLimiter) Allow(key string) bool {
	if l == nil || l.rule.disabled() {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
	bucket, ok := l.buckets[key]
	if !ok {
		every := time.Duration(l.rule.WindowSeconds) * time.Second / time.Duration(l.rule.MaxRequests)
		bucket = &localBucket{limiter: rate.NewLimiter(rate.Every(every), l.rule.MaxRequests)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

func (l *LocalRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.sweptAt) < localLimiterIdleTTL {
		return
	}
	l.sweptAt = now
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > localLimiterIdleTTL {
			delete(l.buckets, key)
		}
	}
}

// retryAfter seconds until one token refills
func (l *LocalRateLimiter) retryAfter() int {
	if l == nil || l.rule.disabled() {
		return 1
	}
	return l.rule.WindowSeconds / l.rule.MaxRequests
}

// Middleware gin adapter
func (l *LocalRateLimiter) Middleware(keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(limitKey(c, l.rule, keyFunc)) {
			c.Next()
			return
		}
		rejectLimited(c, l.rule, l.retryAfter())
	}
}
