package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitInfo is the limiter state reported in response headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(key string) (bool, RateLimitInfo)
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// TokenBucketLimiter keeps one bucket per key. Idle buckets are dropped by
// a background sweep; call Stop to end it.
type TokenBucketLimiter struct {
	rate      float64
	burst     int
	now       func() time.Time
	mu        sync.RWMutex
	buckets   map[string]*tokenBucket
	sweep     time.Duration
	stopOnce  sync.Once
	stopSweep chan struct{}
}

func NewTokenBucketLimiter(rate float64, burst int, sweep time.Duration) *TokenBucketLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &TokenBucketLimiter{
		rate:      rate,
		burst:     burst,
		now:       time.Now,
		buckets:   make(map[string]*tokenBucket),
		sweep:     sweep,
		stopSweep: make(chan struct{}),
	}
	if sweep > 0 {
		go l.sweepLoop()
	}
	return l
}

func (l *TokenBucketLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := l.now()

	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if !ok {
		l.mu.Lock()
		if b, ok = l.buckets[key]; !ok {
			b = &tokenBucket{tokens: float64(l.burst), lastRefill: now}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.lastRefill = now

	info := RateLimitInfo{Limit: l.burst, ResetAt: now.Add(time.Duration(float64(time.Second) / l.rate))}
	if b.tokens < 1 {
		return false, info
	}
	b.tokens--
	info.Remaining = int(b.tokens)
	return true, info
}

func (l *TokenBucketLimiter) sweepLoop() {
	t := time.NewTicker(l.sweep)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.dropIdle()
		case <-l.stopSweep:
			return
		}
	}
}

// dropIdle removes buckets that are full and untouched for a sweep period.
func (l *TokenBucketLimiter) dropIdle() {
	threshold := l.now().Add(-l.sweep)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		if b.lastRefill.Before(threshold) && b.tokens >= float64(l.burst)-1 {
			delete(l.buckets, key)
		}
		b.mu.Unlock()
	}
}

func (l *TokenBucketLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopSweep) })
}

func (l *TokenBucketLimiter) BucketCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// RateLimit rejects requests over the client's budget with 429. Keys are
// client IPs as gin resolves them.
func RateLimit(limiter RateLimiter, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		allowed, info := limiter.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
		if !allowed {
			retry := int(time.Until(info.ResetAt).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "RATE_LIMITED", "message": "rate limit exceeded, retry later"},
			})
			return
		}
		c.Next()
	}
}
