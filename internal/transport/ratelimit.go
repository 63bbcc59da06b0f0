package transport

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
)

// cleanupIdleDuration matches the teacher's ratelimit.go idle-bucket sweep.
const cleanupIdleDuration = 10 * time.Minute

type subjectBucket struct {
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// RateLimiter is a token bucket keyed by whatever subject keyFunc extracts
// from a request — distinct from internal/wallet's per-agent withdrawal
// rolling window, which counts withdrawals, not requests. The public
// surface is throttled per source IP, since an unauthenticated caller has
// no other identity to key on; the money-moving surface is throttled per
// agent instead, once AuthMiddleware has resolved one, so one agent can't
// dodge the limit by rotating IPs and a shared NAT can't starve everyone
// behind it.
type RateLimiter struct {
	rate    float64
	burst   float64
	keyFunc func(*gin.Context) string
	mu      sync.Mutex
	buckets map[string]*subjectBucket
}

// NewRateLimiter allows ratePerMin requests per minute per subject, with a
// burst capacity of burst requests. keyFunc extracts the subject to key the
// bucket on; byIP and byAgent below are the two subjects this module uses.
func NewRateLimiter(ratePerMin, burst int, keyFunc func(*gin.Context) string) *RateLimiter {
	rl := &RateLimiter{
		rate:    float64(ratePerMin) / 60.0,
		burst:   float64(burst),
		keyFunc: keyFunc,
		buckets: make(map[string]*subjectBucket),
	}
	go rl.cleanupLoop()
	return rl
}

// byIP keys the bucket on the caller's source IP — used ahead of
// AuthMiddleware, where no agent identity exists yet.
func byIP(c *gin.Context) string { return "ip:" + c.ClientIP() }

// byAgent keys the bucket on the authenticated agent, falling back to the
// source IP if AuthMiddleware hasn't run for this route.
func byAgent(c *gin.Context) string {
	if a, ok := callerAgent(c); ok {
		return "agent:" + a.ID.String()
	}
	return byIP(c)
}

func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &subjectBucket{tokens: rl.burst}
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastSeen).Seconds()
	bucket.tokens += elapsed * rl.rate
	if bucket.tokens > rl.burst {
		bucket.tokens = rl.burst
	}
	bucket.lastSeen = now

	if bucket.tokens >= 1.0 {
		bucket.tokens--
		return true, 0
	}

	retryAfter := time.Duration((1.0-bucket.tokens)/rl.rate*1000) * time.Millisecond
	return false, retryAfter
}

// Middleware returns a Gin handler that enforces the rate limit, reporting
// a throttled request the same way every other domain error is reported
// (clawerr.RateLimited), rather than inventing a one-off JSON shape.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.keyFunc(c)
		allowed, retryAfter := rl.allow(key)
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			writeClawErr(c, clawerr.New(clawerr.RateLimited, "too many requests, retry after %s", retryAfter))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for key, b := range rl.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
