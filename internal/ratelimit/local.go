package ratelimit

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/integrationos/gateway/internal/cache"
)

// idle buckets are forgotten after this long; a forgotten bucket starts full
const bucketIdleTTL = 10 * time.Minute

// Local keeps one token bucket per key in this process. Buckets refill at limit
// per Window and burst up to limit.
type Local struct {
	mu      sync.Mutex
	buckets *cache.Cache[string, *rate.Limiter]
	now     func() time.Time
}

func NewLocal(capacity int) *Local {
	return &Local{
		buckets: cache.New[string, *rate.Limiter](cache.Config{Name: "rate_limit_buckets", Capacity: capacity, TTL: bucketIdleTTL}, nil),
		now:     time.Now,
	}
}

func (l *Local) Allow(_ context.Context, key string, limit int) Decision {
	if limit <= 0 {
		return unlimited()
	}
	bucket := l.bucket(key + "#" + strconv.Itoa(limit), limit)

	now := l.now()
	allowed := bucket.AllowN(now, 1)
	tokens := bucket.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))
	missing := float64(limit) - tokens
	reset := now.Add(time.Duration(missing / float64(bucket.Limit()) * float64(time.Second)))
	return Decision{Allowed: allowed, Limit: limit, Remaining: remaining, ResetAt: reset}
}

func (l *Local) bucket(key string, limit int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(float64(limit)/Window.Seconds()), limit)
	}
	// refresh expiry so an active key is not dropped as idle
	l.buckets.Add(key, bucket)
	return bucket
}

func (l *Local) Close() error {
	return nil
}

var _ Limiter = (*Local)(nil)
