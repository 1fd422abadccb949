package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/collab-messenger/relay/internal/infra/cache"
	"golang.org/x/time/rate"
)

type LimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Limiter counts requests per key in redis using a one-minute INCR
// window. When redis is unavailable it falls back to in-process token
// buckets, which is good enough for a single node.
type Limiter struct {
	cache      *cache.Cache
	enabled    bool
	limits     map[string]LimitConfig
	localCache map[string]*rate.Limiter

	mu          sync.RWMutex
	cleanupDone chan struct{}
}

func NewLimiter(c *cache.Cache, requestsPerMinute, burst int, enabled bool) *Limiter {
	l := &Limiter{
		cache:   c,
		enabled: enabled,
		limits: map[string]LimitConfig{
			"default": {
				RequestsPerMinute: requestsPerMinute,
				Burst:             burst,
			},
			"message": {
				RequestsPerMinute: 120,
				Burst:             20,
			},
			"search": {
				RequestsPerMinute: 30,
				Burst:             5,
			},
		},
		localCache:  make(map[string]*rate.Limiter),
		cleanupDone: make(chan struct{}),
	}

	if enabled {
		go l.cleanup()
	}
	return l
}

// Allow checks the limit for key. The key's prefix before the first ':'
// selects which limit applies.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if !l.enabled {
		return true, nil
	}

	config := l.limits["default"]
	for limitType, cfg := range l.limits {
		if limitType != "default" && len(key) > len(limitType) && key[:len(limitType)] == limitType && key[len(limitType)] == ':' {
			config = cfg
			break
		}
	}

	if l.cache != nil {
		return l.allowRedis(ctx, key, config)
	}
	return l.allowLocal(key, config), nil
}

func (l *Limiter) allowLocal(key string, config LimitConfig) bool {
	l.mu.Lock()
	limiter, exists := l.localCache[key]
	if !exists {
		limit := rate.Limit(float64(config.RequestsPerMinute) / 60.0)
		limiter = rate.NewLimiter(limit, config.Burst)
		l.localCache[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

func (l *Limiter) allowRedis(ctx context.Context, key string, config LimitConfig) (bool, error) {
	cacheKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.cache.Incr(ctx, cacheKey)
	if err != nil {
		return l.allowLocal(key, config), nil
	}
	if count == 1 {
		_ = l.cache.Expire(ctx, cacheKey, time.Minute)
	}

	return count <= int64(config.RequestsPerMinute), nil
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.localCache, key)
	l.mu.Unlock()

	if l.cache != nil {
		return l.cache.Delete(ctx, fmt.Sprintf("ratelimit:%s", key))
	}
	return nil
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.localCache = make(map[string]*rate.Limiter)
			l.mu.Unlock()
		case <-l.cleanupDone:
			return
		}
	}
}

func (l *Limiter) Close() {
	close(l.cleanupDone)
}
