package cache

import (
	"context"
	"time"
)

// AsidePattern wraps Cache with a read-through loader. Load failures are
// returned to the caller; set failures are ignored so a flaky cache never
// breaks reads.
type AsidePattern struct {
	cache    *Cache
	onLookup func(hit bool)
}

func NewAsidePattern(cache *Cache) *AsidePattern {
	return &AsidePattern{cache: cache}
}

// OnLookup registers a hit/miss observer. Used for metrics; must not block.
func (a *AsidePattern) OnLookup(fn func(hit bool)) {
	a.onLookup = fn
}

func (a *AsidePattern) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := a.cache.Get(ctx, key, &result)
	if a.onLookup != nil {
		a.onLookup(err == nil)
	}
	if err == nil {
		return result, nil
	}

	if err != ErrCacheMiss {
		return nil, err
	}

	result, err = loader()
	if err != nil {
		return nil, err
	}

	_ = a.cache.Set(ctx, key, result, ttl)
	return result, nil
}

func (a *AsidePattern) Invalidate(ctx context.Context, keys ...string) error {
	return a.cache.Delete(ctx, keys...)
}
