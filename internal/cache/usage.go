package cache

import (
	"context"
	"time"

	"copilot-gateway/internal/core"
)

// UsageLoader fetches the Copilot usage document.
type UsageLoader func(ctx context.Context) ([]byte, error)

// UsageCache keeps the Copilot usage document for a short TTL so that
// dashboards polling /usage do not hit GitHub on every request.
type UsageCache struct {
	store core.Cache
	ttl   time.Duration
}

// NewUsageCache wraps store. A non-positive ttl uses the default.
func NewUsageCache(store core.Cache, ttl time.Duration) *UsageCache {
	if ttl <= 0 {
		ttl = core.UsageCacheTTL
	}
	return &UsageCache{store: store, ttl: ttl}
}

// Fetch returns the cached document, loading it on a miss. The second return
// value reports whether the document came from the cache. Failed loads are
// not cached.
func (u *UsageCache) Fetch(ctx context.Context, load UsageLoader) ([]byte, bool, error) {
	if v, ok := u.store.Get(core.UsageCacheKey); ok {
		if doc, ok := v.([]byte); ok {
			return doc, true, nil
		}
	}

	doc, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	u.store.Set(core.UsageCacheKey, doc, u.ttl)
	return doc, false, nil
}
