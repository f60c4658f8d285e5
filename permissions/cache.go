package permissions

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the verdict cache when no size is configured.
const DefaultCacheSize = 4096

// verdictCache is a bounded LRU of final check verdicts keyed by the
// original CheckRequest. Only top-level verdicts are cached;
// intermediate sub-checks inside the recursion are not.
//
// Invalidation is coarse: the key space cannot be partially matched by
// object, so both InvalidateObject and Clear purge everything. A cached
// verdict can therefore be stale relative to a fresh write until a
// caller invalidates; Service does this automatically on mutations.
type verdictCache struct {
	lru *lru.Cache[CheckRequest, bool]
}

func newVerdictCache(size int) (*verdictCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[CheckRequest, bool](size)
	if err != nil {
		return nil, err
	}
	return &verdictCache{lru: c}, nil
}

func (c *verdictCache) get(req CheckRequest) (bool, bool) {
	return c.lru.Get(req)
}

func (c *verdictCache) put(req CheckRequest, allowed bool) {
	c.lru.Add(req, allowed)
}

func (c *verdictCache) clear() {
	c.lru.Purge()
}

func (c *verdictCache) len() int {
	return c.lru.Len()
}
