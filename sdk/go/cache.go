package ifimgone

import (
	"sync"
	"time"
)

type cachedGrant struct {
	grant     *AccessGrant
	expiresAt time.Time
}

// grantCache caches redeemed grants keyed by the sharing token so
// repeated Access calls do not each consume a token use.
type grantCache struct {
	mu      sync.RWMutex
	entries map[string]cachedGrant
}

func newGrantCache() *grantCache {
	return &grantCache{entries: make(map[string]cachedGrant)}
}

func (c *grantCache) get(token string) (*AccessGrant, bool) {
	c.mu.RLock()
	entry, ok := c.entries[token]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, token)
		c.mu.Unlock()
		return nil, false
	}
	return entry.grant, true
}

func (c *grantCache) set(token string, grant *AccessGrant, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = cachedGrant{grant: grant, expiresAt: time.Now().Add(ttl)}

	// Opportunistic cleanup keeps the map from growing unbounded.
	if len(c.entries) > 1000 {
		now := time.Now()
		for k, v := range c.entries {
			if now.After(v.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
}
