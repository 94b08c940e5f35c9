package fingercache

import (
	"sync"
	"time"

	"github.com/dreamware/fabric/internal/wire"
)

// cacheTTL bounds how long a cached peer choice is trusted before the
// router falls through to DHT/HTTP discovery again (spec invariant:
// finger-cache never returns an entry older than 60s).
const cacheTTL = 60 * time.Second

type cacheEntry struct {
	worker   wire.WorkerInfo
	cachedAt time.Time
}

// peerCache is a per-router, per-service TTL cache of the last chosen
// peer worker. Shape follows internal/shard's map+mutex pattern.
type peerCache struct {
	entries map[string]cacheEntry
	mu      sync.Mutex
}

func newPeerCache() *peerCache {
	return &peerCache{entries: make(map[string]cacheEntry)}
}

func (c *peerCache) get(service string, now time.Time) (wire.WorkerInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[service]
	if !ok || now.Sub(e.cachedAt) >= cacheTTL {
		return wire.WorkerInfo{}, false
	}
	return e.worker, true
}

func (c *peerCache) set(service string, w wire.WorkerInfo, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[service] = cacheEntry{worker: w, cachedAt: now}
}

func (c *peerCache) invalidate(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, service)
}

func (c *peerCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
