package fingercache

import "sync/atomic"

// Stats holds the router's cumulative routing-decision counters.
// Grounded on internal/shard's OperationStats: plain uint64 fields
// updated with atomic.AddUint64, read with atomic.LoadUint64, never
// reset for the life of the process.
type Stats struct {
	LocalRequests     uint64
	ForwardedRequests uint64
	CacheHits         uint64
	CacheMisses       uint64
	DHTLookups        uint64
	HTTPLookups       uint64
	FailedRequests    uint64
}

// Snapshot is the JSON shape exposed on GET /stats.
type Snapshot struct {
	LocalRequests     uint64  `json:"local_requests"`
	ForwardedRequests uint64  `json:"forwarded_requests"`
	CacheHits         uint64  `json:"cache_hits"`
	CacheMisses       uint64  `json:"cache_misses"`
	DHTLookups        uint64  `json:"dht_lookups"`
	HTTPLookups       uint64  `json:"http_lookups"`
	FailedRequests    uint64  `json:"failed_requests"`
	CacheSize         int     `json:"cache_size"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
}

func (s *Stats) incLocal()     { atomic.AddUint64(&s.LocalRequests, 1) }
func (s *Stats) incForwarded() { atomic.AddUint64(&s.ForwardedRequests, 1) }
func (s *Stats) incCacheHit()  { atomic.AddUint64(&s.CacheHits, 1) }
func (s *Stats) incCacheMiss() { atomic.AddUint64(&s.CacheMisses, 1) }
func (s *Stats) incDHT()       { atomic.AddUint64(&s.DHTLookups, 1) }
func (s *Stats) incHTTP()      { atomic.AddUint64(&s.HTTPLookups, 1) }
func (s *Stats) incFailed()    { atomic.AddUint64(&s.FailedRequests, 1) }

func (s *Stats) snapshot(cacheSize int) Snapshot {
	hits := atomic.LoadUint64(&s.CacheHits)
	misses := atomic.LoadUint64(&s.CacheMisses)
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Snapshot{
		LocalRequests:     atomic.LoadUint64(&s.LocalRequests),
		ForwardedRequests: atomic.LoadUint64(&s.ForwardedRequests),
		CacheHits:         hits,
		CacheMisses:       misses,
		DHTLookups:        atomic.LoadUint64(&s.DHTLookups),
		HTTPLookups:       atomic.LoadUint64(&s.HTTPLookups),
		FailedRequests:    atomic.LoadUint64(&s.FailedRequests),
		CacheSize:         cacheSize,
		CacheHitRate:      hitRate,
	}
}
