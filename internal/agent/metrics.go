package agent

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsCollector exposes the finger-cache router's stats (spec.md §4.6)
// as prometheus gauges, collected on scrape rather than mirrored into a
// second set of counters — internal/fingercache.Stats stays the single
// source of truth, matching internal/coordinator's private-registry
// pattern so an agent and a coordinator can run in the same test process
// without a duplicate-registration panic on the global registerer.
type metricsCollector struct {
	agent *Agent

	localRequests     *prometheus.Desc
	forwardedRequests *prometheus.Desc
	cacheHits         *prometheus.Desc
	cacheMisses       *prometheus.Desc
	dhtLookups        *prometheus.Desc
	httpLookups       *prometheus.Desc
	failedRequests    *prometheus.Desc
	cacheSize         *prometheus.Desc
}

func newMetricsCollector(a *Agent) *metricsCollector {
	return &metricsCollector{
		agent:             a,
		localRequests:     prometheus.NewDesc("fabric_worker_local_requests_total", "Requests served by a locally-assigned service.", nil, nil),
		forwardedRequests: prometheus.NewDesc("fabric_worker_forwarded_requests_total", "Requests forwarded to a peer worker.", nil, nil),
		cacheHits:         prometheus.NewDesc("fabric_worker_cache_hits_total", "Finger-cache hits.", nil, nil),
		cacheMisses:       prometheus.NewDesc("fabric_worker_cache_misses_total", "Finger-cache misses.", nil, nil),
		dhtLookups:        prometheus.NewDesc("fabric_worker_dht_lookups_total", "DHT discovery attempts.", nil, nil),
		httpLookups:       prometheus.NewDesc("fabric_worker_http_lookups_total", "Coordinator HTTP discovery fallbacks.", nil, nil),
		failedRequests:    prometheus.NewDesc("fabric_worker_failed_requests_total", "Requests that could not be served locally or by any discovered peer.", nil, nil),
		cacheSize:         prometheus.NewDesc("fabric_worker_cache_size", "Entries currently held in the finger-cache.", nil, nil),
	}
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.localRequests
	ch <- c.forwardedRequests
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.dhtLookups
	ch <- c.httpLookups
	ch <- c.failedRequests
	ch <- c.cacheSize
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	router := c.agent.Router()
	if router == nil {
		return
	}
	snap := router.Stats()
	ch <- prometheus.MustNewConstMetric(c.localRequests, prometheus.CounterValue, float64(snap.LocalRequests))
	ch <- prometheus.MustNewConstMetric(c.forwardedRequests, prometheus.CounterValue, float64(snap.ForwardedRequests))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(snap.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(snap.CacheMisses))
	ch <- prometheus.MustNewConstMetric(c.dhtLookups, prometheus.CounterValue, float64(snap.DHTLookups))
	ch <- prometheus.MustNewConstMetric(c.httpLookups, prometheus.CounterValue, float64(snap.HTTPLookups))
	ch <- prometheus.MustNewConstMetric(c.failedRequests, prometheus.CounterValue, float64(snap.FailedRequests))
	ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(snap.CacheSize))
}

func newMetricsHandler(a *Agent) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newMetricsCollector(a))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
