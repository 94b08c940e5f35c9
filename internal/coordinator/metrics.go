package coordinator

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the coordinator's prometheus instrumentation on a
// private registry, so multiple Servers can coexist in the same process
// (as happens in tests) without a duplicate-registration panic on the
// global default registerer.
type metrics struct {
	reg              *prometheus.Registry
	registrations    prometheus.Counter
	proxySuccesses   *prometheus.CounterVec
	proxyFailures    *prometheus.CounterVec
	workersTracked   prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		reg: reg,
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fabric_coordinator_registrations_total",
			Help: "Total number of worker registration requests accepted.",
		}),
		proxySuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabric_coordinator_proxy_success_total",
			Help: "Reverse-proxy attempts that reached a worker and got a non-5xx response.",
		}, []string{"service"}),
		proxyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabric_coordinator_proxy_failure_total",
			Help: "Reverse-proxy attempts that failed to connect or got a 5xx response.",
		}, []string{"service"}),
		workersTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fabric_coordinator_workers_tracked",
			Help: "Number of non-stale workers currently in the registry.",
		}),
	}

	reg.MustRegister(m.registrations, m.proxySuccesses, m.proxyFailures, m.workersTracked)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
