// Package metrics exposes Prometheus collectors for the lookup gateway:
// HTTP request counters and latencies, and per-cache lifecycle events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sbc-om/sbc-sub007/cache/ttl"
)

// Registry owns a private Prometheus registry so that separate instances
// (tests, multiple servers) never collide on registration.
type Registry struct {
	reg             *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheEvents     *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "The total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "The HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_events_total",
				Help: "Cache lifecycle events by cache name and event (hit, miss, eviction, expire)",
			},
			[]string{"cache", "event"},
		),
	}
	r.reg.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.cacheEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRequest records one finished HTTP request.
func (r *Registry) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	r.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// Cache returns a ttl.Metrics hook that counts events under name.
func (r *Registry) Cache(name string) ttl.Metrics {
	return cacheMetrics{
		hit:      r.cacheEvents.WithLabelValues(name, "hit"),
		miss:     r.cacheEvents.WithLabelValues(name, "miss"),
		eviction: r.cacheEvents.WithLabelValues(name, "eviction"),
		expire:   r.cacheEvents.WithLabelValues(name, "expire"),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

type cacheMetrics struct {
	hit, miss, eviction, expire prometheus.Counter
}

func (m cacheMetrics) Hit()      { m.hit.Inc() }
func (m cacheMetrics) Miss()     { m.miss.Inc() }
func (m cacheMetrics) Eviction() { m.eviction.Inc() }
func (m cacheMetrics) Expire()   { m.expire.Inc() }
