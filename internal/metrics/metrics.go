// Package metrics exposes Prometheus counters for the translation pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skill_translator"

type Metrics struct {
	registry *prometheus.Registry

	documents        *prometheus.CounterVec
	documentDuration prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerDuration prometheus.Histogram
	permitsInUse     prometheus.Gauge
	batchItems       *prometheus.CounterVec
	purged           prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// New creates the metrics on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by outcome (cached, translated or an error kind)",
		}, []string{"outcome"}),
		documentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Wall time of uncached document translations",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups, by result (hit, miss or error)",
		}, []string{"result"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Provider call attempts, by result",
		}, []string{"result"}),
		providerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Duration of single provider call attempts",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		permitsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "permits_in_use",
			Help:      "Provider call permits currently held",
		}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items, by final state",
		}, []string{"state"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "purged_entries_total",
			Help:      "Cache entries removed by purges",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route and status code",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documents,
		m.documentDuration,
		m.cacheLookups,
		m.providerCalls,
		m.providerDuration,
		m.permitsInUse,
		m.batchItems,
		m.purged,
		m.httpRequests,
	)
	return m
}

// Registry is the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DocumentDone(outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDocument(d time.Duration) {
	if m == nil {
		return
	}
	m.documentDuration.Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ProviderCall(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(result).Inc()
	m.providerDuration.Observe(d.Seconds())
}

// PermitAcquired and PermitReleased track the provider permit pool.
func (m *Metrics) PermitAcquired() {
	if m == nil {
		return
	}
	m.permitsInUse.Inc()
}

func (m *Metrics) PermitReleased() {
	if m == nil {
		return
	}
	m.permitsInUse.Dec()
}

func (m *Metrics) BatchItem(state string) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(state).Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusText(code)).Inc()
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
