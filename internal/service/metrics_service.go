package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Quota actions reported by the denial counter.
const (
	QuotaActionGenerate   = "generate"
	QuotaActionRegenerate = "regenerate"
	QuotaActionDownload   = "download"
	QuotaActionEdit       = "edit"
)

// MetricsService owns the Prometheus registry for HTTP, cache and paper lifecycle instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	papersGenerated prometheus.Counter
	generationFail  prometheus.Counter
	generationTime  prometheus.Histogram
	downloads       prometheus.Counter
	regenerations   prometheus.Counter
	quotaDenials    *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		papersGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papers_generated_total",
			Help: "Papers compiled from a blueprint",
		}),
		generationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paper_generation_failures_total",
			Help: "Blueprint compilations that failed",
		}),
		generationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paper_generation_duration_seconds",
			Help:    "Time spent compiling a blueprint",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paper_downloads_total",
			Help: "Paper downloads that passed the gate",
		}),
		regenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "question_regenerations_total",
			Help: "Single-question regenerations",
		}),
		quotaDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Actions refused by the entitlement gate",
		}, []string{"action"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLookups, m.papersGenerated, m.generationFail,
		m.generationTime, m.downloads, m.regenerations, m.quotaDenials, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry { return m.registry }

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordGeneration records a finished compilation.
func (m *MetricsService) RecordGeneration(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationTime.Observe(duration.Seconds())
	if ok {
		m.papersGenerated.Inc()
		return
	}
	m.generationFail.Inc()
}

// RecordDownload counts a gated download.
func (m *MetricsService) RecordDownload() {
	if m == nil {
		return
	}
	m.downloads.Inc()
}

// RecordRegeneration counts a question regeneration.
func (m *MetricsService) RecordRegeneration() {
	if m == nil {
		return
	}
	m.regenerations.Inc()
}

// RecordQuotaDenial counts an action refused for lack of entitlement.
func (m *MetricsService) RecordQuotaDenial(action string) {
	if m == nil {
		return
	}
	m.quotaDenials.WithLabelValues(action).Inc()
}
