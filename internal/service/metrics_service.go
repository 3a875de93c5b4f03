package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	enrollmentsTotal   *prometheus.CounterVec
	certificatesTotal  prometheus.Counter
	renderDuration     prometheus.Histogram
	artifactsCleaned   prometheus.Counter
	catalogCacheHits   prometheus.Counter
	catalogCacheMisses prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	enrollmentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollments_total",
		Help: "Enrollment operations by outcome",
	}, []string{"outcome"})

	certificatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certificates_issued_total",
		Help: "Total certificates issued",
	})

	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_render_duration_seconds",
		Help:    "Duration of certificate PDF rendering",
		Buckets: prometheus.DefBuckets,
	})

	artifactsCleaned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "artifacts_cleaned_total",
		Help: "Total artifact files removed by cleanup",
	})

	catalogCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Total catalog cache hits",
	})

	catalogCacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Total catalog cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, enrollmentsTotal, certificatesTotal,
		renderDuration, artifactsCleaned, catalogCacheHits, catalogCacheMisses, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		enrollmentsTotal:   enrollmentsTotal,
		certificatesTotal:  certificatesTotal,
		renderDuration:     renderDuration,
		artifactsCleaned:   artifactsCleaned,
		catalogCacheHits:   catalogCacheHits,
		catalogCacheMisses: catalogCacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records a completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveEnrollment records an enrollment attempt outcome.
func (s *MetricsService) ObserveEnrollment(outcome string) {
	s.enrollmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCertificateIssued increments the issued certificate counter.
func (s *MetricsService) ObserveCertificateIssued() {
	s.certificatesTotal.Inc()
}

// ObserveRender records how long a PDF render took.
func (s *MetricsService) ObserveRender(duration time.Duration) {
	s.renderDuration.Observe(duration.Seconds())
}

// ObserveArtifactsCleaned adds removed files to the cleanup counter.
func (s *MetricsService) ObserveArtifactsCleaned(count int) {
	s.artifactsCleaned.Add(float64(count))
}

// ObserveCatalogCache records a catalog cache lookup.
func (s *MetricsService) ObserveCatalogCache(hit bool) {
	if hit {
		s.catalogCacheHits.Inc()
		return
	}
	s.catalogCacheMisses.Inc()
}
