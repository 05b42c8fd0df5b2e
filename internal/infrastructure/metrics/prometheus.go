package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	// Prometheus metrics
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheHitRate   prometheus.Gauge
	cacheKeys      prometheus.Gauge
	cacheEvictions prometheus.Counter
	decisions      *prometheus.CounterVec
	grpcRequests   *prometheus.CounterVec
	grpcDuration   *prometheus.HistogramVec
	grpcErrors     *prometheus.CounterVec
	reconcile      *prometheus.GaugeVec

	// Cache totals already pushed to the counters; Update adds only the
	// delta since the previous call.
	prevCache CacheMetrics
}

// NewPrometheusExporter creates a Prometheus exporter with its metrics
// registered on reg. Pass prometheus.DefaultRegisterer for the registry
// served by promhttp.Handler.
func NewPrometheusExporter(reg prometheus.Registerer, collector *Collector) *PrometheusExporter {
	factory := promauto.With(reg)
	return &PrometheusExporter{
		collector: collector,
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "tobira_session_cache_hits_total",
			Help: "Total number of cache hits for resolved permission sets",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "tobira_session_cache_misses_total",
			Help: "Total number of cache misses for resolved permission sets",
		}),
		cacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tobira_session_cache_hit_rate",
			Help: "Current session cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tobira_session_cache_keys_current",
			Help: "Current number of entries in the session cache",
		}),
		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tobira_session_cache_evictions_total",
			Help: "Total number of session cache evictions due to capacity limits",
		}),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tobira_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"outcome"},
		),
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tobira_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tobira_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		grpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tobira_grpc_errors_total",
				Help: "Total number of gRPC errors",
			},
			[]string{"method"},
		),
		reconcile: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tobira_reconcile_changes",
				Help: "Changes applied by the most recent catalog reconciliation",
			},
			[]string{"kind"},
		),
	}
}

// Update pushes collector state into Prometheus. Gauges take the current
// value, counters take the delta since the previous call.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.cacheHits.Add(float64(cacheMetrics.Hits - e.prevCache.Hits))
	e.cacheMisses.Add(float64(cacheMetrics.Misses - e.prevCache.Misses))
	e.cacheEvictions.Add(float64(cacheMetrics.Evictions - e.prevCache.Evictions))
	e.prevCache = *cacheMetrics
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.grpcRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(method string) {
	e.grpcErrors.WithLabelValues(method).Inc()
}

// RecordDecision records an authorization decision outcome.
func (e *PrometheusExporter) RecordDecision(allowed bool) {
	if allowed {
		e.decisions.WithLabelValues("allow").Inc()
	} else {
		e.decisions.WithLabelValues("deny").Inc()
	}
}

// RecordReconcile records the change counts of a reconciliation run.
func (e *PrometheusExporter) RecordReconcile(permissionsCreated, permissionsUpdated, grantsCreated, pruned int) {
	e.reconcile.WithLabelValues("permissions_created").Set(float64(permissionsCreated))
	e.reconcile.WithLabelValues("permissions_updated").Set(float64(permissionsUpdated))
	e.reconcile.WithLabelValues("grants_created").Set(float64(grantsCreated))
	e.reconcile.WithLabelValues("pruned").Set(float64(pruned))
}
