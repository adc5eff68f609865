// Package metrics provides Prometheus metrics for the regatta scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Event log metrics
	logAppends      prometheus.Counter
	logAppendErrors prometheus.Counter
	logRevokes      prometheus.Counter
	logRevokeErrors prometheus.Counter

	// Analyzer metrics
	analyzerCacheHits       prometheus.Counter
	analyzerCacheMisses     prometheus.Counter
	analyzerComputeDuration prometheus.Histogram

	// Scoring metrics
	scoringComputeDuration prometheus.Histogram
	leaderboardsComputed   prometheus.Counter

	// Tracking pipeline metrics
	fixesProcessed prometheus.Counter
	fixesDuplicate prometheus.Counter
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueEnqueues  prometheus.Counter
	queueDequeues  prometheus.Counter
	queueErrors    prometheus.Counter

	// Worker and store metrics
	workerActive   prometheus.Gauge
	workerDuration prometheus.Histogram
	workerErrors   prometheus.Counter
	trackedFixes   prometheus.Gauge
	storeUpdateMs  prometheus.Histogram
	storeQueryMs   prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "regatta",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.logAppends = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "log_appends_total",
		Help:      "Total number of events appended across all race logs",
	})
	m.logAppendErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "log_append_errors_total",
		Help:      "Total number of rejected appends (creation-time regressions, duplicate ids)",
	})
	m.logRevokes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "log_revokes_total",
		Help:      "Total number of event revocations",
	})
	m.logRevokeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "log_revoke_errors_total",
		Help:      "Total number of rejected revocations (unknown event ids)",
	})

	m.analyzerCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyzer_cache_hits_total",
		Help:      "Analyzer results served from the per-version cache",
	})
	m.analyzerCacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyzer_cache_misses_total",
		Help:      "Analyzer computations triggered by a version change",
	})
	m.analyzerComputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyzer_compute_milliseconds",
		Help:      "Histogram of analyzer derivation time in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.scoringComputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_milliseconds",
		Help:      "Histogram of leaderboard computation time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.leaderboardsComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboards_computed_total",
		Help:      "Total number of leaderboard snapshots computed",
	})

	m.fixesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fixes_processed_total",
		Help:      "Total number of tracking fixes folded into the rank store",
	})
	m.fixesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fixes_duplicate_total",
		Help:      "Total number of duplicate tracking fixes detected",
	})
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the tracking fix queue (backlog indicator)",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the tracking fix queue",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Total number of fixes enqueued",
	})
	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Total number of fixes dequeued",
	})
	m.queueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_errors_total",
		Help:      "Total number of enqueue failures (closed or full queue)",
	})

	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active",
		Help:      "Current number of running fix workers",
	})
	m.workerDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_process_milliseconds",
		Help:      "Histogram of per-fix processing time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of fix processing errors",
	})
	m.trackedFixes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_fixes",
		Help:      "Total number of fixes held in the rank store",
	})
	m.storeUpdateMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_update_milliseconds",
		Help:      "Histogram of rank store write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeQueryMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_milliseconds",
		Help:      "Histogram of rank store query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Package-level helpers recording on the global manager.

// RecordLogAppend counts a successful append.
func RecordLogAppend() { globalManager.logAppends.Inc() }

// RecordLogAppendError counts a rejected append.
func RecordLogAppendError() { globalManager.logAppendErrors.Inc() }

// RecordLogRevoke counts a successful revocation.
func RecordLogRevoke() { globalManager.logRevokes.Inc() }

// RecordLogRevokeError counts a rejected revocation.
func RecordLogRevokeError() { globalManager.logRevokeErrors.Inc() }

// RecordAnalyzerCacheHit counts an analyzer cache hit.
func RecordAnalyzerCacheHit() { globalManager.analyzerCacheHits.Inc() }

// RecordAnalyzerCacheMiss counts an analyzer cache miss.
func RecordAnalyzerCacheMiss() { globalManager.analyzerCacheMisses.Inc() }

// RecordAnalyzerComputeDuration records one derivation's duration.
func RecordAnalyzerComputeDuration(ms float64) { globalManager.analyzerComputeDuration.Observe(ms) }

// RecordScoringComputeDuration records one leaderboard computation's duration.
func RecordScoringComputeDuration(ms float64) { globalManager.scoringComputeDuration.Observe(ms) }

// RecordLeaderboardComputed counts a computed snapshot.
func RecordLeaderboardComputed() { globalManager.leaderboardsComputed.Inc() }

// RecordFixProcessed counts a fix folded into the rank store.
func RecordFixProcessed() { globalManager.fixesProcessed.Inc() }

// RecordFixDuplicate counts a duplicate fix.
func RecordFixDuplicate() { globalManager.fixesDuplicate.Inc() }

// UpdateQueueSize sets the current queue backlog.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the configured queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an enqueued fix.
func RecordQueueEnqueue() { globalManager.queueEnqueues.Inc() }

// RecordQueueDequeue counts a dequeued fix.
func RecordQueueDequeue() { globalManager.queueDequeues.Inc() }

// RecordQueueError counts an enqueue failure.
func RecordQueueError() { globalManager.queueErrors.Inc() }

// UpdateWorkerActive sets the number of running workers.
func UpdateWorkerActive(count int) { globalManager.workerActive.Set(float64(count)) }

// RecordWorkerProcessingLatency records one fix's processing duration.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerDuration.Observe(ms) }

// RecordWorkerError counts a fix processing error.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// UpdateTrackedFixes sets the rank store's fix count.
func UpdateTrackedFixes(count int) { globalManager.trackedFixes.Set(float64(count)) }

// RecordStoreUpdateLatency records a rank store write duration.
func RecordStoreUpdateLatency(ms float64) { globalManager.storeUpdateMs.Observe(ms) }

// RecordStoreQueryLatency records a rank store query duration.
func RecordStoreQueryLatency(ms float64) { globalManager.storeQueryMs.Observe(ms) }

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records one HTTP request's duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// GetRegistry returns the custom registry metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
