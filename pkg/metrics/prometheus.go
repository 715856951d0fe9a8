// Package metrics provides Prometheus metrics for the enrichment pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Enrichment run metrics
	itemsProcessed  *prometheus.CounterVec // by provider and result
	providerLatency *prometheus.HistogramVec
	batchesDone     prometheus.Counter
	runProgress     prometheus.Gauge
	workerCount     prometheus.Gauge

	// Checkpoint metrics
	checkpointsSaved  prometheus.Counter
	checkpointErrors  prometheus.Counter
	outcomesDiscarded prometheus.Counter

	// Merge metrics
	mergedRows prometheus.Gauge

	// Delta monitor metrics
	monitorChecks  prometheus.Counter
	monitorUpdates prometheus.Counter
	refreshSignals prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cadenza",
		subsystem:        "enrich",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.itemsProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "items_processed_total",
		Help:      "Total catalog items processed, labeled by provider and result",
	}, []string{"provider", "result"})

	m.providerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_call_latency_milliseconds",
		Help:      "Histogram of provider call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"provider"})

	m.batchesDone = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_completed_total",
		Help:      "Total batches fully processed and checkpointed",
	})

	m.runProgress = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_progress_ratio",
		Help:      "Fraction of the current run's catalog items processed",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of enrichment workers in the current run",
	})

	m.checkpointsSaved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkpoints_saved_total",
		Help:      "Total checkpoint files written",
	})

	m.checkpointErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkpoint_errors_total",
		Help:      "Total checkpoint write or compaction failures",
	})

	m.outcomesDiscarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "outcomes_discarded_total",
		Help:      "Outcomes dropped because they were past the contiguous checkpoint boundary at stop",
	})

	m.mergedRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "merged_rows",
		Help:      "Rows in the canonical dataset after the last merge",
	})

	m.monitorChecks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "monitor",
		Name:      "checks_total",
		Help:      "Total delta monitor source checks",
	})

	m.monitorUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "monitor",
		Name:      "updates_total",
		Help:      "Total delta monitor checks that observed source growth",
	})

	m.refreshSignals = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "monitor",
		Name:      "refresh_signals_total",
		Help:      "Update events that crossed a refresh threshold",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint"})
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler returns an HTTP handler serving the global registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// Package-level helpers delegating to the global manager.

// RecordItemProcessed counts one processed catalog item.
// result is "success" or the provider failure kind.
func RecordItemProcessed(provider, result string) {
	globalManager.itemsProcessed.WithLabelValues(provider, result).Inc()
}

// RecordProviderLatency records one provider call's latency in milliseconds.
func RecordProviderLatency(provider string, ms float64) {
	globalManager.providerLatency.WithLabelValues(provider).Observe(ms)
}

// RecordBatchCompleted counts one fully checkpointed batch.
func RecordBatchCompleted() { globalManager.batchesDone.Inc() }

// UpdateRunProgress sets the processed fraction of the current run.
func UpdateRunProgress(ratio float64) { globalManager.runProgress.Set(ratio) }

// UpdateWorkerCount sets the number of active enrichment workers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// RecordCheckpointSaved counts one checkpoint file written.
func RecordCheckpointSaved() { globalManager.checkpointsSaved.Inc() }

// RecordCheckpointError counts one checkpoint write or compaction failure.
func RecordCheckpointError() { globalManager.checkpointErrors.Inc() }

// RecordOutcomesDiscarded counts outcomes dropped at a stop boundary.
func RecordOutcomesDiscarded(n int) { globalManager.outcomesDiscarded.Add(float64(n)) }

// UpdateMergedRows sets the canonical dataset row count after a merge.
func UpdateMergedRows(n int) { globalManager.mergedRows.Set(float64(n)) }

// RecordMonitorCheck counts one delta monitor check.
func RecordMonitorCheck() { globalManager.monitorChecks.Inc() }

// RecordMonitorUpdate counts one check that observed growth.
func RecordMonitorUpdate() { globalManager.monitorUpdates.Inc() }

// RecordRefreshSignal counts one refresh-recommended update event.
func RecordRefreshSignal() { globalManager.refreshSignals.Inc() }

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, status).Inc()
}

// RecordHTTPRequestDuration records one HTTP request's duration in milliseconds.
func RecordHTTPRequestDuration(endpoint string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint).Observe(ms)
}
