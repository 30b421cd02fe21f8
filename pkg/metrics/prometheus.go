// Package metrics provides Prometheus metrics for the TAPP matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the matching service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Match store
	storeEntries  prometheus.Gauge
	storeDrafts   prometheus.Gauge
	matchUpserts  prometheus.Counter
	matchRemovals prometheus.Counter

	// Import / export
	imports         *prometheus.CounterVec
	importedMatches prometheus.Counter
	importSkipped   prometheus.Counter
	exports         prometheus.Counter

	// Finalize
	finalizeBatches     *prometheus.CounterVec
	finalizedTotal      prometheus.Counter
	finalizeConflicts   prometheus.Counter
	forbiddenRejections prometheus.Counter
	finalizeLatency     prometheus.Histogram

	// Command loop
	commandQueueSize      prometheus.Gauge
	commandQueueCapacity  prometheus.Gauge
	commandEnqueued       prometheus.Counter
	commandDequeued       prometheus.Counter
	commandEnqueueErrors  *prometheus.CounterVec
	commandApplyLatency   *prometheus.HistogramVec
	commandApplyErrors    *prometheus.CounterVec
	persistenceLatency    *prometheus.HistogramVec
	persistenceErrors     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tapp",
		subsystem:        "matching",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.storeEntries = auto.NewGauge(m.gaugeOpts("store_entries", "Matchable assignments currently held in the store"))
	m.storeDrafts = auto.NewGauge(m.gaugeOpts("store_drafts", "Staged draft matches awaiting finalize"))
	m.matchUpserts = auto.NewCounter(m.counterOpts("match_upserts_total", "Total match upserts applied to the store"))
	m.matchRemovals = auto.NewCounter(m.counterOpts("match_removals_total", "Total matches removed from the store"))

	m.imports = auto.NewCounterVec(m.counterOpts("imports_total", "Import attempts by result"), []string{"result"})
	m.importedMatches = auto.NewCounter(m.counterOpts("imported_matches_total", "Matches applied by imports after diffing"))
	m.importSkipped = auto.NewCounter(m.counterOpts("import_skipped_records_total", "Import records skipped for unresolved references"))
	m.exports = auto.NewCounter(m.counterOpts("exports_total", "Total exports served"))

	m.finalizeBatches = auto.NewCounterVec(m.counterOpts("finalize_batches_total", "Finalize batches by result"), []string{"result"})
	m.finalizedTotal = auto.NewCounter(m.counterOpts("finalized_assignments_total", "Draft matches converted into assignments"))
	m.finalizeConflicts = auto.NewCounter(m.counterOpts("finalize_conflicts_total", "Submitted drafts not confirmed by the persistence layer"))
	m.forbiddenRejections = auto.NewCounter(m.counterOpts("forbidden_rejections_total", "Finalize selections blocked by an active offer"))
	m.finalizeLatency = auto.NewHistogram(m.histogramOpts("finalize_latency_milliseconds", "Finalize batch latency in milliseconds"))

	m.commandQueueSize = auto.NewGauge(m.gaugeOpts("command_queue_size", "Commands waiting to be applied"))
	m.commandQueueCapacity = auto.NewGauge(m.gaugeOpts("command_queue_capacity", "Maximum command queue capacity"))
	m.commandEnqueued = auto.NewCounter(m.counterOpts("commands_enqueued_total", "Commands accepted by the queue"))
	m.commandDequeued = auto.NewCounter(m.counterOpts("commands_dequeued_total", "Commands handed to the dispatcher"))
	m.commandEnqueueErrors = auto.NewCounterVec(m.counterOpts("command_enqueue_errors_total", "Commands rejected by the queue"), []string{"reason"})
	m.commandApplyLatency = auto.NewHistogramVec(m.histogramOpts("command_apply_latency_milliseconds", "Time to apply a command to the store"), []string{"command"})
	m.commandApplyErrors = auto.NewCounterVec(m.counterOpts("command_apply_errors_total", "Commands that returned an error"), []string{"command"})
	m.persistenceLatency = auto.NewHistogramVec(m.histogramOpts("persistence_latency_milliseconds", "Persistence adapter call latency"), []string{"backend", "operation"})
	m.persistenceErrors = auto.NewCounterVec(m.counterOpts("persistence_errors_total", "Persistence adapter errors"), []string{"backend", "operation"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("http_errors_total", "HTTP error responses by endpoint and type"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// UpdateStoreSize sets the entry and draft gauges.
func UpdateStoreSize(entries, drafts int) {
	globalManager.storeEntries.Set(float64(entries))
	globalManager.storeDrafts.Set(float64(drafts))
}

// RecordMatchUpsert increments the upsert counter.
func RecordMatchUpsert() {
	globalManager.matchUpserts.Inc()
}

// RecordMatchRemovals adds n removed matches.
func RecordMatchRemovals(n int) {
	globalManager.matchRemovals.Add(float64(n))
}

// RecordImport counts an import attempt; result is "applied", "empty" or "parse_error".
func RecordImport(result string) {
	globalManager.imports.WithLabelValues(result).Inc()
}

// RecordImportedMatches adds matches applied by an import.
func RecordImportedMatches(n int) {
	globalManager.importedMatches.Add(float64(n))
}

// RecordImportSkipped adds import records skipped for unknown references.
func RecordImportSkipped(n int) {
	globalManager.importSkipped.Add(float64(n))
}

// RecordExport counts an export.
func RecordExport() {
	globalManager.exports.Inc()
}

// RecordFinalizeBatch counts a finalize batch; result is "ok", "partial", "network_error" or "rejected".
func RecordFinalizeBatch(result string) {
	globalManager.finalizeBatches.WithLabelValues(result).Inc()
}

// RecordFinalized adds drafts converted into assignments.
func RecordFinalized(n int) {
	globalManager.finalizedTotal.Add(float64(n))
}

// RecordFinalizeConflicts adds drafts the persistence layer did not confirm.
func RecordFinalizeConflicts(n int) {
	globalManager.finalizeConflicts.Add(float64(n))
}

// RecordForbiddenRejections adds selections blocked by the forbidden guard.
func RecordForbiddenRejections(n int) {
	globalManager.forbiddenRejections.Add(float64(n))
}

// RecordFinalizeLatency records finalize latency in milliseconds.
func RecordFinalizeLatency(latencyMs float64) {
	globalManager.finalizeLatency.Observe(latencyMs)
}

// UpdateCommandQueueSize sets the current command queue length.
func UpdateCommandQueueSize(size int) {
	globalManager.commandQueueSize.Set(float64(size))
}

// UpdateCommandQueueCapacity sets the command queue capacity.
func UpdateCommandQueueCapacity(capacity int) {
	globalManager.commandQueueCapacity.Set(float64(capacity))
}

// RecordCommandEnqueue increments the enqueue counter.
func RecordCommandEnqueue() {
	globalManager.commandEnqueued.Inc()
}

// RecordCommandDequeue increments the dequeue counter.
func RecordCommandDequeue() {
	globalManager.commandDequeued.Inc()
}

// RecordCommandEnqueueError counts a rejected enqueue by reason.
func RecordCommandEnqueueError(reason string) {
	globalManager.commandEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordCommandApply records how long a command took to apply.
func RecordCommandApply(command string, latencyMs float64) {
	globalManager.commandApplyLatency.WithLabelValues(command).Observe(latencyMs)
}

// RecordCommandError counts a command that returned an error.
func RecordCommandError(command string) {
	globalManager.commandApplyErrors.WithLabelValues(command).Inc()
}

// RecordPersistenceLatency records a persistence adapter call.
func RecordPersistenceLatency(backend, operation string, latencyMs float64) {
	globalManager.persistenceLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordPersistenceError counts a failed persistence adapter call.
func RecordPersistenceError(backend, operation string) {
	globalManager.persistenceErrors.WithLabelValues(backend, operation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
