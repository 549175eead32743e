// Package metrics provides Prometheus metrics for the raid statistics service.
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
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Import pipeline
	linesParsed     prometheus.Counter
	raidCandidates  *prometheus.CounterVec
	analyzeDuration prometheus.Histogram
	ignoresAdded    prometheus.Counter
	raidsAccepted   *prometheus.CounterVec
	alertsEmitted   prometheus.Counter

	// Relay ingest
	relayEvents     *prometheus.CounterVec
	relayDuplicates *prometheus.CounterVec
	relayErrors     *prometheus.CounterVec

	// Store
	repositoryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      *prometheus.CounterVec
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "raidstats",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.linesParsed = m.counter("lines_parsed_total", "Lines of pasted text scanned by the parser")
	m.raidCandidates = m.counterVec("raid_candidates_total", "Parsed raid candidates by classification", "status")
	m.analyzeDuration = m.histogram("analyze_duration_milliseconds", "Duration of one analysis pass")
	m.ignoresAdded = m.counter("ignores_added_total", "New ignore-list records")
	m.raidsAccepted = m.counterVec("raids_accepted_total", "Raids written to the accepted record", "source")
	m.alertsEmitted = m.counter("alerts_emitted_total", "Excessive-raid alerts returned by monthly views")

	m.relayEvents = m.counterVec("relay_events_total", "Relay events ingested", "source")
	m.relayDuplicates = m.counterVec("relay_duplicates_total", "Relay events dropped as duplicates", "source")
	m.relayErrors = m.counterVec("relay_errors_total", "Relay consumer errors", "kind")

	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Store operation latency", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "op")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")

	m.queueSize = m.gauge("queue_size", "Relay events waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Relay queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Relay events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Relay events dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Relay ingest workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to ingest one relay event")
	m.workerErrors = m.counter("worker_errors_total", "Relay events that failed to ingest")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "system_gc_pause_time_milliseconds",
		Help:    "GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordLinesParsed adds n scanned lines.
func RecordLinesParsed(n int) {
	globalManager.linesParsed.Add(float64(n))
}

// RecordRaidCandidate counts one classified candidate.
func RecordRaidCandidate(status string) {
	globalManager.raidCandidates.WithLabelValues(status).Inc()
}

// RecordAnalyzeDuration records one analysis pass in milliseconds.
func RecordAnalyzeDuration(ms float64) {
	globalManager.analyzeDuration.Observe(ms)
}

// RecordIgnoreAdded counts a new ignore-list record.
func RecordIgnoreAdded() {
	globalManager.ignoresAdded.Inc()
}

// RecordRaidsAccepted adds n accepted raids of source.
func RecordRaidsAccepted(source string, n int) {
	globalManager.raidsAccepted.WithLabelValues(source).Add(float64(n))
}

// RecordAlertsEmitted adds n alerts.
func RecordAlertsEmitted(n int) {
	globalManager.alertsEmitted.Add(float64(n))
}

// RecordRelayEvent counts an ingested relay event.
func RecordRelayEvent(source string) {
	globalManager.relayEvents.WithLabelValues(source).Inc()
}

// RecordRelayDuplicate counts a dropped duplicate relay event.
func RecordRelayDuplicate(source string) {
	globalManager.relayDuplicates.WithLabelValues(source).Inc()
}

// RecordRelayError counts a relay consumer failure of kind.
func RecordRelayError(kind string) {
	globalManager.relayErrors.WithLabelValues(kind).Inc()
}

// RecordRepositoryLatency records a store operation latency in milliseconds.
func RecordRepositoryLatency(op string, ms float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(ms)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error for a specific endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an enqueue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker latency in milliseconds.
func RecordWorkerProcessingLatency(ms float64) {
	globalManager.workerProcessingLatency.Observe(ms)
}

// RecordWorkerError counts a failed ingest.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
