// Package metrics provides Prometheus metrics for the goalpulse engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pressureBuckets spans the bounded [0,100] pressure index.
var pressureBuckets = []float64{10, 20, 30, 36, 40, 50, 60, 66, 70, 80, 90, 100} //nolint:gochecknoglobals // constant bucket layout

// Manager manages all Prometheus metrics for the goalpulse service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Cycle metrics
	cyclesTotal   *prometheus.CounterVec
	cyclesSkipped prometheus.Counter
	cycleDuration prometheus.Histogram
	lastCycleUnix prometheus.Gauge

	// Source metrics
	sourceFetches  *prometheus.CounterVec
	sourceLatency  *prometheus.HistogramVec
	sourceReadings *prometheus.CounterVec

	// Engine metrics
	entitiesFused   prometheus.Counter
	entitiesSkipped prometheus.Counter
	entityFailures  prometheus.Counter
	trackedEntities prometheus.Gauge
	entitiesRetired prometheus.Counter
	pressureIndex   prometheus.Histogram
	entitiesByTier  *prometheus.GaugeVec

	// Alert metrics
	alertsEmitted    *prometheus.CounterVec
	alertsSuppressed prometheus.Counter
	alertsDropped    prometheus.Counter

	// Delivery metrics
	deliveries      *prometheus.CounterVec
	deliveryLatency prometheus.Histogram

	// Queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter

	// Worker metrics
	workerCount prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec

	// System metrics
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
		namespace:        "goalpulse",
		subsystem:        "engine",
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.cyclesTotal = m.counterVec("cycles_total", "Completed polling cycles by outcome", "outcome")
	m.cyclesSkipped = m.counter("cycles_skipped_total", "Cycles rejected because another cycle was still running")
	m.cycleDuration = m.histogram("cycle_duration_milliseconds", "Wall-clock duration of a full cycle", m.histogramBuckets)
	m.lastCycleUnix = m.gauge("last_cycle_unix", "Unix timestamp of the last finished cycle")

	m.sourceFetches = m.counterVec("source_fetches_total", "Source fetch attempts by source and status", "source", "status")
	m.sourceLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "source_fetch_latency_milliseconds",
		Help:        "Source fetch latency in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"source"})
	m.sourceReadings = m.counterVec("source_readings_total", "Readings produced by each source", "source")

	m.entitiesFused = m.counter("entities_fused_total", "Fused readings produced")
	m.entitiesSkipped = m.counter("entities_skipped_total", "Entities skipped because their window carries no signal")
	m.entityFailures = m.counter("entity_failures_total", "Entities whose processing failed inside a cycle")
	m.trackedEntities = m.gauge("tracked_entities", "Entities currently held in the history store")
	m.entitiesRetired = m.counter("entities_retired_total", "Entities retired after inactivity")
	m.pressureIndex = m.histogram("pressure_index", "Distribution of computed pressure index values", pressureBuckets)
	m.entitiesByTier = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "entities_by_tier",
		Help:        "Entities scored into each tier in the last cycle",
		ConstLabels: m.constLabels,
	}, []string{"tier"})

	m.alertsEmitted = m.counterVec("alerts_emitted_total", "Alerts emitted by tier", "tier")
	m.alertsSuppressed = m.counter("alerts_suppressed_total", "Decisions suppressed inside the suppression window")
	m.alertsDropped = m.counter("alerts_dropped_total", "Emitted alerts dropped because the delivery queue was full")

	m.deliveries = m.counterVec("deliveries_total", "Alert deliveries by notifier and status", "notifier", "status")
	m.deliveryLatency = m.histogram("delivery_latency_milliseconds", "Alert delivery latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Alerts waiting for delivery")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum delivery queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Delivery queue utilization ratio (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Alerts enqueued for delivery")
	m.queueDequeued = m.counter("queue_dequeue_total", "Alerts dequeued by delivery workers")

	m.workerCount = m.gauge("worker_count", "Delivery workers running")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Cycle metrics.

// RecordCycle records a finished cycle with its outcome and duration.
func RecordCycle(outcome string, durationMs float64, finishedUnix int64) {
	globalManager.cyclesTotal.WithLabelValues(outcome).Inc()
	globalManager.cycleDuration.Observe(durationMs)
	globalManager.lastCycleUnix.Set(float64(finishedUnix))
}

// RecordCycleSkipped increments the overlapping-cycle counter.
func RecordCycleSkipped() {
	globalManager.cyclesSkipped.Inc()
}

// Source metrics.

// RecordSourceFetch records one source fetch attempt.
func RecordSourceFetch(source, status string, latencyMs float64, readings int) {
	globalManager.sourceFetches.WithLabelValues(source, status).Inc()
	globalManager.sourceLatency.WithLabelValues(source).Observe(latencyMs)
	if readings > 0 {
		globalManager.sourceReadings.WithLabelValues(source).Add(float64(readings))
	}
}

// Engine metrics.

// RecordEntityFused increments the fused readings counter.
func RecordEntityFused() {
	globalManager.entitiesFused.Inc()
}

// RecordEntitySkipped increments the no-signal skip counter.
func RecordEntitySkipped() {
	globalManager.entitiesSkipped.Inc()
}

// RecordEntityFailure increments the per-entity failure counter.
func RecordEntityFailure() {
	globalManager.entityFailures.Inc()
}

// UpdateTrackedEntities sets the number of entities in the history store.
func UpdateTrackedEntities(count int) {
	globalManager.trackedEntities.Set(float64(count))
}

// RecordEntitiesRetired adds to the retired entities counter.
func RecordEntitiesRetired(count int) {
	globalManager.entitiesRetired.Add(float64(count))
}

// ObservePressureIndex records one computed index value.
func ObservePressureIndex(value float64) {
	globalManager.pressureIndex.Observe(value)
}

// UpdateEntitiesByTier sets the per-tier entity gauges.
func UpdateEntitiesByTier(counts map[string]int) {
	for tier, n := range counts {
		globalManager.entitiesByTier.WithLabelValues(tier).Set(float64(n))
	}
}

// Alert metrics.

// RecordAlertEmitted increments the emitted alerts counter for tier.
func RecordAlertEmitted(tier string) {
	globalManager.alertsEmitted.WithLabelValues(tier).Inc()
}

// RecordAlertSuppressed increments the suppressed decisions counter.
func RecordAlertSuppressed() {
	globalManager.alertsSuppressed.Inc()
}

// RecordAlertDropped increments the dropped alerts counter.
func RecordAlertDropped() {
	globalManager.alertsDropped.Inc()
}

// Delivery metrics.

// RecordDelivery records one notifier delivery attempt.
func RecordDelivery(notifier, status string, latencyMs float64) {
	globalManager.deliveries.WithLabelValues(notifier, status).Inc()
	globalManager.deliveryLatency.Observe(latencyMs)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

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
