// Package metrics provides Prometheus metrics for the SPMS winner service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the SPMS service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Resolution metrics: what the winner engine produced and why.
	resolutions        *prometheus.CounterVec
	resolutionDuration prometheus.Histogram
	winnersCreated     *prometheus.CounterVec
	categoriesSkipped  *prometheus.CounterVec
	prizeReassignments prometheus.Counter

	// Store metrics.
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Queue metrics for asynchronous resolution jobs.
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Worker metrics.
	workerCount      prometheus.Gauge
	jobsProcessed    *prometheus.CounterVec
	jobLatency       prometheus.Histogram
	closerScheduled  prometheus.Counter
	closerLastRunSec prometheus.Gauge

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics.
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics.
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
		namespace:        "spms",
		subsystem:        "winners",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.resolutions = auto.NewCounterVec(
		m.counterOpts("resolutions_total", "Quarter winner resolution runs by outcome"),
		[]string{"outcome"},
	)
	m.resolutionDuration = auto.NewHistogram(
		m.histogramOpts("resolution_duration_milliseconds", "Duration of a quarter winner resolution run", m.histogramBuckets),
	)
	m.winnersCreated = auto.NewCounterVec(
		m.counterOpts("winners_created_total", "Winner records created by category"),
		[]string{"category"},
	)
	m.categoriesSkipped = auto.NewCounterVec(
		m.counterOpts("categories_skipped_total", "Categories left untouched during resolution, by reason"),
		[]string{"category", "reason"},
	)
	m.prizeReassignments = auto.NewCounter(
		m.counterOpts("prize_reassignments_total", "Winner prize swaps"),
	)

	m.storeQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("store_query_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"op"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Store operation failures"),
		[]string{"op"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Resolution jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum resolution jobs the queue holds"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Resolution jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Resolution jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(
		m.counterOpts("queue_enqueue_errors_total", "Rejected enqueue attempts by reason"),
		[]string{"reason"},
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Resolution workers running"))
	m.jobsProcessed = auto.NewCounterVec(
		m.counterOpts("jobs_processed_total", "Resolution jobs processed by outcome"),
		[]string{"outcome"},
	)
	m.jobLatency = auto.NewHistogram(
		m.histogramOpts("job_latency_milliseconds", "Resolution job processing latency", m.histogramBuckets),
	)
	m.closerScheduled = auto.NewCounter(m.counterOpts("closer_scheduled_total", "Ended quarters scheduled by the closer"))
	m.closerLastRunSec = auto.NewGauge(m.gaugeOpts("closer_last_run_unix", "Unix time of the last closer scan"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by HTTP endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RecordResolution counts a resolution run with its outcome and duration.
func (m *Manager) RecordResolution(outcome string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.resolutionDuration.Observe(durationMs)
}

// RecordWinnerCreated counts a newly persisted winner record.
func (m *Manager) RecordWinnerCreated(category string) {
	if !m.enabled {
		return
	}
	m.winnersCreated.WithLabelValues(category).Inc()
}

// RecordCategorySkipped counts a category the resolver left untouched.
func (m *Manager) RecordCategorySkipped(category, reason string) {
	if !m.enabled {
		return
	}
	m.categoriesSkipped.WithLabelValues(category, reason).Inc()
}

// RecordPrizeReassigned counts a prize swap.
func (m *Manager) RecordPrizeReassigned() {
	if !m.enabled {
		return
	}
	m.prizeReassignments.Inc()
}

// RecordStoreQuery observes one store operation.
func (m *Manager) RecordStoreQuery(op string, latencyMs float64, err error) {
	if !m.enabled {
		return
	}
	m.storeQueryLatency.WithLabelValues(op).Observe(latencyMs)
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// The package-level helpers below forward to the global manager.

// RecordResolution counts a resolution run on the global manager.
func RecordResolution(outcome string, durationMs float64) {
	globalManager.RecordResolution(outcome, durationMs)
}

// RecordWinnerCreated counts a winner record on the global manager.
func RecordWinnerCreated(category string) { globalManager.RecordWinnerCreated(category) }

// RecordCategorySkipped counts a skipped category on the global manager.
func RecordCategorySkipped(category, reason string) {
	globalManager.RecordCategorySkipped(category, reason)
}

// RecordPrizeReassigned counts a prize swap on the global manager.
func RecordPrizeReassigned() { globalManager.RecordPrizeReassigned() }

// RecordStoreQuery observes a store operation on the global manager.
func RecordStoreQuery(op string, latencyMs float64, err error) {
	globalManager.RecordStoreQuery(op, latencyMs, err)
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a delivered job.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordJobProcessed counts a processed job and its latency.
func RecordJobProcessed(outcome string, latencyMs float64) {
	globalManager.jobsProcessed.WithLabelValues(outcome).Inc()
	globalManager.jobLatency.Observe(latencyMs)
}

// RecordCloserRun records a closer scan and how many quarters it scheduled.
func RecordCloserRun(scheduled int) {
	globalManager.closerScheduled.Add(float64(scheduled))
	globalManager.closerLastRunSec.Set(float64(time.Now().Unix()))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records errors by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
