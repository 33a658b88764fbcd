// Package metrics provides Prometheus metrics for the echochamber service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ratioBuckets cover values in [0,1] such as echo strength and affinity.
var ratioBuckets = []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0} //nolint:gochecknoglobals // fixed bucket layout

// Manager owns every Prometheus collector for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ingestion
	eventsIngested  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	eventsDropped   *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Attraction graph
	graphEdges        prometheus.Gauge
	graphActors       prometheus.Gauge
	graphDirtyEdges   prometheus.Gauge
	edgeApplies       prometheus.Counter
	edgeRemovals      *prometheus.CounterVec
	identityTransfers prometheus.Counter

	// Decay
	decaySweeps        prometheus.Counter
	decaySweepDuration prometheus.Histogram

	// Durable storage bridge
	flushBatches     prometheus.Counter
	flushEdges       prometheus.Counter
	flushErrors      prometheus.Counter
	flushLatency     prometheus.Histogram
	loadErrors       prometheus.Counter
	rehydratedEdges  prometheus.Gauge
	changesMerged    prometheus.Counter
	changefeedErrors prometheus.Counter

	// Read paths
	rankRequests       prometheus.Counter
	rankLatency        prometheus.Histogram
	echoStrength       prometheus.Histogram
	clusterTransitions *prometheus.CounterVec
	clusterMembers     *prometheus.GaugeVec

	// Simulation
	simulatedActors *prometheus.GaugeVec
	driftersSpawned prometheus.Counter
	driftersPurged  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Errors by component
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
	systemCPUPercent     prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served on /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "echochamber",
		subsystem:        "graph",
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

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.eventsIngested = m.counterVec("events_ingested_total", "Events applied to the attraction graph by kind", "kind")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Events rejected as duplicates by event id")
	m.eventsDropped = m.counterVec("events_dropped_total", "Events dropped before mutating the graph by reason", "reason")

	m.queueSize = m.gauge("queue_size", "Current size of the event queue")
	m.queueCapacity = m.gauge("queue_capacity", "Configured capacity of the event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Events enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of ingestion workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-event ingestion latency", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Ingestion failures in workers")

	m.graphEdges = m.gauge("edges", "Attraction edges held in memory")
	m.graphActors = m.gauge("actors", "Actors with at least one outgoing edge")
	m.graphDirtyEdges = m.gauge("dirty_edges", "Edges waiting for the next flush")
	m.edgeApplies = m.counter("edge_applies_total", "Apply calls on the attraction store")
	m.edgeRemovals = m.counterVec("edge_removals_total", "Edges removed from the graph by reason", "reason")
	m.identityTransfers = m.counter("identity_transfers_total", "Identity transfers that moved at least one edge")

	m.decaySweeps = m.counter("decay_sweeps_total", "Completed decay sweeps")
	m.decaySweepDuration = m.histogram("decay_sweep_duration_milliseconds", "Decay sweep duration", m.histogramBuckets)

	m.flushBatches = m.counter("flush_batches_total", "Flush batches written to durable storage")
	m.flushEdges = m.counter("flush_edges_total", "Edges written or deleted by flushes")
	m.flushErrors = m.counter("flush_errors_total", "Failed flush attempts")
	m.flushLatency = m.histogram("flush_latency_milliseconds", "Flush batch latency", m.histogramBuckets)
	m.loadErrors = m.counter("load_errors_total", "Failed rehydration attempts")
	m.rehydratedEdges = m.gauge("rehydrated_edges", "Edges loaded at startup")
	m.changesMerged = m.counter("changefeed_merged_total", "Remote edge changes merged into memory")
	m.changefeedErrors = m.counter("changefeed_errors_total", "Failed change feed polls")

	m.rankRequests = m.counter("rank_requests_total", "Ranking requests served")
	m.rankLatency = m.histogram("rank_latency_milliseconds", "Ranking latency", m.histogramBuckets)
	m.echoStrength = m.histogram("echo_strength", "Echo strength observed while ranking", ratioBuckets)
	m.clusterTransitions = m.counterVec("cluster_transitions_total", "Cluster label changes", "from", "to")
	m.clusterMembers = m.gaugeVec("cluster_members", "Actors currently holding a cluster label", "label")

	m.simulatedActors = m.gaugeVec("simulated_actors", "Live simulated actors by kind", "kind")
	m.driftersSpawned = m.counter("drifters_spawned_total", "Ephemeral drifters spawned")
	m.driftersPurged = m.counter("drifters_purged_total", "Ephemeral drifters purged at expiry")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause", m.histogramBuckets)
	m.systemCPUPercent = m.gauge("system_cpu_percent", "Host CPU utilisation percent")
}

// RecordEventIngested counts an event of kind applied to the graph.
func RecordEventIngested(kind string) { globalManager.eventsIngested.WithLabelValues(kind).Inc() }

// RecordEventDuplicate counts a duplicate event.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordEventDropped counts an event dropped for reason.
func RecordEventDropped(reason string) { globalManager.eventsDropped.WithLabelValues(reason).Inc() }

// UpdateQueueSize sets the queue size gauge.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization gauge.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue counts a successful enqueue.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerActiveCount sets the worker count gauge.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes per-event latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a worker failure.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// UpdateGraphSize sets edge and actor gauges.
func UpdateGraphSize(edges, actors int) {
	globalManager.graphEdges.Set(float64(edges))
	globalManager.graphActors.Set(float64(actors))
}

// UpdateDirtyEdges sets the dirty edge gauge.
func UpdateDirtyEdges(count int) { globalManager.graphDirtyEdges.Set(float64(count)) }

// RecordEdgeApply counts an apply call.
func RecordEdgeApply() { globalManager.edgeApplies.Inc() }

// RecordEdgeRemoval counts an edge removal.
func RecordEdgeRemoval(reason string) { globalManager.edgeRemovals.WithLabelValues(reason).Inc() }

// RecordIdentityTransfer counts an identity transfer.
func RecordIdentityTransfer() { globalManager.identityTransfers.Inc() }

// RecordDecaySweep records one decay sweep and its duration.
func RecordDecaySweep(durationMs float64) {
	globalManager.decaySweeps.Inc()
	globalManager.decaySweepDuration.Observe(durationMs)
}

// RecordFlush records a successful flush of n edges.
func RecordFlush(n int, latencyMs float64) {
	globalManager.flushBatches.Inc()
	globalManager.flushEdges.Add(float64(n))
	globalManager.flushLatency.Observe(latencyMs)
}

// RecordFlushError counts a failed flush.
func RecordFlushError() { globalManager.flushErrors.Inc() }

// RecordLoadError counts a failed rehydration.
func RecordLoadError() { globalManager.loadErrors.Inc() }

// UpdateRehydratedEdges sets the number of edges loaded at startup.
func UpdateRehydratedEdges(n int) { globalManager.rehydratedEdges.Set(float64(n)) }

// RecordChangesMerged counts merged remote changes.
func RecordChangesMerged(n int) { globalManager.changesMerged.Add(float64(n)) }

// RecordChangefeedError counts a failed change feed poll.
func RecordChangefeedError() { globalManager.changefeedErrors.Inc() }

// RecordRank records one ranking request.
func RecordRank(latencyMs, echo float64) {
	globalManager.rankRequests.Inc()
	globalManager.rankLatency.Observe(latencyMs)
	globalManager.echoStrength.Observe(echo)
}

// RecordClusterTransition counts a label change.
func RecordClusterTransition(from, to string) {
	globalManager.clusterTransitions.WithLabelValues(from, to).Inc()
}

// UpdateClusterMembers sets member counts per label. Labels absent from counts are reset to zero.
func UpdateClusterMembers(counts map[string]int) {
	globalManager.clusterMembers.Reset()
	for label, n := range counts {
		globalManager.clusterMembers.WithLabelValues(label).Set(float64(n))
	}
}

// UpdateSimulatedActors sets the live simulated actor count for kind.
func UpdateSimulatedActors(kind string, n int) {
	globalManager.simulatedActors.WithLabelValues(kind).Set(float64(n))
}

// RecordDrifterSpawned counts a spawned drifter.
func RecordDrifterSpawned() { globalManager.driftersSpawned.Inc() }

// RecordDrifterPurged counts a purged drifter.
func RecordDrifterPurged() { globalManager.driftersPurged.Inc() }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// UpdateSystemCPUPercent sets host CPU utilisation.
func UpdateSystemCPUPercent(percent float64) { globalManager.systemCPUPercent.Set(percent) }

// GetRegistry returns the registry backing /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
