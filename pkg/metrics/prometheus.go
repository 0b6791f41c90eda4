// Package metrics provides Prometheus metrics for the matching engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus collectors for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Matching lifecycle
	offersSent       prometheus.Counter
	offerSendErrors  prometheus.Counter
	acceptsWon       prometheus.Counter
	acceptConflicts  prometheus.Counter
	declines         prometheus.Counter
	expiries         prometheus.Counter
	cancellations    prometheus.Counter
	completions      prometheus.Counter
	unknownOffers    prometheus.Counter
	matchRecords     prometheus.Gauge

	// Ranking
	rankingDuration prometheus.Histogram
	rankingErrors   prometheus.Counter
	shortlistSize   prometheus.Histogram
	responderPool   prometheus.Gauge

	// Callback pipeline
	callbacksProcessed  prometheus.Counter
	callbacksDuplicate  prometheus.Counter
	queueSize           prometheus.Gauge
	queueCapacity       prometheus.Gauge
	queueEnqueues       prometheus.Counter
	queueDequeues       prometheus.Counter
	queueEnqueueErrors  prometheus.Counter
	workerCount         prometheus.Gauge
	workerLatency       prometheus.Histogram
	workerErrors        prometheus.Counter

	// Store
	storeShardCount     prometheus.Gauge
	storeTransitionTime prometheus.Histogram
	storeErrors         prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "enmusubi",
		subsystem:        "matching",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus collectors.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.offersSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "offers_sent_total",
		Help: "Total number of offer notifications sent",
	})
	m.offerSendErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "offer_send_errors_total",
		Help: "Total number of offer notifications that failed to send",
	})
	m.acceptsWon = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "accepts_won_total",
		Help: "Total number of accepts that won arbitration",
	})
	m.acceptConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "accept_conflicts_total",
		Help: "Total number of accepts that lost the arbitration race",
	})
	m.declines = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "declines_total",
		Help: "Total number of declines applied",
	})
	m.expiries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "expiries_total",
		Help: "Total number of matches expired",
	})
	m.cancellations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cancellations_total",
		Help: "Total number of matches cancelled",
	})
	m.completions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "completions_total",
		Help: "Total number of matches completed",
	})
	m.unknownOffers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "unknown_offers_total",
		Help: "Total number of callbacks referencing unknown matches or responders",
	})
	m.matchRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "match_records",
		Help: "Number of match records tracked by the store",
	})

	m.rankingDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "ranking_duration_milliseconds",
		Help:    "Histogram of shortlist computation time in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.rankingErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ranking_errors_total",
		Help: "Total number of ranking calls that failed",
	})
	m.shortlistSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "shortlist_size",
		Help:    "Histogram of shortlist lengths produced by the ranker",
		Buckets: []float64{1, 2, 3, 5, 10},
	})
	m.responderPool = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "responder_pool_size",
		Help: "Number of eligible responders at the last snapshot",
	})

	m.callbacksProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "callbacks_processed_total",
		Help: "Total number of accept/decline callbacks applied",
	})
	m.callbacksDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "callbacks_duplicate_total",
		Help: "Total number of duplicate callback deliveries absorbed",
	})
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "callback_queue_size",
		Help: "Current size of the callback queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "callback_queue_capacity",
		Help: "Configured capacity of the callback queue",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "callback_queue_enqueues_total",
		Help: "Total number of callbacks enqueued",
	})
	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "callback_queue_dequeues_total",
		Help: "Total number of callbacks dequeued",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "callback_queue_enqueue_errors_total",
		Help: "Total number of enqueue rejections (backpressure or closed)",
	})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_count",
		Help: "Number of callback workers",
	})
	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "worker_processing_milliseconds",
		Help:    "Histogram of callback processing time in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_errors_total",
		Help: "Total number of callback processing failures",
	})

	m.storeShardCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_shard_count",
		Help: "Number of shards in the match store",
	})
	m.storeTransitionTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_transition_milliseconds",
		Help:    "Histogram of store transition commit time in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_errors_total",
		Help: "Total number of persistence failures",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem,
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem,
			Name:    "http_request_duration_milliseconds",
			Help:    "HTTP request duration in milliseconds",
			Buckets: m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutines",
		Help: "Current number of goroutines",
	})
}

// Package-level helpers against the global manager.

func RecordOfferSent()      { globalManager.offersSent.Inc() }
func RecordOfferSendError() { globalManager.offerSendErrors.Inc() }
func RecordAcceptWin()      { globalManager.acceptsWon.Inc() }
func RecordAcceptConflict() { globalManager.acceptConflicts.Inc() }
func RecordDecline()        { globalManager.declines.Inc() }
func RecordExpiry()         { globalManager.expiries.Inc() }
func RecordCancellation()   { globalManager.cancellations.Inc() }
func RecordCompletion()     { globalManager.completions.Inc() }
func RecordUnknownOffer()   { globalManager.unknownOffers.Inc() }

func UpdateMatchRecords(n int)  { globalManager.matchRecords.Set(float64(n)) }
func UpdateResponderPool(n int) { globalManager.responderPool.Set(float64(n)) }

func RecordRankingDuration(ms float64) { globalManager.rankingDuration.Observe(ms) }
func RecordRankingError()              { globalManager.rankingErrors.Inc() }
func RecordShortlistSize(n int)        { globalManager.shortlistSize.Observe(float64(n)) }

func RecordCallbackProcessed() { globalManager.callbacksProcessed.Inc() }
func RecordCallbackDuplicate() { globalManager.callbacksDuplicate.Inc() }

func UpdateQueueSize(n int)      { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int)  { globalManager.queueCapacity.Set(float64(n)) }
func RecordQueueEnqueue()        { globalManager.queueEnqueues.Inc() }
func RecordQueueDequeue()        { globalManager.queueDequeues.Inc() }
func RecordQueueEnqueueError()   { globalManager.queueEnqueueErrors.Inc() }

func UpdateWorkerCount(n int)                 { globalManager.workerCount.Set(float64(n)) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerLatency.Observe(ms) }
func RecordWorkerError()                      { globalManager.workerErrors.Inc() }

func UpdateStoreShardCount(n int)              { globalManager.storeShardCount.Set(float64(n)) }
func RecordStoreTransitionLatency(ms float64)  { globalManager.storeTransitionTime.Observe(ms) }
func RecordStoreError()                        { globalManager.storeErrors.Inc() }

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutineCount.Set(float64(n)) }

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
