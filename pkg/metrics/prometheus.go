// Package metrics provides Prometheus metrics for the VN club reward engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultLatencyBuckets   = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	defaultReconcileBuckets = []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 120000}
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	metricPrefix     string
	latencyBuckets   []float64
	reconcileBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ledger
	completionsRecorded  *prometheus.CounterVec
	completionsDuplicate prometheus.Counter
	completionsDeleted   prometheus.Counter
	completionsReviewed  prometheus.Counter
	ledgerLatency        *prometheus.HistogramVec

	// Reward calculator
	rewardsComputed *prometheus.CounterVec
	rewardErrors    prometheus.Counter

	// Metadata cache and catalog
	metadataHits         prometheus.Counter
	metadataMisses       prometheus.Counter
	metadataStaleServed  prometheus.Counter
	metadataUpstreamErrs prometheus.Counter
	metadataFetchLatency prometheus.Histogram
	catalogRefreshes     prometheus.Counter
	catalogTitles        prometheus.Gauge

	// Ranking
	leaderboardQueries *prometheus.CounterVec
	leaderboardLatency prometheus.Histogram

	// Tier reconciliation
	reconcileTicks          prometheus.Counter
	reconcileTickDuration   prometheus.Histogram
	reconcileMembers        prometheus.Gauge
	reconcileGrants         prometheus.Counter
	reconcileRevokes        prometheus.Counter
	reconcileMemberFailures prometheus.Counter
	reconcileLastUnix       prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "vnclub",
		subsystem:        "rewards",
		latencyBuckets:   defaultLatencyBuckets,
		reconcileBuckets: defaultReconcileBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.latencyBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.completionsRecorded = m.counterVec("completions_recorded_total",
		"Total number of completion events written to the ledger", "reason")
	m.completionsDuplicate = m.counter("completions_duplicate_total",
		"Total number of completions rejected as duplicates of an earlier (user, title) entry")
	m.completionsDeleted = m.counter("completions_deleted_total",
		"Total number of completion events removed by administrators")
	m.completionsReviewed = m.counter("completions_reviewed_total",
		"Total number of rating/comment corrections applied to existing completions")
	m.ledgerLatency = m.histogramVec("ledger_operation_latency_milliseconds",
		"Ledger operation latency in milliseconds", "operation")

	m.rewardsComputed = m.counterVec("rewards_computed_total",
		"Total number of reward computations by reason", "reason")
	m.rewardErrors = m.counter("reward_errors_total",
		"Total number of reward computations that failed")

	m.metadataHits = m.counter("metadata_cache_hits_total",
		"Metadata lookups served from the cache")
	m.metadataMisses = m.counter("metadata_cache_misses_total",
		"Metadata lookups that required an upstream fetch")
	m.metadataStaleServed = m.counter("metadata_cache_stale_served_total",
		"Expired metadata entries served because the upstream fetch failed")
	m.metadataUpstreamErrs = m.counter("metadata_upstream_errors_total",
		"Upstream bibliographic API failures")
	m.metadataFetchLatency = m.histogram("metadata_fetch_latency_milliseconds",
		"Upstream metadata fetch latency in milliseconds", m.latencyBuckets)
	m.catalogRefreshes = m.counter("catalog_refreshes_total",
		"Number of times the title catalog snapshot was reloaded from storage")
	m.catalogTitles = m.gauge("catalog_titles",
		"Number of titles in the current catalog snapshot")

	m.leaderboardQueries = m.counterVec("leaderboard_queries_total",
		"Leaderboard queries by kind", "kind")
	m.leaderboardLatency = m.histogram("leaderboard_latency_milliseconds",
		"Leaderboard aggregation latency in milliseconds", m.latencyBuckets)

	m.reconcileTicks = m.counter("reconcile_ticks_total",
		"Number of tier reconciliation ticks executed")
	m.reconcileTickDuration = m.histogram("reconcile_tick_duration_milliseconds",
		"Duration of a tier reconciliation tick in milliseconds", m.reconcileBuckets)
	m.reconcileMembers = m.gauge("reconcile_members",
		"Members examined during the last reconciliation tick")
	m.reconcileGrants = m.counter("reconcile_role_grants_total",
		"Tier roles granted by the reconciler")
	m.reconcileRevokes = m.counter("reconcile_role_revokes_total",
		"Tier roles revoked by the reconciler")
	m.reconcileMemberFailures = m.counter("reconcile_member_failures_total",
		"Members whose reconciliation failed and was skipped")
	m.reconcileLastUnix = m.gauge("reconcile_last_tick_unixtime",
		"Unix time of the last completed reconciliation tick")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes",
		"Current memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count",
		"Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordCompletion increments the recorded completions counter for reason.
func RecordCompletion(reason string) {
	globalManager.completionsRecorded.WithLabelValues(reason).Inc()
}

// RecordDuplicateCompletion increments the duplicate completions counter.
func RecordDuplicateCompletion() {
	globalManager.completionsDuplicate.Inc()
}

// RecordCompletionDeleted increments the deleted completions counter.
func RecordCompletionDeleted() {
	globalManager.completionsDeleted.Inc()
}

// RecordCompletionReviewed increments the review corrections counter.
func RecordCompletionReviewed() {
	globalManager.completionsReviewed.Inc()
}

// RecordLedgerLatency records the latency of a ledger operation.
func RecordLedgerLatency(operation string, latencyMs float64) {
	globalManager.ledgerLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordRewardComputed increments the reward computations counter.
func RecordRewardComputed(reason string) {
	globalManager.rewardsComputed.WithLabelValues(reason).Inc()
}

// RecordRewardError increments the reward error counter.
func RecordRewardError() {
	globalManager.rewardErrors.Inc()
}

// RecordMetadataHit increments the metadata cache hit counter.
func RecordMetadataHit() {
	globalManager.metadataHits.Inc()
}

// RecordMetadataMiss increments the metadata cache miss counter.
func RecordMetadataMiss() {
	globalManager.metadataMisses.Inc()
}

// RecordMetadataStaleServed increments the stale-served counter.
func RecordMetadataStaleServed() {
	globalManager.metadataStaleServed.Inc()
}

// RecordMetadataUpstreamError increments the upstream error counter.
func RecordMetadataUpstreamError() {
	globalManager.metadataUpstreamErrs.Inc()
}

// RecordMetadataFetchLatency records upstream fetch latency.
func RecordMetadataFetchLatency(latencyMs float64) {
	globalManager.metadataFetchLatency.Observe(latencyMs)
}

// RecordCatalogRefresh increments the catalog refresh counter and sets the title gauge.
func RecordCatalogRefresh(titles int) {
	globalManager.catalogRefreshes.Inc()
	globalManager.catalogTitles.Set(float64(titles))
}

// RecordLeaderboardQuery records a leaderboard query of the given kind.
func RecordLeaderboardQuery(kind string, latencyMs float64) {
	globalManager.leaderboardQueries.WithLabelValues(kind).Inc()
	globalManager.leaderboardLatency.Observe(latencyMs)
}

// RecordReconcileTick records a finished reconciliation tick.
func RecordReconcileTick(members int, duration time.Duration) {
	globalManager.reconcileTicks.Inc()
	globalManager.reconcileMembers.Set(float64(members))
	globalManager.reconcileTickDuration.Observe(float64(duration.Milliseconds()))
	globalManager.reconcileLastUnix.Set(float64(time.Now().Unix()))
}

// RecordRoleGranted increments the role grants counter.
func RecordRoleGranted() {
	globalManager.reconcileGrants.Inc()
}

// RecordRoleRevoked increments the role revokes counter.
func RecordRoleRevoked() {
	globalManager.reconcileRevokes.Inc()
}

// RecordReconcileMemberFailure increments the per-member failure counter.
func RecordReconcileMemberFailure() {
	globalManager.reconcileMemberFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
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
