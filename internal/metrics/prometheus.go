package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the roster checker

var (
	// API Call metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coc_api_calls_total",
			Help: "Total number of outbound API calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coc_api_call_duration_seconds",
			Help:    "Duration of outbound API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Lookup metrics
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coc_player_lookups_total",
			Help: "Total number of player lookups by outcome",
		},
		[]string{"outcome"},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coc_lookup_batches_total",
			Help: "Total number of lookup batches executed",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coc_cache_hits_total",
			Help: "Total number of queries served without a refresh",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coc_cache_misses_total",
			Help: "Total number of queries that found the cache stale",
		},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coc_sync_operations_total",
			Help: "Total number of roster refreshes",
		},
		[]string{"trigger", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coc_sync_duration_seconds",
			Help:    "Duration of roster refreshes in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"trigger"},
	)

	RosterEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coc_roster_entries",
			Help: "Number of entries in the cached roster",
		},
	)

	RosterInClan = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coc_roster_in_assigned_clan",
			Help: "Number of cached entries currently in their assigned clan",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coc_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coc_http_requests_total",
			Help: "Total number of inbound HTTP requests",
		},
		[]string{"route", "status"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coc_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coc_last_successful_sync_timestamp",
			Help: "Timestamp of last successful roster refresh",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordLookup records the outcome of a player lookup
func RecordLookup(outcome string) {
	LookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordBatch records one executed lookup batch
func RecordBatch() {
	BatchesTotal.Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordSync records a sync operation
func RecordSync(trigger, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(trigger, status).Inc()
	SyncDuration.WithLabelValues(trigger).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// UpdateRosterStats updates the roster gauges after a refresh
func UpdateRosterStats(total, inClan int) {
	RosterEntries.Set(float64(total))
	RosterInClan.Set(float64(inClan))
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest records an inbound HTTP request
func RecordHTTPRequest(route, status string) {
	HTTPRequestsTotal.WithLabelValues(route, status).Inc()
}
