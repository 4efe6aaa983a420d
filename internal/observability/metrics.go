package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	reportTransitions     *prometheus.CounterVec
	bulkItemsTotal        *prometheus.CounterVec
	bulkBatchSeconds      prometheus.Histogram
	reportStatsCacheTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the report API collectors on the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_api_requests_total",
			Help: "Report API requests served, by route and status.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_api_latency_seconds",
			Help:    "Latency distribution for report API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_api_errors_total",
			Help: "Report API responses with a 4xx or 5xx status.",
		}, []string{"method", "route", "status"})

		reportTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_transitions_total",
			Help: "Progress report status transitions applied.",
		}, []string{"from", "to"})

		bulkItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_bulk_items_total",
			Help: "Bulk submission items by outcome.",
		}, []string{"outcome"})

		bulkBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "report_bulk_batch_seconds",
			Help:    "Time spent resolving one bulk submission batch.",
			Buckets: prometheus.DefBuckets,
		})

		reportStatsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_stats_cache_total",
			Help: "Report statistics cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			reportTransitions,
			bulkItemsTotal,
			bulkBatchSeconds,
			reportStatsCacheTotal,
		)
	})
}

// APIRequests counts report API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency observes report API latency.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors counts report API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ReportTransitions counts applied lifecycle transitions.
func ReportTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return reportTransitions
}

// BulkItems counts bulk submission items per outcome.
func BulkItems() *prometheus.CounterVec {
	RegisterMetrics()
	return bulkItemsTotal
}

// BulkBatchDuration observes how long each bulk batch takes.
func BulkBatchDuration() prometheus.Histogram {
	RegisterMetrics()
	return bulkBatchSeconds
}

// ReportStatsCache counts statistics cache hits and misses.
func ReportStatsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return reportStatsCacheTotal
}
