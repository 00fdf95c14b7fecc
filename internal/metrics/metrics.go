package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StorageErrors counts swallowed persistent-store failures by operation.
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_core_storage_errors_total",
			Help: "Persistent store failures degraded to a miss or no-op",
		},
		[]string{"op"},
	)

	// CacheLookups counts cache reads by resource kind and result
	// (hit, miss, rejected).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_core_cache_lookups_total",
			Help: "Cache facade reads by resource and result",
		},
		[]string{"resource", "result"},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_core_fetch_total",
			Help: "Loader network fetches by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_core_fetch_duration_seconds",
			Help:    "Loader network fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"resource"},
	)

	// DiscardedResults counts loader results dropped because a newer result
	// had already been applied or the loader was closed.
	DiscardedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_core_discarded_results_total",
			Help: "Loader results ignored as stale",
		},
		[]string{"resource", "stage"},
	)

	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_core_invalidations_total",
			Help: "Cache keys removed by the invalidation feed",
		},
		[]string{"routing_key"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_core_debug_http_requests_total",
			Help: "Requests served by the debug surface",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequests counts calls to the remote event API by method and
	// outcome (2xx, 4xx, 5xx, timeout, unavailable).
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_core_api_requests_total",
			Help: "Remote API calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)
)
