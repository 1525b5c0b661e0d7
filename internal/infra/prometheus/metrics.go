package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once guards registration; the default registry panics on duplicates.
	once sync.Once

	// IntakeItemsTotal counts processed batch items by outcome
	// (success, duplicate, invalid, provider_error, storage_error).
	IntakeItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbot_intake_items_total",
			Help: "Batch intake items processed, by outcome.",
		},
		[]string{"outcome"},
	)

	// ProviderRequestDurationSeconds observes shortening provider latency per method.
	ProviderRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkbot_provider_request_duration_seconds",
			Help:    "Shortening provider request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ProviderErrorsTotal counts failed provider calls per method.
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbot_provider_errors_total",
			Help: "Failed shortening provider requests.",
		},
		[]string{"method"},
	)

	// ActiveSessions is the number of users with a conversation in progress.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkbot_active_sessions",
			Help: "Conversations currently in progress.",
		},
	)

	// UpdatesTotal counts chat updates by kind (message, callback) and result
	// (handled, throttled, error).
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbot_updates_total",
			Help: "Chat updates received.",
		},
		[]string{"kind", "result"},
	)

	// CacheRequestsTotal counts stats cache lookups by level (l1, l2) and result (hit, miss).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbot_stats_cache_requests_total",
			Help: "Stats cache lookups.",
		},
		[]string{"level", "result"},
	)

	// LinkEventsTotal counts audit events by type and stage (published, stored, failed, malformed).
	LinkEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbot_link_events_total",
			Help: "Link audit events.",
		},
		[]string{"type", "stage"},
	)
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			IntakeItemsTotal,
			ProviderRequestDurationSeconds,
			ProviderErrorsTotal,
			ActiveSessions,
			UpdatesTotal,
			CacheRequestsTotal,
			LinkEventsTotal,
		)
	})
}

// ObserveDuplicateFilter exports the approximate number of (owner, URL) pairs
// held by the duplicate filter.
func ObserveDuplicateFilter(size func() uint32) error {
	return prometheus.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "linkbot_duplicate_filter_pairs",
			Help: "Approximate number of (owner, URL) pairs in the duplicate filter.",
		},
		func() float64 { return float64(size()) },
	))
}
