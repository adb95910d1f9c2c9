package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prona_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prona_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prona_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)

	MemorySearchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prona_memory_searches_total",
			Help: "Total number of vector memory searches served.",
		},
	)

	MemoryEntriesAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prona_memory_entries_added_total",
			Help: "Total number of entries appended to vector memory.",
		},
	)

	EmbeddingFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prona_embedding_failures_total",
			Help: "Total number of failed embedding calls.",
		},
	)

	RetrievalDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prona_retrieval_degraded_total",
			Help: "Chat turns that ran without memory context.",
		},
		[]string{"reason"},
	)

	MealsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prona_meals_ingested_total",
			Help: "Meals created, by source.",
		},
		[]string{"source"},
	)

	DescriptorsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prona_descriptors_skipped_total",
			Help: "Food descriptors dropped for having no usable name.",
		},
	)

	DayRecomputesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prona_day_recomputes_total",
			Help: "Total number of daily total recomputations.",
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prona_llm_requests_total",
			Help: "Chat completion calls, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPInFlight,
		MemorySearchesTotal,
		MemoryEntriesAddedTotal,
		EmbeddingFailuresTotal,
		RetrievalDegradedTotal,
		MealsIngestedTotal,
		DescriptorsSkippedTotal,
		DayRecomputesTotal,
		LLMRequestsTotal,
	)
}
