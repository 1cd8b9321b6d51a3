// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AniListRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anilist_requests_total",
			Help: "AniList GraphQL requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	AniListDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anilist_request_duration_seconds",
			Help:    "AniList GraphQL request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	AniListBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anilist_circuit_breaker_state",
			Help: "AniList circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "LLM recommendation calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM recommendation call latency",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	TitlesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_titles_total",
			Help: "LLM title candidates by resolution outcome (resolved, dropped)",
		},
		[]string{"outcome"},
	)

	SearchesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_quota_rejections_total",
			Help: "Searches rejected because the client exceeded its quota",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func RecordAniList(operation, outcome string, d time.Duration) {
	AniListRequests.WithLabelValues(operation, outcome).Inc()
	AniListDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func RecordLLM(provider, outcome string, d time.Duration) {
	LLMRequests.WithLabelValues(provider, outcome).Inc()
	LLMDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordHTTP(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
