// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_job_runs_total",
			Help: "Scheduled job executions by outcome (ok, failed, skipped).",
		}, []string{"job", "status"})

	JobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stats_job_duration_seconds",
			Help:    "Wall time of completed job executions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"job"})

	JobLastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stats_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful execution per job.",
		}, []string{"job"})

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stats_cache_entries",
			Help: "Number of entries held by the in-memory cache store.",
		})

	CacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_cache_writes_total",
			Help: "Cache overwrites by namespace and metric.",
		}, []string{"namespace", "metric"})

	CacheClearsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_cache_clears_total",
			Help: "Bulk namespace clears.",
		}, []string{"namespace"})

	AggregationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_aggregation_errors_total",
			Help: "Failed sub-computations and range queries by operation.",
		}, []string{"op"})

	SourceBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stats_source_breaker_state",
			Help: "Circuit breaker state per data source (0 closed, 1 half-open, 2 open).",
		}, []string{"source"})

	HotelsLoadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_hotel_load_total",
			Help: "Cumulative number of hotel records loaded into the catalog cache.",
		})

	HotelLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_hotel_load_errors_total",
			Help: "Cumulative number of hotel catalog load errors.",
		})
)

func init() {
	prometheus.MustRegister(
		JobRunsTotal,
		JobDurationSeconds,
		JobLastSuccess,
		CacheEntries,
		CacheWritesTotal,
		CacheClearsTotal,
		AggregationErrorsTotal,
		SourceBreakerState,
		HotelsLoadedTotal,
		HotelLoadErrorsTotal,
	)
}
