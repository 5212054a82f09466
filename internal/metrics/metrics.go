package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttemptsTotal counts every operation invocation made by the retry
	// executor, including first attempts.
	RetryAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_retry_attempts_total",
			Help: "Total number of operation attempts made by the retry executor",
		},
	)

	// RetryFailuresTotal counts classified attempt failures by kind.
	RetryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcache_retry_failures_total",
			Help: "Total number of failed attempts by classified error kind",
		},
		[]string{"kind"},
	)

	// RetriesExhaustedTotal counts executions that gave up after exhausting
	// their retry budget.
	RetriesExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_retries_exhausted_total",
			Help: "Total number of executions that exhausted their retry budget",
		},
	)

	// CacheHitsTotal counts successful cache reads.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMissesTotal counts cache reads that found nothing.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEvictionsTotal counts removed entries by reason.
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcache_cache_evictions_total",
			Help: "Total number of evicted cache entries by reason",
		},
		[]string{"reason"},
	)

	// CacheSizeBytes tracks total bytes currently held by the store.
	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcache_cache_size_bytes",
			Help: "Total size of cached payloads in bytes",
		},
	)

	// DownloadTasksTotal counts download tasks reaching a terminal state.
	DownloadTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcache_download_tasks_total",
			Help: "Total number of download tasks by terminal status",
		},
		[]string{"status"},
	)

	// FetchDuration tracks remote fetch latency for completed downloads.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netcache_fetch_duration_seconds",
			Help:    "Remote fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
