package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jikan_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks cache misses, expired entries included
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jikan_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// EntryBytes tracks the size of stored entries
	EntryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jikan_cache_entry_bytes",
			Help:    "Size of cached response entries in bytes",
			Buckets: prometheus.ExponentialBuckets(512, 4, 8),
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jikan_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
