// Package metrics exposes the Prometheus registry used by the Jikan catalog
// packages and the label helpers they share.
//
// Metrics are declared with promauto next to the code that updates them
// (client, ratelimit, pagination, cache) so the packages stay free of
// circular imports. This package only serves and documents them.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry. All metrics register
// themselves through promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EndpointLabel normalises an API path for use as a metric label.
// Numeric segments collapse to {id} so detail endpoints do not explode
// label cardinality:
//
//	/anime/21/characters -> /anime/{id}/characters
func EndpointLabel(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if isNumeric(seg) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - jikan_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - jikan_request_duration_seconds{endpoint} (Histogram): Logical fetch duration, retries included
//   - jikan_errors_total{class} (Counter): Failed attempts by class (client, not_found, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - jikan_retries_total{error_class} (Counter): Retry attempts by error class
//   - jikan_retry_backoff_seconds{error_class} (Histogram): Delay waited before a retry
//   - jikan_retry_exhausted_total{error_class} (Counter): Fetches that ran out of attempts
//
// Throttle Metrics (pkg/ratelimit):
//   - jikan_throttle_cooldowns_total (Counter): Cooldowns recorded after a 429
//   - jikan_throttle_waits_total (Counter): Requests held back by an active cooldown
//   - jikan_throttle_wait_seconds (Histogram): Time spent waiting for a cooldown
//
// Accumulator Metrics (pkg/pagination):
//   - jikan_accumulator_pages_total{outcome} (Counter): Resolved page fetches (applied, stale, error)
//   - jikan_accumulator_items_deduplicated_total (Counter): Items dropped as duplicates
//
// Cache Metrics (pkg/cache):
//   - jikan_cache_hits_total (Counter), jikan_cache_misses_total (Counter)
//   - jikan_cache_size_bytes (Gauge): Bytes written to the cache
//   - jikan_cache_errors_total{operation} (Counter)
//
// Example Prometheus Queries:
//
//	# Share of fetches that hit the rate limit
//	sum(rate(jikan_errors_total{class="rate_limit"}[5m])) / sum(rate(jikan_requests_total[5m]))
//
//	# Stale responses discarded by accumulators
//	rate(jikan_accumulator_pages_total{outcome="stale"}[5m])
//
//	# P95 fetch latency
//	histogram_quantile(0.95, rate(jikan_request_duration_seconds_bucket[5m]))
