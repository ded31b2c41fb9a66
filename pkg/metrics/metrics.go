// Package metrics provides the centralized Prometheus metrics registry
// for the describe client. All metrics are defined in their respective
// packages (vision, orchestrate, cache, ratelimit) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the describe client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/vision):
//   - vision_requests_total{endpoint, status} (Counter): Total calls by endpoint and HTTP status
//   - vision_request_duration_seconds{endpoint} (Histogram): Call duration by endpoint
//   - vision_errors_total{class} (Counter): Call errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/vision):
//   - vision_retries_total{error_class} (Counter): Retry attempts by error class
//   - vision_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - vision_retry_exhausted_total{error_class} (Counter): Calls that exhausted max retries
//
// Orchestration Metrics (pkg/orchestrate):
//   - vision_submissions_total{field, outcome} (Counter): Chunk submissions by classified outcome
//     (sync, polling, remote_error, unknown_shape, transport_error)
//   - vision_poll_attempts_total (Counter): Poll attempts across all jobs
//   - vision_poll_jobs_total{outcome} (Counter): Poll jobs by terminal outcome (resolved, failed, timeout)
//   - vision_unattributed_assets_total (Counter): Returned assets dropped during reconciliation
//
// Cache Metrics (pkg/cache):
//   - vision_cache_hits_total{layer="redis"} (Counter): Description cache hits by layer
//   - vision_cache_misses_total (Counter): Description cache misses
//   - vision_cache_size_bytes{layer="redis"} (Gauge): Bytes of description data written
//   - vision_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - vision_rate_limit_remaining (Gauge): Requests remaining in the service budget window
//   - vision_rate_limit_blocks_total (Counter): Calls blocked due to critical budget
//   - vision_rate_limit_throttles_total (Counter): Calls throttled due to low budget
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(vision_cache_hits_total[5m])) /
//   (sum(rate(vision_cache_hits_total[5m])) + sum(rate(vision_cache_misses_total[5m])))
//
//   # Poll Timeout Rate
//   rate(vision_poll_jobs_total{outcome="timeout"}[5m]) /
//   rate(vision_poll_jobs_total[5m])
//
//   # Call Error Rate
//   rate(vision_errors_total[5m])
//
//   # P95 Call Latency
//   histogram_quantile(0.95, rate(vision_request_duration_seconds_bucket[5m]))
