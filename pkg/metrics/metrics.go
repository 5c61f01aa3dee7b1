// Package metrics provides the centralized Prometheus registry reference
// for the janitor. Metrics are defined in their respective packages
// (client, collect, archive) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the janitor.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Gateway Metrics (pkg/client):
//   - mailchimp_requests_total{endpoint, status} (Counter): Requests by
//     endpoint (list_members, archive_member) and HTTP status
//   - mailchimp_request_duration_seconds{endpoint} (Histogram): Request
//     duration by endpoint
//   - mailchimp_errors_total{class} (Counter): Errors by class
//     (remote, transport)
//
// Enumeration Metrics (pkg/collect):
//   - janitor_pages_fetched_total (Counter): Members pages fetched,
//     including the terminating empty page
//
// Archive Metrics (pkg/archive):
//   - janitor_archive_outcomes_total{result} (Counter): Outcomes by result
//     (success, remote, transport, task)
//   - janitor_archive_inflight_tasks (Gauge): Archive requests currently
//     in flight; never exceeds the configured concurrency limit
//
// Example Prometheus Queries:
//
//   # Archive failure rate
//   sum(rate(janitor_archive_outcomes_total{result!="success"}[5m])) /
//   sum(rate(janitor_archive_outcomes_total[5m]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(mailchimp_request_duration_seconds_bucket[5m]))
//
//   # Window utilization
//   janitor_archive_inflight_tasks
