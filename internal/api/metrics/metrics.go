// Package metrics defines and registers all custom Prometheus metrics for the
// tenant auth API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// via promauto and exposed on /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenant_auth"

// ── Credential metrics ────────────────────────────────────────────────────────

// AuthRequestsTotal counts credential operations by result.
// Labels:
//   - operation: "register", "login", "refresh", "logout"
//   - outcome: "success" or the error kind (e.g. "authentication", "conflict", "internal")
var AuthRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_requests_total",
		Help:      "Total number of credential operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// TokenVerificationsTotal counts bearer token checks on protected routes.
// Label:
//   - result: "valid", "invalid", "missing", "rejected_identity"
var TokenVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verifications_total",
		Help:      "Total number of access token verifications, labelled by result.",
	},
	[]string{"result"},
)

// ── Tenant metrics ────────────────────────────────────────────────────────────

// TenantGuardDecisionsTotal counts tenant guard outcomes.
// Label:
//   - result: "allowed" or the error kind that denied the request
var TenantGuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tenant_guard_decisions_total",
		Help:      "Total number of tenant guard decisions, labelled by result.",
	},
	[]string{"result"},
)

// TenantCacheTotal counts tenant cache lookups.
// Label:
//   - result: "hit", "miss" or "error"
var TenantCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tenant_cache_lookups_total",
		Help:      "Total number of tenant cache lookups, labelled by result (hit/miss/error).",
	},
	[]string{"result"},
)

// ── Last-login dispatcher metrics ─────────────────────────────────────────────

// LastLoginQueueDepth tracks the number of pending writes in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var LastLoginQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_login_queue_depth",
		Help:      "Current number of last-login writes pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// LastLoginWritesTotal counts last-login writes.
// Label:
//   - result: "ok", "error" or "dropped" (queue full)
var LastLoginWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "last_login_writes_total",
		Help:      "Total number of last-login writes, labelled by result.",
	},
	[]string{"result"},
)

// LastLoginWriteDuration measures a single last-login write.
var LastLoginWriteDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "last_login_write_duration_seconds",
		Help:      "Duration of last-login writes from dequeue to persistence.",
		Buckets:   prometheus.DefBuckets,
	},
)
