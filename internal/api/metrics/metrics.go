// Package metrics defines the custom Prometheus metrics of the board. It is the
// single source of truth for metric names, labels and help strings.
//
// Metrics register with the default registry through promauto on package
// init, so importing the package is enough.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "seedboard"

// ── Submission metrics ────────────────────────────────────────────────────────

// SubmissionsTotal counts inbound posts by outcome.
// Label:
//   - outcome: "post", "command", or the rejection kind ("validation",
//     "permission", "content_rejected", "not_found", "persistence", ...)
var SubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Total number of submitted posts, by outcome.",
	},
	[]string{"outcome"},
)

// CommandsTotal counts applied moderation commands.
// Label:
//   - command: the command name without the leading slash (e.g. "del", "topic")
var CommandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Total number of moderation commands applied, by command.",
	},
	[]string{"command"},
)

// SubmissionDuration measures the time spent in the submission pipeline.
var SubmissionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submission_duration_seconds",
		Help:      "Duration of a submission from bind to response.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Broadcast metrics ─────────────────────────────────────────────────────────

// BroadcastQueueDepth tracks events waiting in each dispatcher sink queue.
// Label:
//   - sink: sink name (e.g. "viewers", "audit")
var BroadcastQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "broadcast_queue_depth",
		Help:      "Current number of events pending in each broadcast sink queue.",
	},
	[]string{"sink"},
)

// BroadcastDroppedTotal counts events dropped because a sink queue was full.
var BroadcastDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_dropped_total",
		Help:      "Total number of events dropped because a sink queue was full.",
	},
	[]string{"sink"},
)

// BroadcastErrorsTotal counts sink deliveries that returned an error.
var BroadcastErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_errors_total",
		Help:      "Total number of failed sink deliveries.",
	},
	[]string{"sink"},
)

// ── Viewer metrics ────────────────────────────────────────────────────────────

// ViewersConnected is the number of open websocket viewers.
var ViewersConnected = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "viewers_connected",
		Help:      "Current number of connected websocket viewers.",
	},
)

// ViewersDroppedTotal counts viewers disconnected for falling behind.
var ViewersDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "viewers_dropped_total",
		Help:      "Total number of viewers disconnected because their send buffer overflowed.",
	},
)
