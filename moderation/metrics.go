package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var moderationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_runs_total",
	Help: "Number of moderation runs by outcome",
}, []string{"outcome"})

var moderationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "moderation_run_duration_seconds",
	Help:    "Duration of a single moderation run",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
})

var classifierErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_classifier_errors_total",
	Help: "Number of classifier failures which fell back to a fail-closed result",
}, []string{"classifier"})

var autoActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_auto_actions_total",
	Help: "Number of auto-actions executed by action and result",
}, []string{"action", "result"})
