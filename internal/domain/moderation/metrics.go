package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_decisions_total",
	Help: "Number of pipeline decisions, by action and whether they were enforced",
}, []string{"action", "enforced"})

var gateRejectCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_gate_rejections_total",
	Help: "Number of submissions rejected by the pre-submission gate, by reason",
}, []string{"reason"})

var failOpenCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_fail_open_total",
	Help: "Number of evaluations that failed open because of an internal error",
})

var decayCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_decay_applied_total",
	Help: "Number of times violation decay was applied",
})

var overrideCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_overrides_total",
	Help: "Number of operator override entries, by action",
}, []string{"action"})

var evaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "moderation_evaluate_duration_millis",
	Help:    "Time to evaluate one submission",
	Buckets: prometheus.ExponentialBuckets(1, 2, 12),
})
