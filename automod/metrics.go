package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ruleTriggerCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_rule_triggers",
	Help: "Number of times each rule triggered",
}, []string{"rule"})

var ruleErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_rule_errors",
	Help: "Number of rule evaluations which failed",
}, []string{"rule"})
