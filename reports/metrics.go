package reports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reports_submitted",
	Help: "Number of new user reports by type",
}, []string{"type"})

var reportsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reports_resolved",
	Help: "Number of closed reports by outcome and action",
}, []string{"status", "action"})
