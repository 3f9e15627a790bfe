package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exported on /metrics. Policy rejections count as evaluations,
// not errors; duplicates and anomalies get their own series.
var (
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_evaluations_total",
		Help: "Attendance evaluations by resulting status.",
	}, []string{"status"})

	Duplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_duplicate_submissions_total",
		Help: "Submissions refused because a record already existed.",
	})

	Anomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_anomalies_total",
		Help: "Submissions flagged as anomalous (implausible accuracy or distance).",
	})

	Overrides = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_overrides_total",
		Help: "Manual status overrides applied by staff.",
	})
)
