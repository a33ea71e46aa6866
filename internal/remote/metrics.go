package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Remote store calls by operation and table.",
		},
		[]string{"op", "table"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "remote",
			Name:      "failures_total",
			Help:      "Remote store failures by table and category.",
		},
		[]string{"table", "category"},
	)

	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lifesync",
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Remote store call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
