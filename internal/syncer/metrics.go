package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "sync",
			Name:      "cache_write_failures_total",
			Help:      "Local cache writes that failed, by collection.",
		},
		[]string{"collection"},
	)

	writesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "sync",
			Name:      "remote_writes_submitted_total",
			Help:      "Remote writes queued by the write-through observer.",
		},
		[]string{"table", "op"},
	)

	writesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "sync",
			Name:      "remote_writes_dropped_total",
			Help:      "Remote writes that could not be queued.",
		},
		[]string{"table"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lifesync",
			Subsystem: "sync",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of the sign-in fetch stages.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	migrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "sync",
			Name:      "migrated_rows_total",
			Help:      "Local rows pushed to an empty remote store.",
		},
		[]string{"table"},
	)
)
