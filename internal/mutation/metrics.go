package mutation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "mutation",
			Name:      "applied_total",
			Help:      "Mutations applied, by activity type.",
		},
		[]string{"type"},
	)

	rejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "mutation",
			Name:      "rejected_total",
			Help:      "Mutations refused by validation, by operation.",
		},
		[]string{"op"},
	)

	undoTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "mutation",
			Name:      "undo_total",
			Help:      "Undo slot transitions.",
		},
		[]string{"event"},
	)
)
