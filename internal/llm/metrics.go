package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM calls by outcome.",
		},
		[]string{"outcome"},
	)

	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed, by whether the provider reported them.",
		},
		[]string{"source"},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lifesync",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
	)
)
