package trigger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	firedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "trigger",
			Name:      "fired_total",
			Help:      "Trigger calls by kind and outcome (accepted, disabled, delegated, dropped).",
		},
		[]string{"kind", "outcome"},
	)

	postsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "trigger",
			Name:      "posts_created_total",
			Help:      "Community posts created, by trigger kind.",
		},
		[]string{"kind"},
	)

	generationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "trigger",
			Name:      "generation_failures_total",
			Help:      "LLM calls that produced no usable content.",
		},
		[]string{"flow"},
	)

	digestTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "trigger",
			Name:      "digest_ticks_total",
			Help:      "Digest ticks by result (fired, same_bucket, idle, disabled).",
		},
		[]string{"result"},
	)

	commentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "trigger",
			Name:      "comments_created_total",
			Help:      "AI comments appended to journal entries.",
		},
	)
)
