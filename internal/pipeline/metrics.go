package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "histview",
		Subsystem: "pipeline",
		Name:      "transitions_total",
		Help:      "Transitions delivered, by phase.",
	}, []string{"phase"})

	windowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "histview",
		Subsystem: "pipeline",
		Name:      "windows_total",
		Help:      "History windows received, by outcome (loading, ready, waiting or stale).",
	}, []string{"outcome"})

	cancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "histview",
		Subsystem: "pipeline",
		Name:      "cancelled_computations_total",
		Help:      "Background computations superseded by a newer request.",
	})

	computeDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "histview",
		Subsystem: "pipeline",
		Name:      "compute_duration_seconds",
		Help:      "Time spent transforming and diffing a window, by kind (first_paint or diff).",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"kind"})

	materializedRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "histview",
		Subsystem: "pipeline",
		Name:      "first_paint_rows",
		Help:      "Rows built synchronously for a first paint.",
		Buckets:   prometheus.ExponentialBuckets(4, 2, 8),
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "histview",
		Subsystem: "pipeline",
		Name:      "active_sessions",
		Help:      "Number of open sessions.",
	})
)
