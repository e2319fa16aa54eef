// Package metrics exposes Prometheus instrumentation for the approval
// engine. Metrics are built against an injected registerer rather than the
// global default so tests and embedders can isolate them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	SubmissionsTotal prometheus.Counter
	DecisionsTotal   *prometheus.CounterVec
	LockConflicts    prometheus.Counter
	DecideLatency    *prometheus.HistogramVec
	EventsPublished  *prometheus.CounterVec
}

// New creates and registers the engine metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SubmissionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "claimflow",
			Name:      "submissions_total",
			Help:      "Total number of claims submitted.",
		}),
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claimflow",
			Name:      "decisions_total",
			Help:      "Total number of decide calls by decision kind and result.",
		}, []string{"decision", "result"}),
		LockConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "claimflow",
			Name:      "lock_conflicts_total",
			Help:      "Total number of decide calls denied by a live foreign lock.",
		}),
		DecideLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "claimflow",
			Name:      "decide_latency_seconds",
			Help:      "Latency distribution of decide calls.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"decision"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claimflow",
			Name:      "events_published_total",
			Help:      "Total number of domain events published by type.",
		}, []string{"type"}),
	}
}
