// Package metrics counts worker lifecycle and render outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scene2video"

type Metrics struct {
	WorkerStarts    prometheus.Counter
	WorkerRestarts  prometheus.Counter
	PreviewAttempts prometheus.Counter
	PreviewFailures prometheus.Counter
	BatchRenders    *prometheus.CounterVec
}

// New registers the counters on reg. A nil reg gets a private registry so
// several instances can coexist in one process (tests, multiple sessions).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		WorkerStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_starts_total",
			Help:      "Preview worker processes launched",
		}),
		WorkerRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Preview worker restarts after a failed exchange",
		}),
		PreviewAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_attempts_total",
			Help:      "Preview request exchanges attempted",
		}),
		PreviewFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_failures_total",
			Help:      "Preview requests that exhausted their retries",
		}),
		BatchRenders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_renders_total",
			Help:      "Batch renders by result",
		}, []string{"result"}),
	}
}
