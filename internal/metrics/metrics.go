// Package metrics registers the daemon's Prometheus instrumentation:
// package-level CounterVec/HistogramVec registered via
// prometheus.MustRegister in init().
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	attributeUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpal_attribute_updates_total",
			Help: "Total attribute update requests by outcome.",
		},
		[]string{"outcome"},
	)
	libraryLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpal_library_loads_total",
			Help: "Total plugin library load attempts by outcome.",
		},
		[]string{"outcome"},
	)
	executorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpal_executor_request_duration_seconds",
			Help:    "Time spent serving one executor request.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(attributeUpdates, libraryLoads, executorRequestDuration)
}

// Metrics is a thin handle so callers (internal/core) don't reach for
// the package-level vectors directly, and tests can substitute NoOp().
type Metrics struct {
	enabled bool
}

// New returns a Metrics backed by the registered Prometheus vectors.
func New() *Metrics { return &Metrics{enabled: true} }

// NoOp returns a Metrics that records nothing, for tests.
func NoOp() *Metrics { return &Metrics{enabled: false} }

func (m *Metrics) AttributeUpdate(outcome string) {
	if !m.enabled {
		return
	}
	attributeUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LibraryLoad(outcome string) {
	if !m.enabled {
		return
	}
	libraryLoads.WithLabelValues(outcome).Inc()
}

// ObserveExecutorRequest records the duration of one executor request,
// labeled by kind (e.g. "get_attribute", "patch_attribute").
func (m *Metrics) ObserveExecutorRequest(kind string, d time.Duration) {
	if !m.enabled {
		return
	}
	executorRequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}
