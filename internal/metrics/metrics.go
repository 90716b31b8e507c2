// Package metrics exposes Prometheus collectors for the orchestrator
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AbdouB/adaptive/internal/models"
)

const namespace = "adaptive"

// Metrics groups the orchestrator collectors
type Metrics struct {
	PhaseChanges   *prometheus.CounterVec
	ForensicEvents *prometheus.CounterVec
	Components     prometheus.Gauge
	Evaluations    prometheus.Counter
	EvalErrors     prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PhaseChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_changes_total",
			Help:      "Phase changes by destination phase.",
		}, []string{"phase"}),
		ForensicEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forensic_events_total",
			Help:      "Forensic events appended by type.",
		}, []string{"event_type"}),
		Components: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_components",
			Help:      "Components currently registered.",
		}),
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "EvaluateAll passes.",
		}),
		EvalErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_errors_total",
			Help:      "Conditions that failed to evaluate.",
		}),
	}
}

// ObservePhase counts a phase change
func (m *Metrics) ObservePhase(p models.Phase) {
	m.PhaseChanges.WithLabelValues(string(p)).Inc()
}

// ObserveEvent counts a forensic event
func (m *Metrics) ObserveEvent(t models.ForensicEventType) {
	m.ForensicEvents.WithLabelValues(string(t)).Inc()
}
