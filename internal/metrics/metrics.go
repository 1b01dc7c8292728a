// Package metrics holds the Prometheus collectors of the resolver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Collectors
// =============================================================================

var (
	// phaseSeconds measures one phase across every document of a pass.
	// Labels: phase (classes, inheritance, members, statements, rules)
	phaseSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arbor",
		Subsystem: "resolve",
		Name:      "phase_seconds",
		Help:      "Duration of one resolution phase across a package pass",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"phase"})

	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "resolve",
		Name:      "passes_total",
		Help:      "Package passes by outcome",
	}, []string{"outcome"})

	fixpointRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arbor",
		Subsystem: "resolve",
		Name:      "fixpoint_rounds",
		Help:      "Inheritance rounds needed before a pass stopped making progress",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 16},
	})

	// diagnosticsTotal counts reported diagnostics.
	// Labels: phase, severity (error, warning, info, hint)
	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "resolve",
		Name:      "diagnostics_total",
		Help:      "Diagnostics reported by phase and severity",
	}, []string{"phase", "severity"})

	panicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "resolve",
		Name:      "recovered_panics_total",
		Help:      "Internal invariant violations recovered by the phase driver",
	}, []string{"phase"})

	documents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arbor",
		Subsystem: "engine",
		Name:      "open_documents",
		Help:      "Documents currently open in the engine",
	})
)

// ObservePhase records the duration of a phase.
func ObservePhase(phase string, d time.Duration) {
	phaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordPass counts a finished package pass. outcome is "ok" or "error".
func RecordPass(outcome string, rounds int) {
	passesTotal.WithLabelValues(outcome).Inc()
	if rounds > 0 {
		fixpointRounds.Observe(float64(rounds))
	}
}

// RecordDiagnostic counts one diagnostic.
func RecordDiagnostic(phase, severity string) {
	diagnosticsTotal.WithLabelValues(phase, severity).Inc()
}

// RecordPanic counts a recovered invariant violation.
func RecordPanic(phase string) {
	panicsTotal.WithLabelValues(phase).Inc()
}

// SetDocuments sets the number of open documents.
func SetDocuments(n int) {
	documents.Set(float64(n))
}
