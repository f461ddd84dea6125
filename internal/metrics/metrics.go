// Package metrics exposes the Soul Engine's Prometheus collectors: bus
// throughput, mood/allostatic gauges, generator token spend, and
// consolidation outcomes. It is the data source behind the `/metrics`
// endpoint an external dashboard scrapes; it has no rendering opinion of
// its own.
//
// Grounded on Tutu-Engine's internal/infra/metrics (package-level
// promauto collectors under one namespace) and r3e-network's equivalent
// usage of prometheus/client_golang.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hbcaspa/soulengine/internal/affect"
	"github.com/hbcaspa/soulengine/internal/bus"
)

const namespace = "soulengine"

var (
	// BusEventsTotal counts every event dispatched, by type.
	BusEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_events_total",
		Help:      "Total events emitted on the bus, by event type.",
	}, []string{"type"})

	// BusHandlerErrorsTotal counts failed consolidation passes, labelled
	// with the seed.consolidated event type; RecordConsolidation is the
	// only place that increments it.
	BusHandlerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_handler_errors_total",
		Help:      "Total failed consolidation passes, by event type (seed.consolidated).",
	}, []string{"type"})

	// MoodValence tracks the current mood valence in [-1, 1].
	MoodValence = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mood_valence",
		Help:      "Current mood valence, in [-1, 1].",
	})

	// MoodEnergy tracks the current mood energy in [0, 1].
	MoodEnergy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mood_energy",
		Help:      "Current mood energy, in [0, 1].",
	})

	// AllostaticDimension tracks each of the eight allostatic vector
	// dimensions, by name.
	AllostaticDimension = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "allostatic_dimension",
		Help:      "Current allostatic vector value, by dimension.",
	}, []string{"dimension"})

	// GeneratorTokensTotal sums input/output tokens spent through
	// internal/cost's Tracker, by category and direction.
	GeneratorTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generator_tokens_total",
		Help:      "Total generator tokens spent, by usage category and direction.",
	}, []string{"category", "direction"})

	// ConsolidationsTotal counts completed consolidation passes, by kind
	// (fast/deep) and outcome (ok/failed).
	ConsolidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consolidations_total",
		Help:      "Total consolidation passes, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// ConsolidatorConsecutiveFailures mirrors the consolidator's
	// consecutive-failure counter.
	ConsolidatorConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "consolidator_consecutive_failures",
		Help:      "Consecutive consolidation validation failures since the last success.",
	})

	// ConsolidatorRecoveryMode is 1 when the consolidator has degraded to
	// mechanical-only passes, 0 otherwise.
	ConsolidatorRecoveryMode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "consolidator_recovery_mode",
		Help:      "1 when the consolidator is restricted to mechanical-only passes.",
	})
)

// busEventTypes are the event types emitted anywhere in this codebase;
// the bus has no wildcard subscription, so every type that should count
// towards BusEventsTotal must be listed explicitly.
var busEventTypes = []string{
	"cost.budget-exceeded",
	"heartbeat.completed",
	"identity.written",
	"impulse.fired",
	"impulse.tick",
	"mood.changed",
	"mood.clamped",
	"reflection.completed",
	"seed.consolidated",
	"seed.drift-detected",
	"seed.recovered",
	"seed.recovery-failed",
	"seed.recovery-mode-entered",
	"seed.validation-failed",
	"session.guard_warning",
	"state.committed",
	"state.rolled-back",
}

// Attach subscribes the counters to every known bus event type.
func Attach(b *bus.Bus) {
	for _, t := range busEventTypes {
		eventType := t
		b.On(eventType, func(e bus.Event) error {
			BusEventsTotal.WithLabelValues(eventType).Inc()
			return nil
		})
	}
}

// ObserveMood updates the mood/allostatic gauges from an affect export.
func ObserveMood(e affect.Export) {
	MoodValence.Set(e.Mood.Valence)
	MoodEnergy.Set(e.Mood.Energy)
	for _, dim := range affect.AllDimensions {
		AllostaticDimension.WithLabelValues(string(dim)).Set(e.Vector[dim])
	}
}

// RecordGeneratorUsage adds input/output tokens spent under category to
// the running totals.
func RecordGeneratorUsage(category string, inputTokens, outputTokens int) {
	GeneratorTokensTotal.WithLabelValues(category, "input").Add(float64(inputTokens))
	GeneratorTokensTotal.WithLabelValues(category, "output").Add(float64(outputTokens))
}

// RecordConsolidation records one completed pass and mirrors the
// consolidator's recovery bookkeeping.
func RecordConsolidation(kind string, failed bool, consecutiveFailures int, recoveryMode bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
		BusHandlerErrorsTotal.WithLabelValues("seed.consolidated").Inc()
	}
	ConsolidationsTotal.WithLabelValues(kind, outcome).Inc()
	ConsolidatorConsecutiveFailures.Set(float64(consecutiveFailures))
	if recoveryMode {
		ConsolidatorRecoveryMode.Set(1)
	} else {
		ConsolidatorRecoveryMode.Set(0)
	}
}

// Handler returns the http.Handler the engine mounts at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
