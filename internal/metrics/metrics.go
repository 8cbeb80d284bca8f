package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SearchMetrics holds the Prometheus collectors of one search run.
// A nil *SearchMetrics is valid and records nothing.
type SearchMetrics struct {
	registry *prometheus.Registry

	trialsTotal         *prometheus.CounterVec
	proposalsTotal      *prometheus.CounterVec
	trialDuration       prometheus.Histogram
	trialEpochs         prometheus.Histogram
	bestObjective       prometheus.Gauge
	lastObjective       prometheus.Gauge
	consecutiveFailures prometheus.Gauge
	searchAborted       prometheus.Counter
}

// NewSearchMetrics creates the collectors and registers them on a private registry.
func NewSearchMetrics() *SearchMetrics {
	m := &SearchMetrics{
		registry: prometheus.NewRegistry(),
		trialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phenotune_trials_total",
				Help: "Total number of finished trials",
			},
			[]string{"status"},
		),
		proposalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phenotune_proposals_total",
				Help: "Total number of hyperparameter proposals by source",
			},
			[]string{"source"},
		),
		trialDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phenotune_trial_duration_seconds",
				Help:    "Trial wall-clock duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		trialEpochs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phenotune_trial_epochs",
				Help:    "Epochs trained per trial before stopping",
				Buckets: prometheus.LinearBuckets(1, 2, 15),
			},
		),
		bestObjective: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "phenotune_best_objective",
				Help: "Best validation loss seen so far",
			},
		),
		lastObjective: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "phenotune_last_objective",
				Help: "Validation loss of the most recent completed trial",
			},
		),
		consecutiveFailures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "phenotune_consecutive_failed_trials",
				Help: "Current run of consecutive failed trials",
			},
		),
		searchAborted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phenotune_search_aborted_total",
				Help: "Number of searches aborted after too many consecutive failures",
			},
		),
	}

	m.registry.MustRegister(
		m.trialsTotal,
		m.proposalsTotal,
		m.trialDuration,
		m.trialEpochs,
		m.bestObjective,
		m.lastObjective,
		m.consecutiveFailures,
		m.searchAborted,
	)

	return m
}

// Registry exposes the private registry.
func (m *SearchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *SearchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordProposal counts a proposal from the given source.
func (m *SearchMetrics) RecordProposal(source string) {
	if m == nil {
		return
	}
	m.proposalsTotal.WithLabelValues(source).Inc()
}

// RecordTrial records a finished trial.
func (m *SearchMetrics) RecordTrial(status string, duration time.Duration, epochs int, objective float64, best float64) {
	if m == nil {
		return
	}
	m.trialsTotal.WithLabelValues(status).Inc()
	m.trialDuration.Observe(duration.Seconds())
	if epochs > 0 {
		m.trialEpochs.Observe(float64(epochs))
	}
	if status == "completed" {
		m.lastObjective.Set(objective)
		m.bestObjective.Set(best)
	}
}

// SetConsecutiveFailures updates the failure streak gauge.
func (m *SearchMetrics) SetConsecutiveFailures(n int) {
	if m == nil {
		return
	}
	m.consecutiveFailures.Set(float64(n))
}

// RecordAbort counts an aborted search.
func (m *SearchMetrics) RecordAbort() {
	if m == nil {
		return
	}
	m.searchAborted.Inc()
}
