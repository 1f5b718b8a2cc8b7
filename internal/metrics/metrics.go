// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/extract"
)

const namespace = "magnetarr"

// MetricsManager owns the registry and the counters fed by the pipeline.
type MetricsManager struct {
	registry *prometheus.Registry

	attempts     *prometheus.CounterVec
	submitted    prometheus.Counter
	cacheLookups *prometheus.CounterVec
	runs         *prometheus.CounterVec
}

func NewMetricsManager() *MetricsManager {
	registry := prometheus.NewRegistry()

	// Register standard Go collectors like autobrr does
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &MetricsManager{
		registry: registry,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_attempts_total",
			Help:      "Extraction strategy runs by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "magnets_submitted_total",
			Help:      "Magnets handed to the torrent client.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_cache_lookups_total",
			Help:      "Thread cache lookups by result.",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(m.attempts, m.submitted, m.cacheLookups, m.runs)

	log.Debug().Msg("Metrics manager initialized with collectors")
	return m
}

func (m *MetricsManager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *MetricsManager) ObserveAttempt(a extract.Attempt) {
	outcome := "miss"
	if a.Success {
		outcome = "hit"
	}
	m.attempts.WithLabelValues(a.Strategy.String(), outcome).Inc()
}

func (m *MetricsManager) ObserveRun(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *MetricsManager) ObserveSubmitted(n int) {
	if n > 0 {
		m.submitted.Add(float64(n))
	}
}

// ObserveCacheLookup matches threadcache.WithObserver.
func (m *MetricsManager) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
