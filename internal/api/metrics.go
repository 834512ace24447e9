// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics bundles the Prometheus collectors the façade exports. One
// instance is created per Server and registered against its own
// registry so multiple Servers (e.g. in tests) never collide on the
// default global registry.
type metrics struct {
	registry        *prometheus.Registry
	simulations     *prometheus.CounterVec
	simulationNodes prometheus.Histogram
	reloads         *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	m := &metrics{
		registry: registry,
		simulations: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "physiograph_simulations_total",
			Help: "Total simulate/compare requests handled, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		simulationNodes: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "physiograph_simulation_affected_nodes",
			Help:    "Number of affected nodes produced per simulation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		reloads: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "physiograph_graph_reloads_total",
			Help: "Total graph hot-reload attempts, by outcome.",
		}, []string{"outcome"}),
	}
	return m
}

// promHandler returns an http.Handler exposing m's registry in the
// Prometheus exposition format.
func promHandler(m *metrics) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
