//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TelcoETL.
//
// TelcoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TelcoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TelcoETL. If not, see https://www.gnu.org/licenses/.


package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the per-run Prometheus metrics of a pipeline. A run is a
// short-lived batch job, so metrics are written to a node-exporter textfile
// rather than served.
type Metrics struct {
	registry    *prometheus.Registry
	rows        *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
	failures    *prometheus.CounterVec
	lastSuccess prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewMetrics creates the pipeline metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "telcoetl",
			Name:      "rows",
			Help:      "Rows handled by the last run, by phase.",
		}, []string{"phase"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "telcoetl",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each phase of the last run.",
		}, []string{"phase"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telcoetl",
			Name:      "failures_total",
			Help:      "Failed runs by phase and error kind.",
		}, []string{"phase", "kind"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "telcoetl",
			Name:      "last_run_success",
			Help:      "1 if the last run reached DONE, 0 otherwise.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "telcoetl",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	m.registry.MustRegister(m.rows, m.duration, m.failures, m.lastSuccess, m.lastRun)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observePhase(phase string, rows int, d time.Duration) {
	m.rows.WithLabelValues(phase).Set(float64(rows))
	m.duration.WithLabelValues(phase).Set(d.Seconds())
}

func (m *Metrics) observeFailure(phase, kind string) {
	m.failures.WithLabelValues(phase, kind).Inc()
}

func (m *Metrics) observeRun(success bool, finished time.Time) {
	if success {
		m.lastSuccess.Set(1)
	} else {
		m.lastSuccess.Set(0)
	}
	m.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes all metrics in the Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
