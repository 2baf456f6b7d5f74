// Copyright 2026 Silt Data, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes pipeline counters and histograms for
// Prometheus scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const casConflictStatus = "cas_conflict"

// Collector holds every pipeline collector, registered once at startup.
type Collector struct {
	runs         *prometheus.CounterVec
	rowsAdded    *prometheus.CounterVec
	casConflicts *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	blobRequests *prometheus.CounterVec
}

// NewCollector builds the pipeline collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silt_runs_total",
			Help: "Count of pipeline runs by final status",
		}, []string{"dataset", "status"}),
		rowsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silt_rows_added_total",
			Help: "Count of rows published across all versions",
		}, []string{"dataset"}),
		casConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silt_cas_conflicts_total",
			Help: "Count of publishes that lost the pointer race",
		}, []string{"dataset"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "silt_run_duration_seconds",
			Help:    "Histogram of pipeline run durations",
			Buckets: []float64{0.1, 1.0, 5.0, 15.0, 60.0, 300.0, 1800.0},
		}, []string{"dataset"}),
		blobRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silt_blobstore_requests_total",
			Help: "Count of object store requests by operation",
		}, []string{"op"}),
	}
	reg.MustRegister(c.runs, c.rowsAdded, c.casConflicts, c.runDuration, c.blobRequests)
	return c
}

// RecordRun records one finished pipeline run.
func (c *Collector) RecordRun(dataset, status string, rowsAdded int, dur time.Duration) {
	c.runs.WithLabelValues(dataset, status).Inc()
	if rowsAdded > 0 {
		c.rowsAdded.WithLabelValues(dataset).Add(float64(rowsAdded))
	}
	if status == casConflictStatus {
		c.casConflicts.WithLabelValues(dataset).Inc()
	}
	c.runDuration.WithLabelValues(dataset).Observe(dur.Seconds())
}

// Handler serves reg for scraping.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
