/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yorkie-team/tandem/internal/version"
)

const (
	namespace     = "tandem"
	taskTypeLabel = "task_type"
	resultLabel   = "result"
	routeLabel    = "route"
)

// Metrics manages the metric information that Tandem is trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion        *prometheus.GaugeVec
	serverHandledCounter *prometheus.CounterVec
	serverHandledSeconds *prometheus.HistogramVec

	saveTotal          *prometheus.CounterVec
	saveBytesTotal     prometheus.Counter
	saveResponseSecond prometheus.Histogram

	sweepRunsTotal     *prometheus.CounterVec
	sweepDeletedTotal  prometheus.Counter
	sweepFreedBytes    prometheus.Counter
	sweepSkippedTotal  prometheus.Counter
	colorAssignedTotal *prometheus.CounterVec

	backgroundGoroutinesTotal *prometheus.GaugeVec

	awarenessConnectionsTotal prometheus.Gauge
	awarenessMessagesTotal    *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		serverHandledCounter: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "server_handled_total",
			Help:      "Total number of HTTP requests completed on the server, regardless of success or failure.",
		}, []string{"method", routeLabel, "code"}),
		serverHandledSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "server_handled_seconds",
			Help:      "The response time of HTTP requests.",
		}, []string{routeLabel}),
		saveTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "saves_total",
			Help:      "The total count of batch saves by result, either success or the error kind.",
		}, []string{resultLabel}),
		saveBytesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "saved_bytes_total",
			Help:      "The total bytes of channel content accepted by batch saves.",
		}),
		saveResponseSecond: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "response_seconds",
			Help:      "The response time of batch saves.",
		}),
		sweepRunsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "The total count of sweeps.",
		}, []string{"dry_run"}),
		sweepDeletedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "deleted_sessions_total",
			Help:      "The total count of sessions deleted by sweeps.",
		}),
		sweepFreedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "freed_bytes_total",
			Help:      "The total bytes of content freed by sweeps.",
		}),
		sweepSkippedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "skipped_sessions_total",
			Help:      "The total count of candidates that became active before they could be deleted.",
		}),
		colorAssignedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "colors",
			Name:      "assigned_total",
			Help:      "The total count of color assignments by outcome.",
		}, []string{resultLabel}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by the server.",
		}, []string{taskTypeLabel}),
		awarenessConnectionsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "awareness",
			Name:      "connections_total",
			Help:      "The number of open awareness connections.",
		}),
		awarenessMessagesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "awareness",
			Name:      "messages_total",
			Help:      "The total count of awareness messages by type.",
		}, []string{"type"}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddServerHandledCounter adds a counter for a completed HTTP request.
func (m *Metrics) AddServerHandledCounter(method, route string, code int) {
	m.serverHandledCounter.With(prometheus.Labels{
		"method":   method,
		routeLabel: route,
		"code":     strconv.Itoa(code),
	}).Inc()
}

// ObserveServerHandledSeconds records the response time of a route.
func (m *Metrics) ObserveServerHandledSeconds(route string, seconds float64) {
	m.serverHandledSeconds.With(prometheus.Labels{routeLabel: route}).Observe(seconds)
}

// AddSave counts a batch save by its result.
func (m *Metrics) AddSave(result string) {
	m.saveTotal.With(prometheus.Labels{resultLabel: result}).Inc()
}

// AddSavedBytes adds the bytes accepted by a batch save.
func (m *Metrics) AddSavedBytes(bytes int) {
	m.saveBytesTotal.Add(float64(bytes))
}

// ObserveSaveResponseSeconds records the response time of a batch save.
func (m *Metrics) ObserveSaveResponseSeconds(seconds float64) {
	m.saveResponseSecond.Observe(seconds)
}

// AddSweep records the outcome of a sweep.
func (m *Metrics) AddSweep(dryRun bool, deleted int, freedBytes int64, skipped int) {
	m.sweepRunsTotal.With(prometheus.Labels{"dry_run": strconv.FormatBool(dryRun)}).Inc()
	if dryRun {
		return
	}
	m.sweepDeletedTotal.Add(float64(deleted))
	m.sweepFreedBytes.Add(float64(freedBytes))
	m.sweepSkippedTotal.Add(float64(skipped))
}

// AddColorAssigned counts a color assignment by how it was resolved.
func (m *Metrics) AddColorAssigned(result string) {
	m.colorAssignedTotal.With(prometheus.Labels{resultLabel: result}).Inc()
}

// AddBackgroundGoroutines adds the number of goroutines attached by the server.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes the number of goroutines attached by the server.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// AddAwarenessConnections counts an opened awareness connection.
func (m *Metrics) AddAwarenessConnections() {
	m.awarenessConnectionsTotal.Inc()
}

// RemoveAwarenessConnections counts a closed awareness connection.
func (m *Metrics) RemoveAwarenessConnections() {
	m.awarenessConnectionsTotal.Dec()
}

// AddAwarenessMessage counts an awareness message of the given type.
func (m *Metrics) AddAwarenessMessage(msgType string) {
	m.awarenessMessagesTotal.With(prometheus.Labels{"type": msgType}).Inc()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
