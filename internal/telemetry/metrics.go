/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grimnir_scheduler"

// Scheduling engine metrics.
var (
	ScheduleOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_operations_total",
		Help:      "Scheduling operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	ScheduleOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "schedule_operation_duration_seconds",
		Help:      "Duration of scheduling operations in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"})

	ScheduleEntriesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_entries_created_total",
		Help:      "Schedule entries committed.",
	})

	ScheduleLockWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "schedule_lock_wait_seconds",
		Help:      "Time spent waiting for the schedule write lock.",
		Buckets:   []float64{0.0005, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Database metrics.
var (
	DatabaseQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Database operation duration by operation and table.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_errors_total",
		Help:      "Database operation errors.",
	}, []string{"operation", "type"})

	DatabaseConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_open",
		Help:      "Open database connections.",
	})
)

// HTTP API metrics.
var (
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight HTTP requests.",
	})
)

// EventsPublishedTotal counts schedule events forwarded to external sinks.
var EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "events_published_total",
	Help:      "Schedule events forwarded by sink and outcome.",
}, []string{"sink", "outcome"})

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ScheduleOperationsTotal,
		ScheduleOperationDuration,
		ScheduleEntriesCreatedTotal,
		ScheduleLockWaitSeconds,
		DatabaseQueryDuration,
		DatabaseErrorsTotal,
		DatabaseConnectionsActive,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveConnections,
		EventsPublishedTotal,
	}
}

// Register adds every collector to reg. Collectors already registered on
// reg are skipped so Register is safe to call more than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
