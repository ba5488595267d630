// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package metrics exposes Prometheus collectors for the sync engine, the
// source adapters, and the dedup cache. Served on the ops listener.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pass metrics
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regsync_passes_total",
			Help: "Total number of synchronization passes by result",
		},
		[]string{"result"}, // "success", "source_error", "destination_error", "cache_error"
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "regsync_pass_duration_seconds",
			Help:    "Duration of synchronization passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LastPassTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "regsync_last_pass_timestamp_seconds",
			Help: "Unix timestamp of the last completed pass",
		},
	)

	// User accounting
	NewUsersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regsync_new_users_total",
			Help: "Total number of users determined new across all passes",
		},
	)

	SubmittedUsersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regsync_submitted_users_total",
			Help: "Total number of users successfully submitted to the meeting tool",
		},
	)

	FilteredUsersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regsync_filtered_users_total",
			Help: "Total number of users excluded by the email filter",
		},
	)

	// Destination metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regsync_destination_batches_total",
			Help: "Total number of destination batch submissions by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Source metrics
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regsync_source_requests_total",
			Help: "Total number of source fetches by source and result",
		},
		[]string{"source", "result"}, // result: "success", "failure"
	)

	MalformedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regsync_malformed_records_total",
			Help: "Total number of source records dropped for failing field validation",
		},
		[]string{"source"},
	)

	// Cache metrics
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "regsync_cache_entries",
			Help: "Current number of entries in the dedup cache",
		},
	)

	// Circuit breaker metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "regsync_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regsync_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordPass records the outcome of one synchronization pass.
func RecordPass(result string, duration time.Duration) {
	PassesTotal.WithLabelValues(result).Inc()
	PassDuration.Observe(duration.Seconds())
	LastPassTimestamp.SetToCurrentTime()
}
