// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the insights service.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace  = "aleutian"
	insightsSubsystem = "insights"
)

var (
	// RequestsTotal counts insight generation requests.
	// Labels: status (success, error), cached (true, false)
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: insightsSubsystem,
		Name:      "requests_total",
		Help:      "Total insight generation requests by status and cache outcome",
	}, []string{"status", "cached"})

	// InsightsRejectedTotal counts insights dropped by a validation gate.
	// Labels: gate (allow_list, evidence, confidence, weak_correlation), reason
	InsightsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: insightsSubsystem,
		Name:      "rejected_total",
		Help:      "Total insights rejected by gate and reason",
	}, []string{"gate", "reason"})

	// ModelFallbackTotal counts retries against the default model after a
	// decommissioned-model error.
	ModelFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: insightsSubsystem,
		Name:      "model_fallback_total",
		Help:      "Total language-model calls retried with the default model",
	})

	// SnapshotWritesTotal counts snapshot persistence attempts.
	// Labels: status (success, error)
	SnapshotWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: insightsSubsystem,
		Name:      "snapshot_writes_total",
		Help:      "Total snapshot persistence attempts by status",
	}, []string{"status"})

	// PipelineDurationSeconds measures the end-to-end generation latency,
	// including collaborator calls.
	PipelineDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: insightsSubsystem,
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end insight pipeline latency",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)
