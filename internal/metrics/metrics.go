/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "board_nudge"

var (
	// Cycles counts pipeline runs. Labels: pipeline (triggers, board), outcome (ok, error, skipped, locked)
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"pipeline", "outcome"})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one pipeline run",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"pipeline"})

	// Decisions counts dedup outcomes. Labels: type (T1..T10), decision (notify, suppress)
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dedup",
		Name:      "decisions_total",
		Help:      "Trigger dedup decisions",
	}, []string{"type", "decision"})

	// SourceRequests counts outbound page fetches. Labels: source (jira, github), status (ok, error, retry)
	SourceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "requests_total",
		Help:      "Outbound page fetches against ticket and pull-request sources",
	}, []string{"source", "status"})

	MessagesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "messages_total",
		Help:      "Chat messages delivered",
	}, []string{"channel", "status"})
)
