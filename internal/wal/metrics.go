// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for append log operations.
var (
	walAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_appends_total",
		Help: "Total number of records appended to the log",
	})

	walRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_rotations_total",
		Help: "Total number of segment rotations",
	})

	walIntegrityFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wal_integrity_failures_total",
		Help: "Total number of log integrity violations detected, by reason",
	}, []string{"reason"})

	walAppendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wal_append_latency_seconds",
		Help:    "Append latency in seconds, including fsync",
		Buckets: prometheus.DefBuckets,
	})

	walLastSeq = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wal_last_seq",
		Help: "Sequence number of the most recently appended record",
	})
)

func recordAppend()                        { walAppendsTotal.Inc() }
func recordRotation()                      { walRotationsTotal.Inc() }
func recordIntegrityFailure(reason string) { walIntegrityFailuresTotal.WithLabelValues(reason).Inc() }
func recordAppendLatency(seconds float64)  { walAppendLatency.Observe(seconds) }
func setLastSeq(seq uint64)                { walLastSeq.Set(float64(seq)) }
