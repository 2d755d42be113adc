// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_writes_total",
		Help: "Total number of snapshots written",
	})

	snapshotRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_rows",
		Help: "Row count of the most recent snapshot",
	})

	snapshotWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_write_latency_seconds",
		Help:    "Snapshot write latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func recordSnapshotWrite(rows int, seconds float64) {
	snapshotWritesTotal.Inc()
	snapshotRows.Set(float64(rows))
	snapshotWriteLatency.Observe(seconds)
}
