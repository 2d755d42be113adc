// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the job engine, labeled by job kind where the
// cardinality is bounded (kinds are a small fixed registration set).
var (
	jobsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_enqueued_total",
		Help: "Total number of jobs enqueued",
	}, []string{"kind"})

	jobsDedupHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_dedup_hits_total",
		Help: "Total number of deduplicated enqueue calls answered by an existing job",
	}, []string{"kind"})

	jobsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_started_total",
		Help: "Total number of job execution attempts started",
	}, []string{"kind"})

	jobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Total number of jobs completed successfully",
	}, []string{"kind"})

	jobsRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_retries_total",
		Help: "Total number of retries scheduled",
	}, []string{"kind"})

	jobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_failed_total",
		Help: "Total number of jobs failed permanently",
	}, []string{"kind"})

	jobsQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_queue_depth",
		Help: "Current number of jobs waiting in the run queue",
	})

	jobsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_inflight",
		Help: "Current number of jobs executing",
	})
)

func recordEnqueued(kind string)       { jobsEnqueuedTotal.WithLabelValues(kind).Inc() }
func recordDedupHit(kind string)       { jobsDedupHitsTotal.WithLabelValues(kind).Inc() }
func recordStarted(kind string)        { jobsStartedTotal.WithLabelValues(kind).Inc() }
func recordCompleted(kind string)      { jobsCompletedTotal.WithLabelValues(kind).Inc() }
func recordRetryScheduled(kind string) { jobsRetriesTotal.WithLabelValues(kind).Inc() }
func recordFailed(kind string)         { jobsFailedTotal.WithLabelValues(kind).Inc() }
func setQueueDepth(n int)              { jobsQueueDepth.Set(float64(n)) }
func setInflight(n int)                { jobsInflight.Set(float64(n)) }
