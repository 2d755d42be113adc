// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// catalogd is the catalog daemon: it opens (or rebuilds) the event log,
// resumes interrupted jobs, and supervises the background loops until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/curator/internal/catalog"
	"github.com/tomtom215/curator/internal/config"
	"github.com/tomtom215/curator/internal/dedup"
	"github.com/tomtom215/curator/internal/jobs"
	"github.com/tomtom215/curator/internal/logging"
	"github.com/tomtom215/curator/internal/metrics"
	"github.com/tomtom215/curator/internal/supervisor"
	"github.com/tomtom215/curator/internal/wal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("log_dir", cfg.Log.Dir).
		Str("snapshot_dir", cfg.Snapshot.Dir).
		Int("concurrency", cfg.Jobs.Concurrency).
		Msg("Starting catalogd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, err := catalog.Open(ctx, catalog.Config{
		Log: wal.Config{
			Dir:             cfg.Log.Dir,
			Secret:          []byte(cfg.Log.Secret),
			SegmentMaxBytes: cfg.Log.SegmentMaxBytes,
			SyncWrites:      cfg.Log.SyncWrites,
			TailWindowBytes: cfg.Log.TailWindowBytes,
		},
		SnapshotDir:          cfg.Snapshot.Dir,
		SnapshotKeep:         cfg.Snapshot.Keep,
		SnapshotEveryRecords: cfg.Snapshot.EveryRecords,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open catalog")
	}
	defer func() {
		if err := core.Close(); err != nil {
			logging.Error().Err(err).Msg("Catalog close failed")
		}
	}()

	engine, err := jobs.NewEngine(core, core.JobStore(), jobs.Config{
		Concurrency:    cfg.Jobs.Concurrency,
		Pools:          cfg.Jobs.Pools,
		RetryBaseDelay: cfg.Jobs.RetryBaseDelay,
		RetryMaxDelay:  cfg.Jobs.RetryMaxDelay,
		MaxAttempts:    cfg.Jobs.MaxAttempts,
	}, jobs.RealClock{})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create job engine")
	}

	detector, err := dedup.NewDetector(core, dedup.Config{
		StrongDistance:   cfg.Dedup.StrongDistance,
		ProbableDistance: cfg.Dedup.ProbableDistance,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create dedup detector")
	}
	if err := detector.Register(engine); err != nil {
		logging.Fatal().Err(err).Msg("Failed to register dedup handlers")
	}

	// Jobs interrupted by the previous shutdown re-enter the queue at
	// their prior attempt count.
	engine.ResumePending()

	tree := supervisor.New(supervisor.TreeConfig{})
	tree.Add(jobs.NewService(engine))
	tree.Add(catalog.NewSnapshotService(core, cfg.Snapshot.Interval))
	if cfg.Metrics.Enabled {
		tree.Add(metrics.NewServer(cfg.Metrics.Addr))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}
	logging.Info().Msg("catalogd stopped")
}
