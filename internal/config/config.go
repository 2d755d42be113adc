// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package config loads daemon configuration from three layers merged in
// order of increasing priority: built-in defaults, an optional YAML file,
// and CURATOR_-prefixed environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/curator/internal/validation"
)

// Config is the root configuration tree for catalogd.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Log      LogConfig      `koanf:"log"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Dedup    DedupConfig    `koanf:"dedup"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// LogConfig configures the hash-chained append log.
type LogConfig struct {
	// Dir holds the NDJSON segment files.
	Dir string `koanf:"dir" validate:"required"`

	// Secret is the HMAC key authenticating every record. Required; there
	// is no default because a guessable key defeats tamper evidence.
	Secret string `koanf:"secret" validate:"required,min=16"`

	// SegmentMaxBytes is the size threshold that triggers segment rotation.
	SegmentMaxBytes int64 `koanf:"segment_max_bytes" validate:"min=0"`

	// SyncWrites fsyncs each append before acknowledging it.
	SyncWrites bool `koanf:"sync_writes"`

	// TailWindowBytes bounds the startup recovery read of the newest segment.
	TailWindowBytes int64 `koanf:"tail_window_bytes" validate:"min=0"`
}

// SnapshotConfig configures snapshot writing and retention.
type SnapshotConfig struct {
	Dir string `koanf:"dir" validate:"required"`

	// Interval between periodic snapshots taken by the compaction loop.
	Interval time.Duration `koanf:"interval" validate:"min=0"`

	// EveryRecords additionally snapshots once this many records have been
	// appended since the last snapshot. 0 disables the record trigger.
	EveryRecords int64 `koanf:"every_records" validate:"min=0"`

	// Keep is how many snapshot files to retain beyond the current pointer.
	Keep int `koanf:"keep" validate:"min=1"`
}

// JobsConfig configures the job engine.
type JobsConfig struct {
	// Concurrency is the global cap on in-flight jobs.
	Concurrency int `koanf:"concurrency" validate:"min=1"`

	// Pools caps in-flight jobs per named pool. Pool caps must not exceed
	// the global cap.
	Pools map[string]int `koanf:"pools"`

	// MaxAttempts overrides the per-kind attempt budget. Kinds not listed
	// use the handler registration default.
	MaxAttempts map[string]int `koanf:"max_attempts"`

	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"min=0"`
	RetryMaxDelay  time.Duration `koanf:"retry_max_delay" validate:"min=0"`
}

// DedupConfig configures perceptual-hash similarity thresholds.
type DedupConfig struct {
	StrongDistance   int `koanf:"strong_distance" validate:"min=0,max=64"`
	ProbableDistance int `koanf:"probable_distance" validate:"min=0,max=64"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// defaultConfig returns the built-in defaults, the lowest-priority layer.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Log: LogConfig{
			Dir:             "/data/curator/log",
			Secret:          "", // must be provided
			SegmentMaxBytes: 8 << 20,
			SyncWrites:      true,
			TailWindowBytes: 256 << 10,
		},
		Snapshot: SnapshotConfig{
			Dir:          "/data/curator/snapshots",
			Interval:     15 * time.Minute,
			EveryRecords: 10000,
			Keep:         3,
		},
		Jobs: JobsConfig{
			Concurrency: 4,
			Pools: map[string]int{
				"io":  2,
				"cpu": 2,
			},
			MaxAttempts: map[string]int{
				"media.extract_metadata": 3,
			},
			RetryBaseDelay: 500 * time.Millisecond,
			RetryMaxDelay:  30 * time.Second,
		},
		Dedup: DedupConfig{
			StrongDistance:   2,
			ProbableDistance: 8,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// Validate applies struct-tag validation and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Dedup.StrongDistance > c.Dedup.ProbableDistance {
		return fmt.Errorf("config: dedup.strong_distance %d exceeds dedup.probable_distance %d",
			c.Dedup.StrongDistance, c.Dedup.ProbableDistance)
	}
	for name, capacity := range c.Jobs.Pools {
		if capacity < 1 {
			return fmt.Errorf("config: jobs.pools.%s must be at least 1, got %d", name, capacity)
		}
		if capacity > c.Jobs.Concurrency {
			return fmt.Errorf("config: jobs.pools.%s cap %d exceeds jobs.concurrency %d",
				name, capacity, c.Jobs.Concurrency)
		}
	}
	for kind, attempts := range c.Jobs.MaxAttempts {
		if attempts < 1 {
			return fmt.Errorf("config: jobs.max_attempts.%s must be at least 1, got %d", kind, attempts)
		}
	}
	if c.Jobs.RetryMaxDelay > 0 && c.Jobs.RetryBaseDelay > c.Jobs.RetryMaxDelay {
		return fmt.Errorf("config: jobs.retry_base_delay %s exceeds jobs.retry_max_delay %s",
			c.Jobs.RetryBaseDelay, c.Jobs.RetryMaxDelay)
	}
	return nil
}
