// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package catalog ties the append log, snapshot store, domain state, and
// job store into one core with a single serialized write path. Every
// Append runs log write and fold as one uninterrupted step under the core
// mutex, so aggregate maps never need their own synchronization.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/jobs"
	"github.com/tomtom215/curator/internal/logging"
	"github.com/tomtom215/curator/internal/snapshot"
	"github.com/tomtom215/curator/internal/state"
	"github.com/tomtom215/curator/internal/validation"
	"github.com/tomtom215/curator/internal/wal"
)

// Config holds the storage locations and snapshot retention for the core.
type Config struct {
	// Log configures the hash-chained append log.
	Log wal.Config

	// SnapshotDir holds pointer.json and the snapshot files.
	SnapshotDir string

	// SnapshotKeep is how many snapshot files to retain beyond the one the
	// pointer references.
	SnapshotKeep int

	// SnapshotEveryRecords triggers a snapshot once this many records have
	// been appended since the last one. 0 disables the record trigger.
	SnapshotEveryRecords int64
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if c.SnapshotDir == "" {
		return errors.New("catalog: SnapshotDir is required")
	}
	if c.SnapshotKeep < 1 {
		return fmt.Errorf("catalog: SnapshotKeep must be at least 1, got %d", c.SnapshotKeep)
	}
	if c.SnapshotEveryRecords < 0 {
		return fmt.Errorf("catalog: SnapshotEveryRecords must not be negative, got %d", c.SnapshotEveryRecords)
	}
	return nil
}

// Core owns the log and every projection folded from it.
type Core struct {
	cfg   Config
	log   zerolog.Logger
	wal   *wal.Log
	snaps *snapshot.Store
	jobs  *jobs.Store

	// mu serializes the append+fold step; queries hold the read side.
	mu sync.RWMutex
	st *state.State

	sinceSnapshot atomic.Int64
	snapshotCh    chan struct{}
}

// Open boots the core: open the log, load the newest snapshot, replay the
// tail, rebuild the job store. A log or snapshot integrity failure is
// unrecoverable in place; the corrupted directories are renamed aside with
// a .corrupt-<timestamp> suffix for forensics and the core starts fresh.
func Open(ctx context.Context, cfg Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.With().Str("component", "catalog").Logger()

	core, err := open(ctx, cfg, log)
	if err == nil {
		return core, nil
	}
	if !wal.IsIntegrityError(err) && !errors.Is(err, errSnapshotCorrupt) {
		return nil, err
	}

	log.Error().Err(err).Msg("stored catalog failed verification, preserving corrupted data and starting fresh")
	if err := preserveCorrupt(cfg.Log.Dir); err != nil {
		return nil, err
	}
	if err := preserveCorrupt(cfg.SnapshotDir); err != nil {
		return nil, err
	}
	return open(ctx, cfg, log)
}

func open(ctx context.Context, cfg Config, log zerolog.Logger) (*Core, error) {
	snaps, err := snapshot.New(cfg.SnapshotDir, cfg.SnapshotKeep)
	if err != nil {
		return nil, err
	}
	wl, err := wal.Open(cfg.Log)
	if err != nil {
		return nil, err
	}

	core := &Core{
		cfg:        cfg,
		log:        log,
		wal:        wl,
		snaps:      snaps,
		jobs:       jobs.NewStore(),
		st:         state.New(),
		snapshotCh: make(chan struct{}, 1),
	}
	if err := core.rebuild(ctx); err != nil {
		_ = wl.Close()
		return nil, err
	}
	return core, nil
}

// errSnapshotCorrupt marks snapshot-store damage for the Open fallback.
var errSnapshotCorrupt = errors.New("catalog: snapshot corrupt")

// rebuild restores domain state from the newest snapshot plus the log tail
// past it. The job store is not snapshotted; it folds job facts from the
// entire log so interrupted jobs survive restarts at their prior attempt
// count.
func (c *Core) rebuild(ctx context.Context) error {
	var snapSeq uint64
	ptr, ok, err := c.snaps.ReadPointer()
	if err != nil {
		return fmt.Errorf("%w: %w", errSnapshotCorrupt, err)
	}
	if ok {
		st, err := c.snaps.Load(ptr)
		if err != nil {
			return fmt.Errorf("%w: %w", errSnapshotCorrupt, err)
		}
		st.RebuildIndexes()
		c.st = st
		snapSeq = ptr.WALSeq
		c.log.Info().
			Uint64("snapshot_seq", snapSeq).
			Str("snapshot_file", ptr.SnapshotFile).
			Msg("restored state from snapshot")
	}

	var replayed int
	err = c.wal.ReadAll(ctx, func(rec wal.Record) error {
		if err := c.jobs.Apply(rec.Event); err != nil {
			return err
		}
		if rec.Seq > snapSeq {
			c.st.Apply(rec.Event)
			replayed++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if last := c.wal.LastSeq(); snapSeq > last {
		return fmt.Errorf("%w: pointer references seq %d beyond log end %d", errSnapshotCorrupt, snapSeq, last)
	}
	c.log.Info().
		Int("replayed", replayed).
		Uint64("last_seq", c.wal.LastSeq()).
		Msg("catalog rebuilt")
	return nil
}

// preserveCorrupt renames dir aside with a timestamped .corrupt suffix.
// Missing directories are fine.
func preserveCorrupt(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	dst := fmt.Sprintf("%s.corrupt-%s", dir, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(dir, dst); err != nil {
		return fmt.Errorf("catalog: preserve corrupted %s: %w", dir, err)
	}
	return nil
}

// Append writes the event to the log and folds it into domain state and
// job store as one serialized step. This is the only mutation path; it
// also satisfies the job engine's sink interface. Payloads are validated
// first, so a malformed fact is rejected before anything is written.
func (c *Core) Append(ev event.Event) error {
	if err := validation.ValidateStruct(ev.Payload); err != nil {
		return fmt.Errorf("catalog: reject %s: %w", ev.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.wal.Append(ev); err != nil {
		return err
	}
	if err := c.jobs.Apply(ev); err != nil {
		// The record is durable but the fold rejected it. This is a
		// programming bug, not a runtime condition; surface it loudly.
		c.log.Error().Err(err).Str("type", string(ev.Type)).Msg("job store rejected appended event")
		return err
	}
	c.st.Apply(ev)

	if every := c.cfg.SnapshotEveryRecords; every > 0 {
		if c.sinceSnapshot.Add(1) >= every {
			select {
			case c.snapshotCh <- struct{}{}:
			default:
			}
		}
	}
	return nil
}

// Snapshot writes the current state to a new snapshot file, flips the
// pointer, and prunes old files per the retention policy.
func (c *Core) Snapshot() (snapshot.Pointer, error) {
	c.mu.RLock()
	seq := c.wal.LastSeq()
	ptr, err := c.snaps.Write(seq, c.st)
	c.mu.RUnlock()
	if err != nil {
		return snapshot.Pointer{}, err
	}
	c.sinceSnapshot.Store(0)
	if err := c.snaps.Prune(); err != nil {
		c.log.Warn().Err(err).Msg("snapshot prune failed")
	}
	c.log.Info().Uint64("wal_seq", ptr.WALSeq).Str("file", ptr.SnapshotFile).Msg("snapshot written")
	return ptr, nil
}

// SnapshotTrigger fires when enough records have been appended since the
// last snapshot. The compaction loop selects on it alongside its timer.
func (c *Core) SnapshotTrigger() <-chan struct{} {
	return c.snapshotCh
}

// LastSeq returns the sequence number of the newest acknowledged record.
func (c *Core) LastSeq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wal.LastSeq()
}

// JobStore exposes the job projection for engine construction.
func (c *Core) JobStore() *jobs.Store {
	return c.jobs
}

// Close closes the log. In-flight appends complete first.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wal.Close()
}
