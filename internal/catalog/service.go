// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curator/internal/logging"
)

// SnapshotService is the supervised compaction loop. It snapshots on a
// fixed interval and whenever the core signals that enough records have
// been appended since the last snapshot.
type SnapshotService struct {
	core     *Core
	interval time.Duration
	log      zerolog.Logger
}

// NewSnapshotService builds the loop. interval 0 disables the timer, in
// which case only the record-count trigger fires.
func NewSnapshotService(core *Core, interval time.Duration) *SnapshotService {
	return &SnapshotService{
		core:     core,
		interval: interval,
		log:      logging.With().Str("component", "snapshot-loop").Logger(),
	}
}

// Serve implements suture.Service. A failed snapshot write is logged and
// retried on the next trigger rather than crashing the service.
func (s *SnapshotService) Serve(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		case <-s.core.SnapshotTrigger():
		}
		if _, err := s.core.Snapshot(); err != nil {
			s.log.Error().Err(err).Msg("periodic snapshot failed")
		}
	}
}

// String identifies the service in supervisor logs.
func (s *SnapshotService) String() string {
	return "snapshot-loop"
}
