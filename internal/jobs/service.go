// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package jobs

import "context"

// Service adapts the engine lifecycle to a supervised Serve loop. The
// engine schedules its own work; Serve only ties shutdown of the worker
// pool and retry timers to the supervision tree.
type Service struct {
	eng *Engine
}

// NewService wraps the engine for the supervisor.
func NewService(eng *Engine) *Service {
	return &Service{eng: eng}
}

// Serve blocks until the context ends, then stops the engine. Pending
// retry timers are dropped; interrupted work is requeued by ResumePending
// on the next start.
func (s *Service) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.eng.Close()
	return ctx.Err()
}

func (s *Service) String() string { return "job-engine" }
