// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package supervisor builds the suture tree that keeps the daemon's
// background loops alive: the snapshot compaction loop and the optional
// metrics endpoint. Supervisor events are routed through sutureslog into
// the global zerolog logger.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/curator/internal/logging"
)

// TreeConfig tunes restart behavior. Zero values pick defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// Tree is the root supervisor plus the background layer beneath it.
type Tree struct {
	root       *suture.Supervisor
	background *suture.Supervisor
}

// New creates the tree. Services are added before Start.
func New(cfg TreeConfig) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5.0
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30.0
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	// sutureslog wants an slog.Logger; the adapter forwards to zerolog.
	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}

	root := suture.New("curator", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	background := suture.New("background", suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	root.Add(background)

	return &Tree{root: root, background: background}
}

// Add registers a service under the background layer.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.background.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
