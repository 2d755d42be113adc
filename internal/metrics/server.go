// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package metrics serves the Prometheus scrape endpoint. Individual
// packages register their collectors through promauto; this package only
// exposes them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/curator/internal/logging"
)

// Server is a supervised HTTP server exposing /metrics.
type Server struct {
	addr string
	log  zerolog.Logger
}

// NewServer builds a scrape endpoint bound to addr.
func NewServer(addr string) *Server {
	return &Server{
		addr: addr,
		log:  logging.With().Str("component", "metrics").Logger(),
	}
}

// Serve implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// String identifies the service in supervisor logs.
func (s *Server) String() string {
	return "metrics-server"
}
