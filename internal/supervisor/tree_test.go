// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

// blockingService signals when started and runs until canceled.
type blockingService struct {
	name    string
	started chan struct{}
}

func newBlockingService(name string) *blockingService {
	return &blockingService{name: name, started: make(chan struct{}, 1)}
}

func (s *blockingService) Serve(ctx context.Context) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return s.name }

func TestNewAppliesDefaults(t *testing.T) {
	tree := New(TreeConfig{})
	if tree == nil {
		t.Fatal("New returned nil")
	}
	if tree.root == nil || tree.background == nil {
		t.Error("tree layers not constructed")
	}
}

func TestTreeStartsAndStopsServices(t *testing.T) {
	tree := New(TreeConfig{
		FailureBackoff:  100 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	svc := newBlockingService("snapshot-loop")
	tree.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- tree.Serve(ctx)
	}()

	select {
	case <-svc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("service was not started")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("tree did not shut down in time")
	}
}

func TestTreeRestartsFailedService(t *testing.T) {
	tree := New(TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	starts := make(chan struct{}, 4)
	tree.Add(&flakyService{starts: starts})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tree.Serve(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-starts:
		case <-time.After(3 * time.Second):
			t.Fatalf("service start %d did not happen", i+1)
		}
	}
}

// flakyService fails its first run and then blocks.
type flakyService struct {
	starts chan struct{}
	ran    bool
}

func (s *flakyService) Serve(ctx context.Context) error {
	s.starts <- struct{}{}
	if !s.ran {
		s.ran = true
		return errors.New("cold start")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *flakyService) String() string { return "flaky" }
