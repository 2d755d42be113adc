// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package jobs

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/curator/internal/event"
)

// Status is the lifecycle state of a job record.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the job store's view of one job, a projection over the job
// lifecycle events in the same log as everything else.
type Record struct {
	ID        event.JobID `json:"id"`
	Kind      string      `json:"kind"`
	Payload   any         `json:"payload,omitempty"`
	Status    Status      `json:"status"`
	Attempts  int         `json:"attempts"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	LastError string      `json:"lastError,omitempty"`

	// canonicalPayload is the byte-stable form used by deduped enqueue.
	canonicalPayload []byte
}

// Store is the job projection. Unlike the domain state it carries its own
// lock: the scheduler reads it concurrently from handler goroutines, while
// Apply is still only ever called from the single serialized fold path.
type Store struct {
	mu   sync.RWMutex
	jobs map[event.JobID]*Record
}

// NewStore returns an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[event.JobID]*Record)}
}

// Apply folds one event. Non-job events are ignored. A lifecycle fact that
// references an unknown job id, or whose kind disagrees with the record,
// indicates a replay-ordering or programming bug and aborts the fold.
func (s *Store) Apply(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := ev.Payload.(type) {
	case *event.JobEnqueued:
		if _, exists := s.jobs[p.JobID]; exists {
			return fmt.Errorf("job store: duplicate enqueue for job %s", p.JobID)
		}
		canonical, err := event.Canonical(p.Payload)
		if err != nil {
			return fmt.Errorf("job store: canonicalize payload for job %s: %w", p.JobID, err)
		}
		s.jobs[p.JobID] = &Record{
			ID:               p.JobID,
			Kind:             p.Kind,
			Payload:          p.Payload,
			Status:           StatusQueued,
			CreatedAt:        ev.CreatedAt,
			UpdatedAt:        ev.CreatedAt,
			canonicalPayload: canonical,
		}

	case *event.JobStarted:
		rec, err := s.lookup(p.JobID, p.Kind)
		if err != nil {
			return err
		}
		rec.Status = StatusRunning
		rec.Attempts = p.Attempt
		rec.UpdatedAt = ev.CreatedAt

	case *event.JobRetryScheduled:
		rec, err := s.lookup(p.JobID, p.Kind)
		if err != nil {
			return err
		}
		rec.Status = StatusQueued
		rec.Attempts = p.Attempt
		rec.LastError = p.Error
		rec.UpdatedAt = ev.CreatedAt

	case *event.JobCompleted:
		rec, err := s.lookup(p.JobID, p.Kind)
		if err != nil {
			return err
		}
		rec.Status = StatusCompleted
		rec.UpdatedAt = ev.CreatedAt

	case *event.JobFailed:
		rec, err := s.lookup(p.JobID, p.Kind)
		if err != nil {
			return err
		}
		rec.Status = StatusFailed
		rec.Attempts = p.Attempt
		rec.LastError = p.Error
		rec.UpdatedAt = ev.CreatedAt
	}
	return nil
}

// lookup must be called with s.mu held.
func (s *Store) lookup(id event.JobID, kind string) (*Record, error) {
	rec, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job store: unknown job id %s", id)
	}
	if rec.Kind != kind {
		return nil, fmt.Errorf("job store: kind mismatch for job %s: have %q, fact says %q", id, rec.Kind, kind)
	}
	return rec, nil
}

// Get returns a copy of one job record.
func (s *Store) Get(id event.JobID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List returns job records with the given status ordered by creation time
// then id; an empty status lists everything.
func (s *Store) List(status Status) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.jobs {
		if status == "" || rec.Status == status {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out
}

// FindActive returns a queued or running job of the same kind whose payload
// is structurally equal to the given canonical bytes. This is the
// idempotency lookup behind deduplicated enqueue.
func (s *Store) FindActive(kind string, canonicalPayload []byte) (event.JobID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Record
	for _, rec := range s.jobs {
		if rec.Kind != kind {
			continue
		}
		if rec.Status != StatusQueued && rec.Status != StatusRunning {
			continue
		}
		if bytes.Equal(rec.canonicalPayload, canonicalPayload) {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0].ID, true
}

// ResetRunning flips every running job back to queued, preserving its
// attempt count, and returns the affected ids. A job found running at
// startup was interrupted by the previous shutdown and is not trusted.
func (s *Store) ResetRunning() []event.JobID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.JobID
	for _, rec := range s.jobs {
		if rec.Status == StatusRunning {
			rec.Status = StatusQueued
			out = append(out, rec.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
