// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package dedup implements the probable-duplicate detection jobs. A scan
// job compares a freshly ingested entry against other entries sharing its
// coarse (size, headHash) bucket using perceptual-hash distance, emitting
// either an automatic strong duplicate link or a pending quarantine item
// for human review. Accept and reject jobs resolve quarantine items.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/jobs"
	"github.com/tomtom215/curator/internal/logging"
	"github.com/tomtom215/curator/internal/state"
)

// Job kinds registered by this package.
const (
	KindScan             = "dedup.scan"
	KindQuarantineAccept = "dedup.quarantine_accept"
	KindQuarantineReject = "dedup.quarantine_reject"
)

// ScanPayload triggers duplicate detection for one ingested entry.
type ScanPayload struct {
	EntryID event.EntryID `json:"entryId"`
}

// AcceptPayload resolves a quarantine item in favor of one candidate.
type AcceptPayload struct {
	QuarantineID    event.QuarantineID `json:"quarantineId"`
	AcceptedMediaID event.MediaID      `json:"acceptedMediaId"`
}

// RejectPayload resolves a quarantine item as not-a-duplicate.
type RejectPayload struct {
	QuarantineID event.QuarantineID `json:"quarantineId"`
	Reason       string             `json:"reason,omitempty"`
}

// Catalog is the slice of the catalog core the handlers need: one append
// entry point and read access to the folded domain state.
type Catalog interface {
	Append(ev event.Event) error
	Entry(id event.EntryID) (state.SourceEntry, bool)
	Ingest(id event.EntryID) state.IngestStatus
	ActiveBucketEntries(size int64, headHash string) []state.SourceEntry
	QuarantineForEntry(id event.EntryID) (state.QuarantineItem, bool)
	QuarantineItemByID(id event.QuarantineID) (state.QuarantineItem, bool)
	MetadataFor(id event.MediaID) (state.MediaMetadata, bool)
}

// Config holds the similarity thresholds.
type Config struct {
	// StrongDistance is the maximum Hamming distance for an automatic
	// strong duplicate link.
	StrongDistance int

	// ProbableDistance is the maximum Hamming distance for a quarantine
	// candidate. Must not be below StrongDistance.
	ProbableDistance int
}

// DefaultConfig returns conservative thresholds.
func DefaultConfig() Config {
	return Config{StrongDistance: 2, ProbableDistance: 8}
}

// Validate checks threshold ordering and range.
func (c *Config) Validate() error {
	if c.StrongDistance < 0 || c.StrongDistance > 64 {
		return fmt.Errorf("dedup: strong_distance must be in [0,64], got %d", c.StrongDistance)
	}
	if c.ProbableDistance < 0 || c.ProbableDistance > 64 {
		return fmt.Errorf("dedup: probable_distance must be in [0,64], got %d", c.ProbableDistance)
	}
	if c.StrongDistance > c.ProbableDistance {
		return fmt.Errorf("dedup: strong_distance %d exceeds probable_distance %d",
			c.StrongDistance, c.ProbableDistance)
	}
	return nil
}

// Detector owns the scan and quarantine-resolution job handlers.
type Detector struct {
	cfg Config
	cat Catalog
	log zerolog.Logger
}

// NewDetector builds a detector over the catalog.
func NewDetector(cat Catalog, cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cfg: cfg,
		cat: cat,
		log: logging.With().Str("component", "dedup").Logger(),
	}, nil
}

// Register wires the three job kinds into the engine. Scan work is
// CPU-cheap and read-heavy, so a single attempt suffices; resolution jobs
// are operator-driven and also run once.
func (d *Detector) Register(eng *jobs.Engine) error {
	if err := eng.Register(KindScan, d.HandleScan); err != nil {
		return err
	}
	if err := eng.Register(KindQuarantineAccept, d.HandleAccept); err != nil {
		return err
	}
	return eng.Register(KindQuarantineReject, d.HandleReject)
}

// HandleScan runs duplicate detection for the entry named in the payload.
//
// The entry must be fully imported and must not already have a quarantine
// item. Candidates come from the entry's (size, headHash) bucket; if any
// candidate already has a pending quarantine item the whole scan aborts
// before any distance is evaluated, so a cluster is never processed from
// two directions at once. Note that this abort fires on the coarse bucket,
// which can suppress a perceptual match against candidates that are
// visually unrelated to the pending item.
func (d *Detector) HandleScan(ctx context.Context, job jobs.Job) error {
	var p ScanPayload
	if err := job.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode scan payload: %w", err)
	}
	if p.EntryID == "" {
		return errors.New("scan payload missing entryId")
	}

	entry, ok := d.cat.Entry(p.EntryID)
	if !ok {
		d.log.Warn().Str("entry_id", string(p.EntryID)).Msg("scan target no longer exists, skipping")
		return nil
	}
	if _, ok := d.cat.QuarantineForEntry(p.EntryID); ok {
		d.log.Debug().Str("entry_id", string(p.EntryID)).Msg("entry already quarantined, skipping")
		return nil
	}
	ingest := d.cat.Ingest(p.EntryID)
	if ingest.State != state.IngestImported {
		d.log.Debug().
			Str("entry_id", string(p.EntryID)).
			Str("ingest_state", string(ingest.State)).
			Msg("entry not fully imported, skipping")
		return nil
	}

	ownHash, ok := d.perceptualHash(ingest.MediaID)
	if !ok {
		d.log.Debug().
			Str("entry_id", string(p.EntryID)).
			Str("media_id", string(ingest.MediaID)).
			Msg("no usable perceptual hash, skipping")
		return nil
	}

	type candidate struct {
		mediaID event.MediaID
		hash    uint64
	}
	var candidates []candidate
	seen := map[event.MediaID]struct{}{ingest.MediaID: {}}
	for _, other := range d.cat.ActiveBucketEntries(entry.Size, entry.HeadHash) {
		if other.ID == entry.ID {
			continue
		}
		if item, ok := d.cat.QuarantineForEntry(other.ID); ok && item.Status == event.QuarantineStatusPending {
			d.log.Info().
				Str("entry_id", string(p.EntryID)).
				Str("candidate_entry_id", string(other.ID)).
				Str("quarantine_id", string(item.ID)).
				Msg("bucket candidate has a pending quarantine, aborting scan")
			return nil
		}
		mediaID, ok := mediaOf(d.cat.Ingest(other.ID))
		if !ok {
			continue
		}
		if _, dup := seen[mediaID]; dup {
			continue
		}
		seen[mediaID] = struct{}{}
		hash, ok := d.perceptualHash(mediaID)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{mediaID: mediaID, hash: hash})
	}

	var probable []event.MediaID
	for _, c := range candidates {
		dist := Distance(ownHash, c.hash)
		switch {
		case dist <= d.cfg.StrongDistance:
			ev := event.New(event.TypeDuplicateLinkCreated, &event.DuplicateLinkCreated{
				LinkID:  event.NewLinkID(),
				MediaID: c.mediaID,
				EntryID: entry.ID,
				Level:   event.LinkLevelStrong,
				Reason:  fmt.Sprintf("dhash distance %d", dist),
			}).WithJob(job.JobID)
			if err := d.cat.Append(ev); err != nil {
				return fmt.Errorf("append strong duplicate link: %w", err)
			}
			d.log.Info().
				Str("entry_id", string(entry.ID)).
				Str("media_id", string(c.mediaID)).
				Int("distance", dist).
				Msg("strong duplicate link created")
		case dist <= d.cfg.ProbableDistance:
			probable = append(probable, c.mediaID)
		}
	}

	if len(probable) == 0 {
		return nil
	}
	candidateIDs := append([]event.MediaID{ingest.MediaID}, probable...)
	ev := event.New(event.TypeQuarantineCreated, &event.QuarantineCreated{
		QuarantineID: event.NewQuarantineID(),
		EntryID:      entry.ID,
		CandidateIDs: candidateIDs,
	}).WithJob(job.JobID)
	if err := d.cat.Append(ev); err != nil {
		return fmt.Errorf("append quarantine: %w", err)
	}
	d.log.Info().
		Str("entry_id", string(entry.ID)).
		Int("candidates", len(candidateIDs)).
		Msg("probable duplicates quarantined for review")
	return nil
}

// HandleAccept resolves a quarantine item in favor of one candidate and
// links the accepted media to the quarantined entry at probable level.
// No-op if the item is not pending.
func (d *Detector) HandleAccept(ctx context.Context, job jobs.Job) error {
	var p AcceptPayload
	if err := job.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode accept payload: %w", err)
	}
	item, ok := d.cat.QuarantineItemByID(p.QuarantineID)
	if !ok {
		return fmt.Errorf("quarantine item %s not found", p.QuarantineID)
	}
	if item.Status != event.QuarantineStatusPending {
		d.log.Debug().
			Str("quarantine_id", string(item.ID)).
			Str("status", string(item.Status)).
			Msg("quarantine already resolved, ignoring accept")
		return nil
	}
	if !item.HasCandidate(p.AcceptedMediaID) {
		return fmt.Errorf("media %s is not a candidate of quarantine item %s",
			p.AcceptedMediaID, item.ID)
	}

	accepted := event.New(event.TypeQuarantineAccepted, &event.QuarantineAccepted{
		QuarantineID:    item.ID,
		AcceptedMediaID: p.AcceptedMediaID,
	}).WithJob(job.JobID)
	if err := d.cat.Append(accepted); err != nil {
		return fmt.Errorf("append quarantine accepted: %w", err)
	}
	link := event.New(event.TypeDuplicateLinkCreated, &event.DuplicateLinkCreated{
		LinkID:  event.NewLinkID(),
		MediaID: p.AcceptedMediaID,
		EntryID: item.EntryID,
		Level:   event.LinkLevelProbable,
		Reason:  fmt.Sprintf("quarantine %s accepted", item.ID),
	}).WithJob(job.JobID)
	if err := d.cat.Append(link); err != nil {
		return fmt.Errorf("append probable duplicate link: %w", err)
	}
	d.log.Info().
		Str("quarantine_id", string(item.ID)).
		Str("media_id", string(p.AcceptedMediaID)).
		Msg("quarantine accepted")
	return nil
}

// HandleReject resolves a quarantine item as not-a-duplicate. No link is
// created. No-op if the item is not pending.
func (d *Detector) HandleReject(ctx context.Context, job jobs.Job) error {
	var p RejectPayload
	if err := job.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode reject payload: %w", err)
	}
	item, ok := d.cat.QuarantineItemByID(p.QuarantineID)
	if !ok {
		return fmt.Errorf("quarantine item %s not found", p.QuarantineID)
	}
	if item.Status != event.QuarantineStatusPending {
		d.log.Debug().
			Str("quarantine_id", string(item.ID)).
			Str("status", string(item.Status)).
			Msg("quarantine already resolved, ignoring reject")
		return nil
	}

	ev := event.New(event.TypeQuarantineRejected, &event.QuarantineRejected{
		QuarantineID: item.ID,
		Reason:       p.Reason,
	}).WithJob(job.JobID)
	if err := d.cat.Append(ev); err != nil {
		return fmt.Errorf("append quarantine rejected: %w", err)
	}
	d.log.Info().Str("quarantine_id", string(item.ID)).Msg("quarantine rejected")
	return nil
}

// perceptualHash resolves and parses the media's stored dhash.
func (d *Detector) perceptualHash(id event.MediaID) (uint64, bool) {
	md, ok := d.cat.MetadataFor(id)
	if !ok {
		return 0, false
	}
	raw, alg := md.Metadata.PerceptualHash()
	if raw == "" || (alg != "" && alg != AlgorithmDHash) {
		return 0, false
	}
	v, err := ParseHash(raw)
	if err != nil {
		d.log.Warn().Str("media_id", string(id)).Err(err).Msg("unparseable perceptual hash")
		return 0, false
	}
	return v, true
}

// mediaOf maps an ingest status to the media carrying the entry's content.
func mediaOf(st state.IngestStatus) (event.MediaID, bool) {
	switch st.State {
	case state.IngestImported:
		return st.MediaID, true
	case state.IngestDuplicate:
		return st.ExistingMediaID, true
	default:
		return "", false
	}
}
