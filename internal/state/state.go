// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package state holds the derived in-memory aggregates of the catalog:
// sources, entries, media, ingest status, metadata, duplicate links,
// quarantine items, and albums. State is a pure fold over the append log; it
// is fully disposable and reconstructible, and must only ever be mutated
// from the single place that folds events (see internal/catalog).
package state

import (
	"strings"

	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/logging"
)

// bucketKey is the coarse duplicate-candidate grouping: same byte size and
// same hash of the first 64KB.
type bucketKey struct {
	size     int64
	headHash string
}

// identityKey is the idempotent-upsert key of a source entry.
func identityKey(sourceID event.SourceID, kind event.EntryKind, path string) string {
	return string(sourceID) + "|" + string(kind) + "|" + path
}

// State owns all aggregate maps. It carries no locks: mutation happens only
// through Apply, and Apply is called from exactly one serialized fold path.
type State struct {
	sources    map[event.SourceID]*Source
	entries    map[event.EntryID]*SourceEntry
	media      map[event.MediaID]*Media
	ingest     map[event.EntryID]*IngestStatus
	metadata   map[event.MediaID]*MediaMetadata
	links      map[event.LinkID]*DuplicateLink
	quarantine map[event.QuarantineID]*QuarantineItem
	albums     map[event.AlbumID]*Album

	// Derived indexes. Never snapshotted; rebuilt after a snapshot load.
	entryByIdentity   map[string]event.EntryID
	buckets           map[bucketKey]map[event.EntryID]struct{}
	mediaBySHA        map[string]event.MediaID
	quarantineByEntry map[event.EntryID]event.QuarantineID
}

// New returns an empty state.
func New() *State {
	return &State{
		sources:           make(map[event.SourceID]*Source),
		entries:           make(map[event.EntryID]*SourceEntry),
		media:             make(map[event.MediaID]*Media),
		ingest:            make(map[event.EntryID]*IngestStatus),
		metadata:          make(map[event.MediaID]*MediaMetadata),
		links:             make(map[event.LinkID]*DuplicateLink),
		quarantine:        make(map[event.QuarantineID]*QuarantineItem),
		albums:            make(map[event.AlbumID]*Album),
		entryByIdentity:   make(map[string]event.EntryID),
		buckets:           make(map[bucketKey]map[event.EntryID]struct{}),
		mediaBySHA:        make(map[string]event.MediaID),
		quarantineByEntry: make(map[event.EntryID]event.QuarantineID),
	}
}

// Apply folds one event into the aggregates. Job lifecycle events are owned
// by the job store projection and ignored here. Events referencing unknown
// aggregates are deterministic no-ops so replay of any valid log converges
// to the same state.
func (s *State) Apply(ev event.Event) {
	switch p := ev.Payload.(type) {
	case *event.SourceCreated:
		s.applySourceCreated(ev, p)
	case *event.SourceUpdated:
		s.applySourceUpdated(p)
	case *event.SourceRemoved:
		s.applySourceRemoved(p)
	case *event.EntryUpserted:
		s.applyEntryUpserted(p)
	case *event.EntryMarkedMissing:
		s.applyEntryMarkedMissing(p)
	case *event.MediaHashComputed:
		s.applyMediaHashComputed(p)
	case *event.MediaImported:
		s.applyMediaImported(p)
	case *event.MediaMetadataExtracted:
		s.applyMediaMetadataExtracted(p)
	case *event.MediaSkippedDuplicate:
		s.applyMediaSkippedDuplicate(p)
	case *event.DuplicateLinkCreated:
		s.applyDuplicateLinkCreated(ev, p)
	case *event.QuarantineCreated:
		s.applyQuarantineCreated(ev, p)
	case *event.QuarantineAccepted:
		s.applyQuarantineAccepted(ev, p)
	case *event.QuarantineRejected:
		s.applyQuarantineRejected(ev, p)
	case *event.AlbumCreated:
		s.applyAlbumCreated(ev, p)
	case *event.AlbumRenamed:
		s.applyAlbumRenamed(p)
	case *event.AlbumRemoved:
		s.applyAlbumRemoved(p)
	case *event.AlbumMediaAdded:
		s.applyAlbumMediaAdded(p)
	case *event.AlbumMediaRemoved:
		s.applyAlbumMediaRemoved(p)
	}
}

func (s *State) applySourceCreated(ev event.Event, p *event.SourceCreated) {
	s.sources[p.SourceID] = &Source{
		ID:              p.SourceID,
		Path:            p.Path,
		Recursive:       p.Recursive,
		IncludeArchives: p.IncludeArchives,
		ExcludeGlobs:    append([]string(nil), p.ExcludeGlobs...),
		CreatedAt:       ev.CreatedAt,
	}
}

func (s *State) applySourceUpdated(p *event.SourceUpdated) {
	src, ok := s.sources[p.SourceID]
	if !ok {
		logging.Warn().Str("source_id", string(p.SourceID)).Msg("update for unknown source ignored")
		return
	}
	if p.Path != nil {
		src.Path = *p.Path
	}
	if p.Recursive != nil {
		src.Recursive = *p.Recursive
	}
	if p.IncludeArchives != nil {
		src.IncludeArchives = *p.IncludeArchives
	}
	if p.ExcludeGlobs != nil {
		src.ExcludeGlobs = append([]string(nil), (*p.ExcludeGlobs)...)
	}
}

// applySourceRemoved removes the source and cascades to its entries,
// dropping their ingest statuses and index memberships.
func (s *State) applySourceRemoved(p *event.SourceRemoved) {
	delete(s.sources, p.SourceID)
	for id, entry := range s.entries {
		if entry.SourceID != p.SourceID {
			continue
		}
		s.dropEntry(id, entry)
	}
}

func (s *State) dropEntry(id event.EntryID, entry *SourceEntry) {
	delete(s.entries, id)
	delete(s.ingest, id)
	delete(s.entryByIdentity, identityKey(entry.SourceID, entry.Kind, entry.Path))
	s.unbucket(id, entry)
}

func (s *State) bucket(id event.EntryID, entry *SourceEntry) {
	key := bucketKey{size: entry.Size, headHash: entry.HeadHash}
	set, ok := s.buckets[key]
	if !ok {
		set = make(map[event.EntryID]struct{})
		s.buckets[key] = set
	}
	set[id] = struct{}{}
}

func (s *State) unbucket(id event.EntryID, entry *SourceEntry) {
	key := bucketKey{size: entry.Size, headHash: entry.HeadHash}
	if set, ok := s.buckets[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.buckets, key)
		}
	}
}

// applyEntryUpserted is idempotent on the identity key: a second upsert for
// the same (source, kind, path) updates the existing entry in place and
// keeps its original id, so downstream references stay valid.
func (s *State) applyEntryUpserted(p *event.EntryUpserted) {
	key := identityKey(p.SourceID, p.Kind, p.Path)

	if existing, ok := s.entryByIdentity[key]; ok {
		entry := s.entries[existing]
		s.unbucket(existing, entry)
		entry.Size = p.Size
		entry.MTimeMS = p.MTimeMS
		entry.HeadHash = p.HeadHash
		entry.LastSeenAt = p.LastSeenAt
		entry.State = event.EntryStateActive
		s.bucket(existing, entry)
		return
	}

	entry := &SourceEntry{
		ID:         p.EntryID,
		SourceID:   p.SourceID,
		Kind:       p.Kind,
		Path:       p.Path,
		Size:       p.Size,
		MTimeMS:    p.MTimeMS,
		HeadHash:   p.HeadHash,
		LastSeenAt: p.LastSeenAt,
		State:      event.EntryStateActive,
	}
	s.entries[p.EntryID] = entry
	s.entryByIdentity[key] = p.EntryID
	s.bucket(p.EntryID, entry)
}

func (s *State) applyEntryMarkedMissing(p *event.EntryMarkedMissing) {
	if entry, ok := s.entries[p.EntryID]; ok {
		entry.State = event.EntryStateMissing
	}
}

func (s *State) applyMediaHashComputed(p *event.MediaHashComputed) {
	if entry, ok := s.entries[p.EntryID]; ok {
		entry.SHA256 = strings.ToLower(p.SHA256)
	}
}

func (s *State) applyMediaImported(p *event.MediaImported) {
	sha := strings.ToLower(p.SHA256)
	s.media[p.MediaID] = &Media{
		ID:      p.MediaID,
		SHA256:  sha,
		Size:    p.Size,
		EntryID: p.EntryID,
	}
	s.mediaBySHA[sha] = p.MediaID
	s.ingest[p.EntryID] = &IngestStatus{
		EntryID: p.EntryID,
		State:   IngestImported,
		MediaID: p.MediaID,
	}
}

func (s *State) applyMediaMetadataExtracted(p *event.MediaMetadataExtracted) {
	s.metadata[p.MediaID] = &MediaMetadata{
		MediaID:  p.MediaID,
		Metadata: p.Metadata,
	}
}

func (s *State) applyMediaSkippedDuplicate(p *event.MediaSkippedDuplicate) {
	s.ingest[p.EntryID] = &IngestStatus{
		EntryID:         p.EntryID,
		State:           IngestDuplicate,
		ExistingMediaID: p.ExistingMediaID,
	}
}

func (s *State) applyDuplicateLinkCreated(ev event.Event, p *event.DuplicateLinkCreated) {
	s.links[p.LinkID] = &DuplicateLink{
		ID:        p.LinkID,
		MediaID:   p.MediaID,
		EntryID:   p.EntryID,
		Level:     p.Level,
		Reason:    p.Reason,
		CreatedAt: ev.CreatedAt,
	}
}

func (s *State) applyQuarantineCreated(ev event.Event, p *event.QuarantineCreated) {
	s.quarantine[p.QuarantineID] = &QuarantineItem{
		ID:           p.QuarantineID,
		EntryID:      p.EntryID,
		CandidateIDs: append([]event.MediaID(nil), p.CandidateIDs...),
		Status:       event.QuarantineStatusPending,
		CreatedAt:    ev.CreatedAt,
	}
	s.quarantineByEntry[p.EntryID] = p.QuarantineID
}

func (s *State) applyQuarantineAccepted(ev event.Event, p *event.QuarantineAccepted) {
	item, ok := s.quarantine[p.QuarantineID]
	if !ok || item.Status != event.QuarantineStatusPending {
		return
	}
	resolved := ev.CreatedAt
	item.Status = event.QuarantineStatusAccepted
	item.ResolvedAt = &resolved
	item.AcceptedMediaID = p.AcceptedMediaID
}

func (s *State) applyQuarantineRejected(ev event.Event, p *event.QuarantineRejected) {
	item, ok := s.quarantine[p.QuarantineID]
	if !ok || item.Status != event.QuarantineStatusPending {
		return
	}
	resolved := ev.CreatedAt
	item.Status = event.QuarantineStatusRejected
	item.ResolvedAt = &resolved
	item.RejectedReason = p.Reason
}

func (s *State) applyAlbumCreated(ev event.Event, p *event.AlbumCreated) {
	s.albums[p.AlbumID] = &Album{
		ID:        p.AlbumID,
		Name:      p.Name,
		CreatedAt: ev.CreatedAt,
	}
}

func (s *State) applyAlbumRenamed(p *event.AlbumRenamed) {
	if album, ok := s.albums[p.AlbumID]; ok {
		album.Name = p.Name
	}
}

func (s *State) applyAlbumRemoved(p *event.AlbumRemoved) {
	delete(s.albums, p.AlbumID)
}

func (s *State) applyAlbumMediaAdded(p *event.AlbumMediaAdded) {
	album, ok := s.albums[p.AlbumID]
	if !ok {
		return
	}
	for _, id := range album.MediaIDs {
		if id == p.MediaID {
			return
		}
	}
	album.MediaIDs = append(album.MediaIDs, p.MediaID)
}

func (s *State) applyAlbumMediaRemoved(p *event.AlbumMediaRemoved) {
	album, ok := s.albums[p.AlbumID]
	if !ok {
		return
	}
	for i, id := range album.MediaIDs {
		if id == p.MediaID {
			album.MediaIDs = append(album.MediaIDs[:i], album.MediaIDs[i+1:]...)
			return
		}
	}
}

// RebuildIndexes recomputes every derived index from aggregate contents.
// Called after loading a snapshot, since indexes are not persisted.
func (s *State) RebuildIndexes() {
	s.entryByIdentity = make(map[string]event.EntryID, len(s.entries))
	s.buckets = make(map[bucketKey]map[event.EntryID]struct{})
	s.mediaBySHA = make(map[string]event.MediaID, len(s.media))
	s.quarantineByEntry = make(map[event.EntryID]event.QuarantineID, len(s.quarantine))

	for id, entry := range s.entries {
		s.entryByIdentity[identityKey(entry.SourceID, entry.Kind, entry.Path)] = id
		s.bucket(id, entry)
	}
	for id, m := range s.media {
		s.mediaBySHA[m.SHA256] = id
	}
	for id, item := range s.quarantine {
		s.quarantineByEntry[item.EntryID] = id
	}
}
