// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package state

import (
	"sort"
	"strings"

	"github.com/tomtom215/curator/internal/event"
)

// Query methods return copies, never interior pointers, so callers cannot
// mutate aggregates out of band. Listings are sorted deterministically:
// identical state yields identical listings, which is what the replay and
// index-rebuild equivalence tests compare.

// Sources lists all sources ordered by id.
func (s *State) Sources() []Source {
	out := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Source returns one source by id.
func (s *State) Source(id event.SourceID) (Source, bool) {
	src, ok := s.sources[id]
	if !ok {
		return Source{}, false
	}
	return *src, true
}

// Entries lists all source entries ordered by id.
func (s *State) Entries() []SourceEntry {
	out := make([]SourceEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entry returns one entry by id.
func (s *State) Entry(id event.EntryID) (SourceEntry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return SourceEntry{}, false
	}
	return *e, true
}

// EntriesBySource lists the entries of one source ordered by path.
func (s *State) EntriesBySource(id event.SourceID) []SourceEntry {
	var out []SourceEntry
	for _, e := range s.entries {
		if e.SourceID == id {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// EntryByIdentity resolves an entry through its idempotent-upsert key.
func (s *State) EntryByIdentity(sourceID event.SourceID, kind event.EntryKind, path string) (SourceEntry, bool) {
	id, ok := s.entryByIdentity[identityKey(sourceID, kind, path)]
	if !ok {
		return SourceEntry{}, false
	}
	return *s.entries[id], true
}

// ActiveBucketEntries lists the active entries sharing a (size, headHash)
// bucket, ordered by id. This is the dedup handler's coarse candidate set.
func (s *State) ActiveBucketEntries(size int64, headHash string) []SourceEntry {
	set, ok := s.buckets[bucketKey{size: size, headHash: headHash}]
	if !ok {
		return nil
	}
	out := make([]SourceEntry, 0, len(set))
	for id := range set {
		if e := s.entries[id]; e != nil && e.State == event.EntryStateActive {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MediaList lists all media ordered by sha256 then id.
func (s *State) MediaList() []Media {
	out := make([]Media, 0, len(s.media))
	for _, m := range s.media {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SHA256 != out[j].SHA256 {
			return out[i].SHA256 < out[j].SHA256
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Media returns one media by id.
func (s *State) Media(id event.MediaID) (Media, bool) {
	m, ok := s.media[id]
	if !ok {
		return Media{}, false
	}
	return *m, true
}

// MediaBySHA256 resolves media through the exact content hash,
// case-insensitive.
func (s *State) MediaBySHA256(sha string) (Media, bool) {
	id, ok := s.mediaBySHA[strings.ToLower(sha)]
	if !ok {
		return Media{}, false
	}
	return *s.media[id], true
}

// MediaBySHA256Prefix lists media whose sha256 starts with the given hex
// prefix, case-insensitive, ordered by sha256 then id. An empty prefix
// matches everything.
func (s *State) MediaBySHA256Prefix(prefix string) []Media {
	prefix = strings.ToLower(prefix)
	var out []Media
	for _, m := range s.media {
		if strings.HasPrefix(m.SHA256, prefix) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SHA256 != out[j].SHA256 {
			return out[i].SHA256 < out[j].SHA256
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Ingest returns the ingest status of an entry; entries never touched by
// ingest report IngestNone.
func (s *State) Ingest(id event.EntryID) IngestStatus {
	if st, ok := s.ingest[id]; ok {
		return *st
	}
	return IngestStatus{EntryID: id, State: IngestNone}
}

// IngestStatuses lists all non-none ingest statuses ordered by entry id.
func (s *State) IngestStatuses() []IngestStatus {
	out := make([]IngestStatus, 0, len(s.ingest))
	for _, st := range s.ingest {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out
}

// MetadataFor returns extracted metadata for media, if present.
func (s *State) MetadataFor(id event.MediaID) (MediaMetadata, bool) {
	md, ok := s.metadata[id]
	if !ok {
		return MediaMetadata{}, false
	}
	return *md, true
}

// MetadataList lists all metadata ordered by media id.
func (s *State) MetadataList() []MediaMetadata {
	out := make([]MediaMetadata, 0, len(s.metadata))
	for _, md := range s.metadata {
		out = append(out, *md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MediaID < out[j].MediaID })
	return out
}

// Links lists all duplicate links ordered by id.
func (s *State) Links() []DuplicateLink {
	out := make([]DuplicateLink, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LinksByMedia lists duplicate links for one media ordered by id.
func (s *State) LinksByMedia(id event.MediaID) []DuplicateLink {
	var out []DuplicateLink
	for _, l := range s.links {
		if l.MediaID == id {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// QuarantineItemByID returns one quarantine item.
func (s *State) QuarantineItemByID(id event.QuarantineID) (QuarantineItem, bool) {
	item, ok := s.quarantine[id]
	if !ok {
		return QuarantineItem{}, false
	}
	return copyQuarantine(item), true
}

// QuarantineForEntry returns the entry's quarantine item, pending or
// resolved, if one was ever created.
func (s *State) QuarantineForEntry(id event.EntryID) (QuarantineItem, bool) {
	qid, ok := s.quarantineByEntry[id]
	if !ok {
		return QuarantineItem{}, false
	}
	return copyQuarantine(s.quarantine[qid]), true
}

// QuarantineItems lists items with the given status ordered by id; an empty
// status lists everything.
func (s *State) QuarantineItems(status event.QuarantineStatus) []QuarantineItem {
	var out []QuarantineItem
	for _, item := range s.quarantine {
		if status == "" || item.Status == status {
			out = append(out, copyQuarantine(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Albums lists all albums ordered by id.
func (s *State) Albums() []Album {
	out := make([]Album, 0, len(s.albums))
	for _, a := range s.albums {
		cp := *a
		cp.MediaIDs = append([]event.MediaID(nil), a.MediaIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyQuarantine(item *QuarantineItem) QuarantineItem {
	cp := *item
	cp.CandidateIDs = append([]event.MediaID(nil), item.CandidateIDs...)
	return cp
}
