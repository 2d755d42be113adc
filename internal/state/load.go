// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package state

// Load* methods insert aggregate rows directly, bypassing the event fold.
// They exist for snapshot loading only: the caller streams every row in,
// then calls RebuildIndexes once. Using them anywhere else breaks the
// event-sourcing discipline.

// LoadSource inserts a source row.
func (s *State) LoadSource(v Source) { vv := v; s.sources[v.ID] = &vv }

// LoadEntry inserts a source entry row.
func (s *State) LoadEntry(v SourceEntry) { vv := v; s.entries[v.ID] = &vv }

// LoadMedia inserts a media row.
func (s *State) LoadMedia(v Media) { vv := v; s.media[v.ID] = &vv }

// LoadIngest inserts an ingest status row.
func (s *State) LoadIngest(v IngestStatus) { vv := v; s.ingest[v.EntryID] = &vv }

// LoadMetadata inserts a media metadata row.
func (s *State) LoadMetadata(v MediaMetadata) { vv := v; s.metadata[v.MediaID] = &vv }

// LoadLink inserts a duplicate link row.
func (s *State) LoadLink(v DuplicateLink) { vv := v; s.links[v.ID] = &vv }

// LoadQuarantine inserts a quarantine item row.
func (s *State) LoadQuarantine(v QuarantineItem) { vv := v; s.quarantine[v.ID] = &vv }

// LoadAlbum inserts an album row.
func (s *State) LoadAlbum(v Album) { vv := v; s.albums[v.ID] = &vv }
