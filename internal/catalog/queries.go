// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package catalog

import (
	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/jobs"
	"github.com/tomtom215/curator/internal/state"
)

// Read-only surface for the HTTP/CLI layer and job handlers. Every method
// takes the read lock so results are consistent with the serialized append
// path; the underlying state queries return copies.

// Sources lists all sources.
func (c *Core) Sources() []state.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Sources()
}

// Source returns one source by id.
func (c *Core) Source(id event.SourceID) (state.Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Source(id)
}

// Entry returns one source entry by id.
func (c *Core) Entry(id event.EntryID) (state.SourceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Entry(id)
}

// EntriesBySource lists a source's entries ordered by path.
func (c *Core) EntriesBySource(id event.SourceID) []state.SourceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.EntriesBySource(id)
}

// EntryByIdentity resolves an entry through its idempotent-upsert key.
func (c *Core) EntryByIdentity(sourceID event.SourceID, kind event.EntryKind, path string) (state.SourceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.EntryByIdentity(sourceID, kind, path)
}

// ActiveBucketEntries lists active entries sharing a (size, headHash)
// bucket, the dedup candidate set.
func (c *Core) ActiveBucketEntries(size int64, headHash string) []state.SourceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.ActiveBucketEntries(size, headHash)
}

// Media returns one media by id.
func (c *Core) Media(id event.MediaID) (state.Media, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Media(id)
}

// MediaBySHA256 resolves media by exact content hash.
func (c *Core) MediaBySHA256(sha string) (state.Media, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.MediaBySHA256(sha)
}

// MediaBySHA256Prefix lists media whose content hash starts with prefix.
func (c *Core) MediaBySHA256Prefix(prefix string) []state.Media {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.MediaBySHA256Prefix(prefix)
}

// Ingest returns the ingest status of an entry.
func (c *Core) Ingest(id event.EntryID) state.IngestStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Ingest(id)
}

// MetadataFor returns extracted metadata for media, if present.
func (c *Core) MetadataFor(id event.MediaID) (state.MediaMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.MetadataFor(id)
}

// Links lists all duplicate links.
func (c *Core) Links() []state.DuplicateLink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Links()
}

// LinksByMedia lists duplicate links for one media.
func (c *Core) LinksByMedia(id event.MediaID) []state.DuplicateLink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.LinksByMedia(id)
}

// QuarantineItemByID returns one quarantine item.
func (c *Core) QuarantineItemByID(id event.QuarantineID) (state.QuarantineItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.QuarantineItemByID(id)
}

// QuarantineForEntry returns an entry's quarantine item, pending or
// resolved.
func (c *Core) QuarantineForEntry(id event.EntryID) (state.QuarantineItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.QuarantineForEntry(id)
}

// QuarantineItems lists items by status; empty status lists everything.
func (c *Core) QuarantineItems(status event.QuarantineStatus) []state.QuarantineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.QuarantineItems(status)
}

// Albums lists all albums.
func (c *Core) Albums() []state.Album {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Albums()
}

// Jobs lists job records by status; empty status lists everything. The job
// store carries its own lock.
func (c *Core) Jobs(status jobs.Status) []jobs.Record {
	return c.jobs.List(status)
}

// Job returns one job record.
func (c *Core) Job(id event.JobID) (jobs.Record, bool) {
	return c.jobs.Get(id)
}
