// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package state

import (
	"strconv"
	"time"

	"github.com/tomtom215/curator/internal/event"
)

// Source is a watched directory of media files.
type Source struct {
	ID              event.SourceID `json:"id"`
	Path            string         `json:"path"`
	Recursive       bool           `json:"recursive,omitempty"`
	IncludeArchives bool           `json:"includeArchives,omitempty"`
	ExcludeGlobs    []string       `json:"excludeGlobs,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// SourceEntry is one file or archive entry inside a source. Its identity key
// (source, kind, path) makes scanner upserts idempotent; its (size, headHash)
// bucket is the coarse pre-filter for duplicate candidates.
type SourceEntry struct {
	ID       event.EntryID   `json:"id"`
	SourceID event.SourceID  `json:"sourceId"`
	Kind     event.EntryKind `json:"kind"`
	Path     string          `json:"path"`
	Size     int64           `json:"size"`
	MTimeMS  int64           `json:"mtimeMs"`
	HeadHash string          `json:"headHash,omitempty"`

	// SHA256 is the full content hash once computed during ingest.
	SHA256 string `json:"sha256,omitempty"`

	LastSeenAt time.Time        `json:"lastSeenAt"`
	State      event.EntryState `json:"state"`
}

// Fingerprint is the change-detection key, size:mtime:head-hash.
func (e *SourceEntry) Fingerprint() string {
	return fingerprint(e.Size, e.MTimeMS, e.HeadHash)
}

func fingerprint(size, mtimeMS int64, headHash string) string {
	return strconv.FormatInt(size, 10) + ":" + strconv.FormatInt(mtimeMS, 10) + ":" + headHash
}

// Media is one distinct piece of content; exactly one exists per sha256.
type Media struct {
	ID      event.MediaID `json:"id"`
	SHA256  string        `json:"sha256"`
	Size    int64         `json:"size"`
	EntryID event.EntryID `json:"entryId"`
}

// IngestState is the per-entry ingest state machine.
type IngestState string

const (
	IngestNone      IngestState = "none"
	IngestImported  IngestState = "imported"
	IngestDuplicate IngestState = "duplicate"
)

// IngestStatus tracks how far an entry has progressed through ingest.
type IngestStatus struct {
	EntryID event.EntryID `json:"entryId"`
	State   IngestState   `json:"state"`

	// MediaID is set when State is imported.
	MediaID event.MediaID `json:"mediaId,omitempty"`

	// ExistingMediaID is set when State is duplicate.
	ExistingMediaID event.MediaID `json:"existingMediaId,omitempty"`
}

// MediaMetadata pairs extractor output with its media.
type MediaMetadata struct {
	MediaID  event.MediaID  `json:"mediaId"`
	Metadata event.Metadata `json:"metadata"`
}

// DuplicateLink records a duplicate judgement between media and an entry.
type DuplicateLink struct {
	ID        event.LinkID    `json:"id"`
	MediaID   event.MediaID   `json:"mediaId"`
	EntryID   event.EntryID   `json:"entryId"`
	Level     event.LinkLevel `json:"level"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// QuarantineItem is a pending (or resolved) human decision between candidate
// duplicate media. At most one item exists per source entry at a time.
type QuarantineItem struct {
	ID           event.QuarantineID     `json:"id"`
	EntryID      event.EntryID          `json:"entryId"`
	CandidateIDs []event.MediaID        `json:"candidateIds"`
	Status       event.QuarantineStatus `json:"status"`
	CreatedAt    time.Time              `json:"createdAt"`
	ResolvedAt   *time.Time             `json:"resolvedAt,omitempty"`

	// AcceptedMediaID is set when Status is accepted.
	AcceptedMediaID event.MediaID `json:"acceptedMediaId,omitempty"`

	// RejectedReason is set when Status is rejected, optional free text.
	RejectedReason string `json:"rejectedReason,omitempty"`
}

// HasCandidate reports whether id is among the item's candidates.
func (q *QuarantineItem) HasCandidate(id event.MediaID) bool {
	for _, c := range q.CandidateIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Album is an ordered, named collection of media ids. Albums reference media
// by id; removing media elsewhere does not cascade into albums.
type Album struct {
	ID        event.AlbumID   `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	MediaIDs  []event.MediaID `json:"mediaIds,omitempty"`
}
