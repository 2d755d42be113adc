// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Identifier newtypes. Construction goes through New* (fresh UUID) or
// Parse* (validated), never a bare cast, so an id string in an aggregate is
// always well formed.

// EventID identifies a single appended event.
type EventID string

// SourceID identifies a watched media source.
type SourceID string

// EntryID identifies a file or archive entry inside a source.
type EntryID string

// MediaID identifies a distinct piece of media (one per sha256).
type MediaID string

// LinkID identifies a duplicate link.
type LinkID string

// QuarantineID identifies a quarantine item awaiting human review.
type QuarantineID string

// JobID identifies a scheduled job.
type JobID string

// AlbumID identifies an album.
type AlbumID string

// NewEventID returns a fresh random identifier.
func NewEventID() EventID { return EventID(uuid.NewString()) }

// NewSourceID returns a fresh random identifier.
func NewSourceID() SourceID { return SourceID(uuid.NewString()) }

// NewEntryID returns a fresh random identifier.
func NewEntryID() EntryID { return EntryID(uuid.NewString()) }

// NewMediaID returns a fresh random identifier.
func NewMediaID() MediaID { return MediaID(uuid.NewString()) }

// NewLinkID returns a fresh random identifier.
func NewLinkID() LinkID { return LinkID(uuid.NewString()) }

// NewQuarantineID returns a fresh random identifier.
func NewQuarantineID() QuarantineID { return QuarantineID(uuid.NewString()) }

// NewJobID returns a fresh random identifier.
func NewJobID() JobID { return JobID(uuid.NewString()) }

// NewAlbumID returns a fresh random identifier.
func NewAlbumID() AlbumID { return AlbumID(uuid.NewString()) }

func parseID(kind, s string) (string, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", kind, s, err)
	}
	return s, nil
}

// ParseSourceID validates s as a source id.
func ParseSourceID(s string) (SourceID, error) {
	v, err := parseID("source id", s)
	return SourceID(v), err
}

// ParseEntryID validates s as an entry id.
func ParseEntryID(s string) (EntryID, error) {
	v, err := parseID("entry id", s)
	return EntryID(v), err
}

// ParseMediaID validates s as a media id.
func ParseMediaID(s string) (MediaID, error) {
	v, err := parseID("media id", s)
	return MediaID(v), err
}

// ParseQuarantineID validates s as a quarantine id.
func ParseQuarantineID(s string) (QuarantineID, error) {
	v, err := parseID("quarantine id", s)
	return QuarantineID(v), err
}

// ParseJobID validates s as a job id.
func ParseJobID(s string) (JobID, error) {
	v, err := parseID("job id", s)
	return JobID(v), err
}

// ParseAlbumID validates s as an album id.
func ParseAlbumID(s string) (AlbumID, error) {
	v, err := parseID("album id", s)
	return AlbumID(v), err
}
