// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package event

import (
	"fmt"
	"time"
)

// EntryKind distinguishes plain files from entries inside archives.
type EntryKind string

const (
	EntryKindFile         EntryKind = "file"
	EntryKindArchiveEntry EntryKind = "archive-entry"
)

// EntryState is the scan lifecycle state of a source entry.
type EntryState string

const (
	EntryStateActive  EntryState = "active"
	EntryStateMissing EntryState = "missing"
	EntryStateDeleted EntryState = "deleted"
)

// MediaKind classifies media by its container contents.
type MediaKind string

const (
	MediaKindPhoto   MediaKind = "photo"
	MediaKindVideo   MediaKind = "video"
	MediaKindUnknown MediaKind = "unknown"
)

// LinkLevel is the confidence level of a duplicate link.
type LinkLevel string

const (
	LinkLevelExact    LinkLevel = "exact"
	LinkLevelStrong   LinkLevel = "strong"
	LinkLevelProbable LinkLevel = "probable"
)

// QuarantineStatus is the resolution state of a quarantine item.
type QuarantineStatus string

const (
	QuarantineStatusPending  QuarantineStatus = "pending"
	QuarantineStatusAccepted QuarantineStatus = "accepted"
	QuarantineStatusRejected QuarantineStatus = "rejected"
)

// SourceCreated registers a new watched source directory.
type SourceCreated struct {
	SourceID        SourceID `json:"sourceId"`
	Path            string   `json:"path"`
	Recursive       bool     `json:"recursive,omitempty"`
	IncludeArchives bool     `json:"includeArchives,omitempty"`
	ExcludeGlobs    []string `json:"excludeGlobs,omitempty"`
}

// SourceUpdated changes source settings. Nil fields are left unchanged.
type SourceUpdated struct {
	SourceID        SourceID  `json:"sourceId"`
	Path            *string   `json:"path,omitempty"`
	Recursive       *bool     `json:"recursive,omitempty"`
	IncludeArchives *bool     `json:"includeArchives,omitempty"`
	ExcludeGlobs    *[]string `json:"excludeGlobs,omitempty"`
}

// SourceRemoved removes a source. Folding cascades to delete its entries.
type SourceRemoved struct {
	SourceID SourceID `json:"sourceId"`
}

// EntryUpserted records a scanned file or archive entry. Upserts are
// idempotent on the identity key (source, kind, path).
type EntryUpserted struct {
	EntryID  EntryID   `json:"entryId"`
	SourceID SourceID  `json:"sourceId"`
	Kind     EntryKind `json:"kind"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`

	// MTimeMS is the file modification time in Unix milliseconds.
	MTimeMS int64 `json:"mtimeMs"`

	// HeadHash is a cheap hash of the first 64KB, used for coarse
	// duplicate-candidate bucketing.
	HeadHash string `json:"headHash,omitempty" validate:"omitempty,hexdigest"`

	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Fingerprint is the entry's change-detection key, size:mtime:head-hash.
func (p *EntryUpserted) Fingerprint() string {
	return fmt.Sprintf("%d:%d:%s", p.Size, p.MTimeMS, p.HeadHash)
}

// EntryMarkedMissing flags an entry no longer seen by the scanner.
type EntryMarkedMissing struct {
	EntryID EntryID `json:"entryId"`
}

// MediaHashComputed records the full content hash of an entry.
type MediaHashComputed struct {
	EntryID EntryID `json:"entryId"`
	SHA256  string  `json:"sha256" validate:"omitempty,len=64,hexdigest"`
	Size    int64   `json:"size"`
}

// MediaImported creates a Media aggregate for a previously unseen sha256 and
// moves the entry's ingest status to imported.
type MediaImported struct {
	MediaID MediaID `json:"mediaId"`
	EntryID EntryID `json:"entryId"`
	SHA256  string  `json:"sha256" validate:"omitempty,len=64,hexdigest"`
	Size    int64   `json:"size"`
}

// Metadata is the open property bag attached to media by the external
// extractor. Raw carries extractor-specific values, including the optional
// perceptual hash under "phash" with its algorithm under "phashAlg".
type Metadata struct {
	Kind        MediaKind         `json:"kind"`
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
	DurationMS  int64             `json:"durationMs,omitempty"`
	CameraModel string            `json:"cameraModel,omitempty"`
	MimeType    string            `json:"mimeType,omitempty"`
	TakenAt     *time.Time        `json:"takenAt,omitempty"`
	Raw         map[string]string `json:"raw,omitempty"`
}

// PerceptualHash returns the stored perceptual hash and its algorithm tag,
// or empty strings if the extractor did not supply one.
func (m Metadata) PerceptualHash() (hash, algorithm string) {
	return m.Raw["phash"], m.Raw["phashAlg"]
}

// MediaMetadataExtracted attaches extractor output to media.
type MediaMetadataExtracted struct {
	MediaID  MediaID  `json:"mediaId"`
	Metadata Metadata `json:"metadata"`
}

// MediaSkippedDuplicate records that an entry's content hash matched an
// existing Media, so no new Media was created.
type MediaSkippedDuplicate struct {
	EntryID         EntryID `json:"entryId"`
	ExistingMediaID MediaID `json:"existingMediaId"`
	SHA256          string  `json:"sha256,omitempty" validate:"omitempty,len=64,hexdigest"`
}

// DuplicateLinkCreated links media to a source entry judged to duplicate it.
type DuplicateLinkCreated struct {
	LinkID  LinkID    `json:"linkId"`
	MediaID MediaID   `json:"mediaId"`
	EntryID EntryID   `json:"entryId"`
	Level   LinkLevel `json:"level"`
	Reason  string    `json:"reason,omitempty"`
}

// QuarantineCreated opens a pending human decision between candidate media.
type QuarantineCreated struct {
	QuarantineID QuarantineID `json:"quarantineId"`
	EntryID      EntryID      `json:"entryId"`
	CandidateIDs []MediaID    `json:"candidateIds"`
}

// QuarantineAccepted resolves a quarantine item in favor of one candidate.
type QuarantineAccepted struct {
	QuarantineID    QuarantineID `json:"quarantineId"`
	AcceptedMediaID MediaID      `json:"acceptedMediaId"`
}

// QuarantineRejected resolves a quarantine item as not-a-duplicate.
type QuarantineRejected struct {
	QuarantineID QuarantineID `json:"quarantineId"`
	Reason       string       `json:"reason,omitempty"`
}

// JobEnqueued records a job entering the queue.
type JobEnqueued struct {
	JobID   JobID  `json:"jobId"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// JobStarted records one execution attempt beginning.
type JobStarted struct {
	JobID   JobID  `json:"jobId"`
	Kind    string `json:"kind"`
	Attempt int    `json:"attempt"`
}

// JobRetryScheduled records a failed attempt that will be retried.
type JobRetryScheduled struct {
	JobID   JobID     `json:"jobId"`
	Kind    string    `json:"kind"`
	Attempt int       `json:"attempt"`
	Error   string    `json:"error"`
	RetryAt time.Time `json:"retryAt"`
}

// JobCompleted records a successful run.
type JobCompleted struct {
	JobID JobID  `json:"jobId"`
	Kind  string `json:"kind"`
}

// JobFailed records permanent failure after the final attempt.
type JobFailed struct {
	JobID   JobID  `json:"jobId"`
	Kind    string `json:"kind"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error"`
}

// AlbumCreated creates a named album.
type AlbumCreated struct {
	AlbumID AlbumID `json:"albumId"`
	Name    string  `json:"name"`
}

// AlbumRenamed renames an album.
type AlbumRenamed struct {
	AlbumID AlbumID `json:"albumId"`
	Name    string  `json:"name"`
}

// AlbumRemoved deletes an album. Member media are untouched.
type AlbumRemoved struct {
	AlbumID AlbumID `json:"albumId"`
}

// AlbumMediaAdded appends media to an album's ordered member list.
type AlbumMediaAdded struct {
	AlbumID AlbumID `json:"albumId"`
	MediaID MediaID `json:"mediaId"`
}

// AlbumMediaRemoved removes media from an album.
type AlbumMediaRemoved struct {
	AlbumID AlbumID `json:"albumId"`
	MediaID MediaID `json:"mediaId"`
}

func (*SourceCreated) isPayload()          {}
func (*SourceUpdated) isPayload()          {}
func (*SourceRemoved) isPayload()          {}
func (*EntryUpserted) isPayload()          {}
func (*EntryMarkedMissing) isPayload()     {}
func (*MediaHashComputed) isPayload()      {}
func (*MediaImported) isPayload()          {}
func (*MediaMetadataExtracted) isPayload() {}
func (*MediaSkippedDuplicate) isPayload()  {}
func (*DuplicateLinkCreated) isPayload()   {}
func (*QuarantineCreated) isPayload()      {}
func (*QuarantineAccepted) isPayload()     {}
func (*QuarantineRejected) isPayload()     {}
func (*JobEnqueued) isPayload()            {}
func (*JobStarted) isPayload()             {}
func (*JobRetryScheduled) isPayload()      {}
func (*JobCompleted) isPayload()           {}
func (*JobFailed) isPayload()              {}
func (*AlbumCreated) isPayload()           {}
func (*AlbumRenamed) isPayload()           {}
func (*AlbumRemoved) isPayload()           {}
func (*AlbumMediaAdded) isPayload()        {}
func (*AlbumMediaRemoved) isPayload()      {}
