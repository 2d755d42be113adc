// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package event defines the closed set of domain facts that make up
// Curator's append-only log, plus the canonical JSON form used for hashing
// and structural comparison.
//
// Events are immutable once appended. Identity is the EventID; ordering is
// the log position assigned by the append log, never a field of the event
// itself.
package event

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Type identifies the kind of a domain event and selects its payload shape.
type Type string

// Source lifecycle events.
const (
	TypeSourceCreated Type = "source.created"
	TypeSourceUpdated Type = "source.updated"
	TypeSourceRemoved Type = "source.removed"
)

// Source entry events.
const (
	TypeEntryUpserted      Type = "entry.upserted"
	TypeEntryMarkedMissing Type = "entry.marked_missing"
)

// Media ingest events.
const (
	TypeMediaHashComputed      Type = "media.hash_computed"
	TypeMediaImported          Type = "media.imported"
	TypeMediaMetadataExtracted Type = "media.metadata_extracted"
	TypeMediaSkippedDuplicate  Type = "media.skipped_duplicate"
)

// Duplicate detection events.
const (
	TypeDuplicateLinkCreated Type = "duplicate_link.created"
	TypeQuarantineCreated    Type = "quarantine.created"
	TypeQuarantineAccepted   Type = "quarantine.accepted"
	TypeQuarantineRejected   Type = "quarantine.rejected"
)

// Job lifecycle events.
const (
	TypeJobEnqueued       Type = "job.enqueued"
	TypeJobStarted        Type = "job.started"
	TypeJobRetryScheduled Type = "job.retry_scheduled"
	TypeJobCompleted      Type = "job.completed"
	TypeJobFailed         Type = "job.failed"
)

// Album events.
const (
	TypeAlbumCreated      Type = "album.created"
	TypeAlbumRenamed      Type = "album.renamed"
	TypeAlbumRemoved      Type = "album.removed"
	TypeAlbumMediaAdded   Type = "album.media_added"
	TypeAlbumMediaRemoved Type = "album.media_removed"
)

// Payload is implemented by every event payload struct. The set is closed;
// adding a payload type requires extending payloadFor, which the compiler and
// tests keep in sync with the Type constants.
type Payload interface {
	isPayload()
}

// Event is one immutable domain fact.
type Event struct {
	// EventID is the unique identity of the event.
	EventID EventID `json:"eventId"`

	// Type selects the payload shape.
	Type Type `json:"type"`

	// CreatedAt is when the event was produced, UTC.
	CreatedAt time.Time `json:"createdAt"`

	// JobID links the event to the job whose handler produced it, if any.
	JobID JobID `json:"jobId,omitempty"`

	// Payload is the type-specific body.
	Payload Payload `json:"payload"`
}

// New creates an event with a fresh id and the current UTC time.
func New(t Type, payload Payload) Event {
	return Event{
		EventID:   NewEventID(),
		Type:      t,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// WithJob returns a copy of the event attributed to the given job.
func (e Event) WithJob(id JobID) Event {
	e.JobID = id
	return e
}

// envelope is the wire form of Event with the payload left raw, so
// UnmarshalJSON can pick the concrete type from the tag first.
type envelope struct {
	EventID   EventID         `json:"eventId"`
	Type      Type            `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	JobID     JobID           `json:"jobId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// UnmarshalJSON decodes an event, selecting the payload struct by type tag.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}

	payload, err := payloadFor(env.Type)
	if err != nil {
		return err
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}

	e.EventID = env.EventID
	e.Type = env.Type
	e.CreatedAt = env.CreatedAt
	e.JobID = env.JobID
	e.Payload = payload
	return nil
}

// payloadFor returns a pointer to a zero payload struct for the given type.
// New event types must be added here; an unknown type is a decode error so a
// log written by a newer schema cannot be silently misread.
func payloadFor(t Type) (Payload, error) {
	switch t {
	case TypeSourceCreated:
		return &SourceCreated{}, nil
	case TypeSourceUpdated:
		return &SourceUpdated{}, nil
	case TypeSourceRemoved:
		return &SourceRemoved{}, nil
	case TypeEntryUpserted:
		return &EntryUpserted{}, nil
	case TypeEntryMarkedMissing:
		return &EntryMarkedMissing{}, nil
	case TypeMediaHashComputed:
		return &MediaHashComputed{}, nil
	case TypeMediaImported:
		return &MediaImported{}, nil
	case TypeMediaMetadataExtracted:
		return &MediaMetadataExtracted{}, nil
	case TypeMediaSkippedDuplicate:
		return &MediaSkippedDuplicate{}, nil
	case TypeDuplicateLinkCreated:
		return &DuplicateLinkCreated{}, nil
	case TypeQuarantineCreated:
		return &QuarantineCreated{}, nil
	case TypeQuarantineAccepted:
		return &QuarantineAccepted{}, nil
	case TypeQuarantineRejected:
		return &QuarantineRejected{}, nil
	case TypeJobEnqueued:
		return &JobEnqueued{}, nil
	case TypeJobStarted:
		return &JobStarted{}, nil
	case TypeJobRetryScheduled:
		return &JobRetryScheduled{}, nil
	case TypeJobCompleted:
		return &JobCompleted{}, nil
	case TypeJobFailed:
		return &JobFailed{}, nil
	case TypeAlbumCreated:
		return &AlbumCreated{}, nil
	case TypeAlbumRenamed:
		return &AlbumRenamed{}, nil
	case TypeAlbumRemoved:
		return &AlbumRemoved{}, nil
	case TypeAlbumMediaAdded:
		return &AlbumMediaAdded{}, nil
	case TypeAlbumMediaRemoved:
		return &AlbumMediaRemoved{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}
