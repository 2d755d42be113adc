// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package state

import (
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/curator/internal/event"
)

func upsert(sourceID event.SourceID, path string, size int64, headHash string) event.Event {
	return event.New(event.TypeEntryUpserted, &event.EntryUpserted{
		EntryID:    event.NewEntryID(),
		SourceID:   sourceID,
		Kind:       event.EntryKindFile,
		Path:       path,
		Size:       size,
		MTimeMS:    1772366400000,
		HeadHash:   headHash,
		LastSeenAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
}

func newSource(t *testing.T, s *State) event.SourceID {
	t.Helper()
	id := event.NewSourceID()
	s.Apply(event.New(event.TypeSourceCreated, &event.SourceCreated{
		SourceID: id,
		Path:     "/photos",
	}))
	return id
}

func TestEntryUpsertIdempotentOnIdentityKey(t *testing.T) {
	s := New()
	srcID := newSource(t, s)

	first := upsert(srcID, "/photos/a.jpg", 100, "aaaa000011112222")
	s.Apply(first)
	firstID := first.Payload.(*event.EntryUpserted).EntryID

	// Same identity key, new fingerprint, different proposed id.
	second := upsert(srcID, "/photos/a.jpg", 200, "bbbb000011112222")
	s.Apply(second)

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.ID != firstID {
		t.Errorf("re-upsert changed entry id %s -> %s", firstID, got.ID)
	}
	if got.Size != 200 || got.HeadHash != "bbbb000011112222" {
		t.Errorf("re-upsert did not update fingerprint: %+v", got)
	}

	// The entry moved buckets with its new fingerprint.
	if len(s.ActiveBucketEntries(100, "aaaa000011112222")) != 0 {
		t.Error("entry still in old bucket")
	}
	if len(s.ActiveBucketEntries(200, "bbbb000011112222")) != 1 {
		t.Error("entry missing from new bucket")
	}
}

func TestUpsertReactivatesMissingEntry(t *testing.T) {
	s := New()
	srcID := newSource(t, s)

	ev := upsert(srcID, "/photos/a.jpg", 100, "aaaa000011112222")
	s.Apply(ev)
	entryID := ev.Payload.(*event.EntryUpserted).EntryID

	s.Apply(event.New(event.TypeEntryMarkedMissing, &event.EntryMarkedMissing{EntryID: entryID}))
	if e, _ := s.Entry(entryID); e.State != event.EntryStateMissing {
		t.Fatalf("state = %s, want missing", e.State)
	}
	if len(s.ActiveBucketEntries(100, "aaaa000011112222")) != 0 {
		t.Error("missing entry listed as active bucket candidate")
	}

	s.Apply(upsert(srcID, "/photos/a.jpg", 100, "aaaa000011112222"))
	if e, _ := s.Entry(entryID); e.State != event.EntryStateActive {
		t.Errorf("state after re-upsert = %s, want active", e.State)
	}
}

func TestSourceRemovalCascades(t *testing.T) {
	s := New()
	srcID := newSource(t, s)
	keep := newSource(t, s)

	removed := upsert(srcID, "/photos/a.jpg", 100, "aaaa000011112222")
	kept := upsert(keep, "/photos/b.jpg", 100, "aaaa000011112222")
	s.Apply(removed)
	s.Apply(kept)

	removedID := removed.Payload.(*event.EntryUpserted).EntryID
	mediaID := event.NewMediaID()
	s.Apply(event.New(event.TypeMediaImported, &event.MediaImported{
		MediaID: mediaID,
		EntryID: removedID,
		SHA256:  "DEADBEEF00000000000000000000000000000000000000000000000000000000",
		Size:    100,
	}))

	s.Apply(event.New(event.TypeSourceRemoved, &event.SourceRemoved{SourceID: srcID}))

	if _, ok := s.Source(srcID); ok {
		t.Error("removed source still present")
	}
	if _, ok := s.Entry(removedID); ok {
		t.Error("cascade did not remove entry")
	}
	if st := s.Ingest(removedID); st.State != IngestNone {
		t.Errorf("ingest after cascade = %s, want none", st.State)
	}
	if got := s.ActiveBucketEntries(100, "aaaa000011112222"); len(got) != 1 {
		t.Errorf("bucket candidates = %d, want 1 (other source's entry)", len(got))
	}
	// Media survives source removal; content is content.
	if _, ok := s.Media(mediaID); !ok {
		t.Error("media dropped by source cascade")
	}
}

func TestMediaSHAPrefixQuery(t *testing.T) {
	s := New()
	srcID := newSource(t, s)

	shas := []string{
		"abcdefffabcdefffabcdefffabcdefffabcdefffabcdefffabcdefffabcdefff",
		"abf01234abf01234abf01234abf01234abf01234abf01234abf01234abf01234",
		"deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
	}
	for i, sha := range shas {
		ev := upsert(srcID, "/p/"+sha[:8], int64(100+i), sha[:16])
		s.Apply(ev)
		s.Apply(event.New(event.TypeMediaImported, &event.MediaImported{
			MediaID: event.NewMediaID(),
			EntryID: ev.Payload.(*event.EntryUpserted).EntryID,
			SHA256:  sha,
			Size:    int64(100 + i),
		}))
	}

	cases := []struct {
		prefix string
		want   int
	}{
		{"AB", 2}, // case-insensitive
		{"abc", 1},
		{"DE", 1},
		{"", 3},
		{"ffff", 0},
	}
	for _, tc := range cases {
		if got := len(s.MediaBySHA256Prefix(tc.prefix)); got != tc.want {
			t.Errorf("MediaBySHA256Prefix(%q) = %d, want %d", tc.prefix, got, tc.want)
		}
	}

	if _, ok := s.MediaBySHA256("DEADBEEFdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"); !ok {
		t.Error("exact sha lookup must be case-insensitive")
	}
}

func TestQuarantineLifecycle(t *testing.T) {
	s := New()
	entryID := event.NewEntryID()
	qID := event.NewQuarantineID()
	m1, m2 := event.NewMediaID(), event.NewMediaID()

	s.Apply(event.New(event.TypeQuarantineCreated, &event.QuarantineCreated{
		QuarantineID: qID,
		EntryID:      entryID,
		CandidateIDs: []event.MediaID{m1, m2},
	}))

	item, ok := s.QuarantineForEntry(entryID)
	if !ok || item.Status != event.QuarantineStatusPending {
		t.Fatalf("pending item missing: %+v", item)
	}
	if !item.HasCandidate(m2) {
		t.Error("candidate membership lost")
	}

	s.Apply(event.New(event.TypeQuarantineAccepted, &event.QuarantineAccepted{
		QuarantineID:    qID,
		AcceptedMediaID: m1,
	}))
	item, _ = s.QuarantineItemByID(qID)
	if item.Status != event.QuarantineStatusAccepted || item.AcceptedMediaID != m1 {
		t.Errorf("accept not folded: %+v", item)
	}
	if item.ResolvedAt == nil {
		t.Error("resolvedAt not set")
	}

	// Resolution is terminal: a late reject is a no-op.
	s.Apply(event.New(event.TypeQuarantineRejected, &event.QuarantineRejected{
		QuarantineID: qID,
		Reason:       "too late",
	}))
	item, _ = s.QuarantineItemByID(qID)
	if item.Status != event.QuarantineStatusAccepted {
		t.Errorf("terminal status overwritten: %s", item.Status)
	}

	if got := s.QuarantineItems(event.QuarantineStatusPending); len(got) != 0 {
		t.Errorf("pending items = %d, want 0", len(got))
	}
	if got := s.QuarantineItems(""); len(got) != 1 {
		t.Errorf("all items = %d, want 1", len(got))
	}
}

func TestAlbumMembership(t *testing.T) {
	s := New()
	albumID := event.NewAlbumID()
	m1, m2 := event.NewMediaID(), event.NewMediaID()

	s.Apply(event.New(event.TypeAlbumCreated, &event.AlbumCreated{AlbumID: albumID, Name: "Trips"}))
	s.Apply(event.New(event.TypeAlbumMediaAdded, &event.AlbumMediaAdded{AlbumID: albumID, MediaID: m1}))
	s.Apply(event.New(event.TypeAlbumMediaAdded, &event.AlbumMediaAdded{AlbumID: albumID, MediaID: m2}))
	// Adding twice is idempotent.
	s.Apply(event.New(event.TypeAlbumMediaAdded, &event.AlbumMediaAdded{AlbumID: albumID, MediaID: m1}))

	albums := s.Albums()
	if len(albums) != 1 {
		t.Fatalf("albums = %d, want 1", len(albums))
	}
	if want := []event.MediaID{m1, m2}; !reflect.DeepEqual(albums[0].MediaIDs, want) {
		t.Errorf("members = %v, want %v", albums[0].MediaIDs, want)
	}

	s.Apply(event.New(event.TypeAlbumMediaRemoved, &event.AlbumMediaRemoved{AlbumID: albumID, MediaID: m1}))
	s.Apply(event.New(event.TypeAlbumRenamed, &event.AlbumRenamed{AlbumID: albumID, Name: "Travel"}))
	albums = s.Albums()
	if albums[0].Name != "Travel" || len(albums[0].MediaIDs) != 1 || albums[0].MediaIDs[0] != m2 {
		t.Errorf("album after edits: %+v", albums[0])
	}
}

func TestRebuildIndexesMatchesIncremental(t *testing.T) {
	s := New()
	srcID := newSource(t, s)

	for _, p := range []string{"/a.jpg", "/b.jpg", "/c.jpg"} {
		ev := upsert(srcID, p, 512, "cafe000011112222")
		s.Apply(ev)
		s.Apply(event.New(event.TypeMediaImported, &event.MediaImported{
			MediaID: event.NewMediaID(),
			EntryID: ev.Payload.(*event.EntryUpserted).EntryID,
			SHA256:  "00" + string(p[1]) + "0000000000000000000000000000000000000000000000000000000000",
			Size:    512,
		}))
	}
	s.Apply(event.New(event.TypeQuarantineCreated, &event.QuarantineCreated{
		QuarantineID: event.NewQuarantineID(),
		EntryID:      s.Entries()[0].ID,
		CandidateIDs: []event.MediaID{event.NewMediaID()},
	}))

	beforeBucket := s.ActiveBucketEntries(512, "cafe000011112222")
	beforeMedia := s.MediaList()
	beforeQuarantine := s.QuarantineItems("")

	s.RebuildIndexes()

	if got := s.ActiveBucketEntries(512, "cafe000011112222"); !reflect.DeepEqual(got, beforeBucket) {
		t.Errorf("bucket index diverged after rebuild: %v vs %v", got, beforeBucket)
	}
	if got := s.MediaList(); !reflect.DeepEqual(got, beforeMedia) {
		t.Error("media listing diverged after rebuild")
	}
	if got := s.QuarantineItems(""); !reflect.DeepEqual(got, beforeQuarantine) {
		t.Error("quarantine listing diverged after rebuild")
	}
	for _, e := range s.Entries() {
		if got, ok := s.EntryByIdentity(e.SourceID, e.Kind, e.Path); !ok || got.ID != e.ID {
			t.Errorf("identity index lost entry %s", e.ID)
		}
	}
}
