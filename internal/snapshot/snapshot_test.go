// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/state"
)

func populatedState(t *testing.T) *state.State {
	t.Helper()
	st := state.New()

	srcID := event.NewSourceID()
	st.Apply(event.New(event.TypeSourceCreated, &event.SourceCreated{
		SourceID: srcID,
		Path:     "/photos",
	}))

	entryEv := event.New(event.TypeEntryUpserted, &event.EntryUpserted{
		EntryID:    event.NewEntryID(),
		SourceID:   srcID,
		Kind:       event.EntryKindFile,
		Path:       "/photos/a.jpg",
		Size:       2048,
		MTimeMS:    1772366400000,
		HeadHash:   "0011223344556677",
		LastSeenAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	st.Apply(entryEv)
	entryID := entryEv.Payload.(*event.EntryUpserted).EntryID

	mediaID := event.NewMediaID()
	st.Apply(event.New(event.TypeMediaImported, &event.MediaImported{
		MediaID: mediaID,
		EntryID: entryID,
		SHA256:  strings.Repeat("ab", 32),
		Size:    2048,
	}))
	st.Apply(event.New(event.TypeMediaMetadataExtracted, &event.MediaMetadataExtracted{
		MediaID: mediaID,
		Metadata: event.Metadata{
			Kind:  event.MediaKindPhoto,
			Width: 4000,
			Raw:   map[string]string{"phash": "00ff00ff00ff00ff", "phashAlg": "dhash"},
		},
	}))
	st.Apply(event.New(event.TypeQuarantineCreated, &event.QuarantineCreated{
		QuarantineID: event.NewQuarantineID(),
		EntryID:      entryID,
		CandidateIDs: []event.MediaID{mediaID},
	}))
	albumID := event.NewAlbumID()
	st.Apply(event.New(event.TypeAlbumCreated, &event.AlbumCreated{AlbumID: albumID, Name: "Favs"}))
	st.Apply(event.New(event.TypeAlbumMediaAdded, &event.AlbumMediaAdded{AlbumID: albumID, MediaID: mediaID}))
	return st
}

// assertStatesEqual compares two states through their deterministic
// listings.
func assertStatesEqual(t *testing.T, got, want *state.State) {
	t.Helper()
	if !reflect.DeepEqual(got.Sources(), want.Sources()) {
		t.Error("sources diverged")
	}
	if !reflect.DeepEqual(got.Entries(), want.Entries()) {
		t.Error("entries diverged")
	}
	if !reflect.DeepEqual(got.MediaList(), want.MediaList()) {
		t.Error("media diverged")
	}
	if !reflect.DeepEqual(got.IngestStatuses(), want.IngestStatuses()) {
		t.Error("ingest statuses diverged")
	}
	if !reflect.DeepEqual(got.MetadataList(), want.MetadataList()) {
		t.Error("metadata diverged")
	}
	if !reflect.DeepEqual(got.Links(), want.Links()) {
		t.Error("links diverged")
	}
	if !reflect.DeepEqual(got.QuarantineItems(""), want.QuarantineItems("")) {
		t.Error("quarantine diverged")
	}
	if !reflect.DeepEqual(got.Albums(), want.Albums()) {
		t.Error("albums diverged")
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	st := populatedState(t)
	ptr, err := store.Write(42, st)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ptr.WALSeq != 42 || ptr.Format != FormatNDJSON || ptr.SchemaVersion != SchemaVersion {
		t.Errorf("pointer fields: %+v", ptr)
	}

	got, ok, err := store.ReadPointer()
	if err != nil || !ok {
		t.Fatalf("ReadPointer: ok=%v err=%v", ok, err)
	}
	if got.SnapshotFile != ptr.SnapshotFile {
		t.Errorf("pointer file = %s, want %s", got.SnapshotFile, ptr.SnapshotFile)
	}

	loaded, err := store.Load(got)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	loaded.RebuildIndexes()
	assertStatesEqual(t, loaded, st)

	// Indexes work after the rebuild.
	if got := loaded.ActiveBucketEntries(2048, "0011223344556677"); len(got) != 1 {
		t.Errorf("bucket candidates after load = %d, want 1", len(got))
	}
	if _, ok := loaded.MediaBySHA256(strings.Repeat("ab", 32)); !ok {
		t.Error("sha index missing after load")
	}
}

func TestReadPointerAbsent(t *testing.T) {
	store, err := New(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, ok, err := store.ReadPointer()
	if err != nil {
		t.Fatalf("ReadPointer: %v", err)
	}
	if ok {
		t.Error("pointer reported present in empty dir")
	}
}

func TestPruneKeepsNewestAndPointerTarget(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	st := populatedState(t)
	var last Pointer
	for i := 0; i < 4; i++ {
		last, err = store.Write(uint64(i+1), st)
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		// Distinct timestamps keep the lexicographic ordering honest.
		time.Sleep(1100 * time.Millisecond)
	}

	if err := store.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "snapshot-") {
			files = append(files, e.Name())
		}
	}
	if len(files) != 1 {
		t.Fatalf("files after prune = %d (%v), want 1", len(files), files)
	}
	if files[0] != last.SnapshotFile {
		t.Errorf("kept %s, want pointer target %s", files[0], last.SnapshotFile)
	}
	if _, err := os.Stat(filepath.Join(dir, last.SnapshotFile)); err != nil {
		t.Errorf("pointer target missing: %v", err)
	}
}

func TestLoadRejectsUnknownRowKind(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name := "snapshot-20260301T000000Z-test.ndjson"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(`{"kind":"mystery","data":{}}`+"\n"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err = store.Load(Pointer{SchemaVersion: SchemaVersion, SnapshotFile: name, Format: FormatNDJSON})
	if err == nil {
		t.Error("unknown row kind must fail loading")
	}
}
