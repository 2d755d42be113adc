// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package dedup

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/jobs"
	"github.com/tomtom215/curator/internal/state"
)

// testCatalog folds appended events straight into a state instance, the
// same way the catalog core does, and records them for assertions.
type testCatalog struct {
	st       *state.State
	appended []event.Event
}

func newTestCatalog() *testCatalog {
	return &testCatalog{st: state.New()}
}

func (c *testCatalog) Append(ev event.Event) error {
	c.appended = append(c.appended, ev)
	c.st.Apply(ev)
	return nil
}

func (c *testCatalog) Entry(id event.EntryID) (state.SourceEntry, bool) { return c.st.Entry(id) }

func (c *testCatalog) Ingest(id event.EntryID) state.IngestStatus { return c.st.Ingest(id) }

func (c *testCatalog) ActiveBucketEntries(size int64, headHash string) []state.SourceEntry {
	return c.st.ActiveBucketEntries(size, headHash)
}

func (c *testCatalog) QuarantineForEntry(id event.EntryID) (state.QuarantineItem, bool) {
	return c.st.QuarantineForEntry(id)
}

func (c *testCatalog) QuarantineItemByID(id event.QuarantineID) (state.QuarantineItem, bool) {
	return c.st.QuarantineItemByID(id)
}

func (c *testCatalog) MetadataFor(id event.MediaID) (state.MediaMetadata, bool) {
	return c.st.MetadataFor(id)
}

func (c *testCatalog) appendedOfType(t event.Type) []event.Event {
	var out []event.Event
	for _, ev := range c.appended {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

const (
	bucketSize = int64(4096)
	bucketHash = "feedfacefeedface"
)

// addImportedEntry creates an active entry in the shared coarse bucket
// with imported media carrying the given perceptual hash. An empty phash
// leaves the metadata without one.
func addImportedEntry(t *testing.T, cat *testCatalog, srcID event.SourceID, path, phash string) (event.EntryID, event.MediaID) {
	t.Helper()
	ev := event.New(event.TypeEntryUpserted, &event.EntryUpserted{
		EntryID:    event.NewEntryID(),
		SourceID:   srcID,
		Kind:       event.EntryKindFile,
		Path:       path,
		Size:       bucketSize,
		MTimeMS:    1772366400000,
		HeadHash:   bucketHash,
		LastSeenAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	cat.st.Apply(ev)
	entryID := ev.Payload.(*event.EntryUpserted).EntryID

	mediaID := event.NewMediaID()
	cat.st.Apply(event.New(event.TypeMediaImported, &event.MediaImported{
		MediaID: mediaID,
		EntryID: entryID,
		SHA256:  strings.Repeat("cd", 32),
		Size:    bucketSize,
	}))
	raw := map[string]string{}
	if phash != "" {
		raw["phash"] = phash
		raw["phashAlg"] = AlgorithmDHash
	}
	cat.st.Apply(event.New(event.TypeMediaMetadataExtracted, &event.MediaMetadataExtracted{
		MediaID:  mediaID,
		Metadata: event.Metadata{Kind: event.MediaKindPhoto, Raw: raw},
	}))
	return entryID, mediaID
}

func newFixture(t *testing.T, cfg Config) (*Detector, *testCatalog, event.SourceID) {
	t.Helper()
	cat := newTestCatalog()
	srcID := event.NewSourceID()
	cat.st.Apply(event.New(event.TypeSourceCreated, &event.SourceCreated{
		SourceID: srcID,
		Path:     "/photos",
	}))
	det, err := NewDetector(cat, cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return det, cat, srcID
}

func scanJob(entryID event.EntryID) jobs.Job {
	return jobs.Job{
		JobID:   event.NewJobID(),
		Kind:    KindScan,
		Payload: ScanPayload{EntryID: entryID},
		Attempt: 1,
	}
}

func TestScanIdenticalHashCreatesStrongLink(t *testing.T) {
	det, cat, srcID := newFixture(t, Config{StrongDistance: 0, ProbableDistance: 2})
	_, otherMedia := addImportedEntry(t, cat, srcID, "/photos/a.jpg", "00ff00ff00ff00ff")
	entryID, _ := addImportedEntry(t, cat, srcID, "/photos/b.jpg", "00ff00ff00ff00ff")

	job := scanJob(entryID)
	if err := det.HandleScan(context.Background(), job); err != nil {
		t.Fatalf("HandleScan: %v", err)
	}

	links := cat.appendedOfType(event.TypeDuplicateLinkCreated)
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}
	p := links[0].Payload.(*event.DuplicateLinkCreated)
	if p.Level != event.LinkLevelStrong {
		t.Errorf("level = %s, want strong", p.Level)
	}
	if p.MediaID != otherMedia || p.EntryID != entryID {
		t.Errorf("link targets %s/%s, want %s/%s", p.MediaID, p.EntryID, otherMedia, entryID)
	}
	if p.Reason != "dhash distance 0" {
		t.Errorf("reason = %q", p.Reason)
	}
	if links[0].JobID != job.JobID {
		t.Errorf("link jobId = %s, want %s", links[0].JobID, job.JobID)
	}
	if got := cat.appendedOfType(event.TypeQuarantineCreated); len(got) != 0 {
		t.Errorf("quarantines = %d, want 0", len(got))
	}
}

func TestScanNearMissQuarantinesBothMedia(t *testing.T) {
	det, cat, srcID := newFixture(t, Config{StrongDistance: 0, ProbableDistance: 2})
	// One bit apart: probable but not strong.
	_, otherMedia := addImportedEntry(t, cat, srcID, "/photos/a.jpg", "00ff00ff00ff00ff")
	entryID, ownMedia := addImportedEntry(t, cat, srcID, "/photos/b.jpg", "00ff00ff00ff00fe")

	if err := det.HandleScan(context.Background(), scanJob(entryID)); err != nil {
		t.Fatalf("HandleScan: %v", err)
	}

	if got := cat.appendedOfType(event.TypeDuplicateLinkCreated); len(got) != 0 {
		t.Fatalf("links = %d, want 0", len(got))
	}
	created := cat.appendedOfType(event.TypeQuarantineCreated)
	if len(created) != 1 {
		t.Fatalf("quarantines = %d, want 1", len(created))
	}
	p := created[0].Payload.(*event.QuarantineCreated)
	if p.EntryID != entryID {
		t.Errorf("quarantine entry = %s, want %s", p.EntryID, entryID)
	}
	if len(p.CandidateIDs) != 2 || p.CandidateIDs[0] != ownMedia || p.CandidateIDs[1] != otherMedia {
		t.Errorf("candidates = %v, want [%s %s]", p.CandidateIDs, ownMedia, otherMedia)
	}
	item, ok := cat.QuarantineForEntry(entryID)
	if !ok || item.Status != event.QuarantineStatusPending {
		t.Errorf("folded quarantine = %+v ok=%v, want pending", item, ok)
	}
}

func TestScanDistantHashesProduceNothing(t *testing.T) {
	det, cat, srcID := newFixture(t, Config{StrongDistance: 4, ProbableDistance: 10})
	addImportedEntry(t, cat, srcID, "/photos/a.jpg", "0000000000000000")
	entryID, _ := addImportedEntry(t, cat, srcID, "/photos/b.jpg", "ffffffffffffffff")

	if err := det.HandleScan(context.Background(), scanJob(entryID)); err != nil {
		t.Fatalf("HandleScan: %v", err)
	}
	if len(cat.appended) != 0 {
		t.Errorf("appended %d events, want 0", len(cat.appended))
	}
}

func TestScanAbortsWhenCandidateHasPendingQuarantine(t *testing.T) {
	det, cat, srcID := newFixture(t, Config{StrongDistance: 2, ProbableDistance: 8})
	otherEntry, otherMedia := addImportedEntry(t, cat, srcID, "/photos/a.jpg", "00ff00ff00ff00ff")
	entryID, _ := addImportedEntry(t, cat, srcID, "/photos/b.jpg", "00ff00ff00ff00ff")

	cat.st.Apply(event.New(event.TypeQuarantineCreated, &event.QuarantineCreated{
		QuarantineID: event.NewQuarantineID(),
		EntryID:      otherEntry,
		CandidateIDs: []event.MediaID{otherMedia},
	}))

	if err := det.HandleScan(context.Background(), scanJob(entryID)); err != nil {
		t.Fatalf("HandleScan: %v", err)
	}
	if len(cat.appended) != 0 {
		t.Errorf("appended %d events despite pending candidate quarantine", len(cat.appended))
	}
}

func TestScanSkipsEntryWithResolvedQuarantine(t *testing.T) {
	det, cat, srcID := newFixture(t, Config{StrongDistance: 2, ProbableDistance: 8})
	addImportedEntry(t, cat, srcID, "/photos/a.jpg", "00ff00ff00ff00ff")
	entryID, ownMedia := addImportedEntry(t, cat, srcID, "/photos/b.jpg", "00ff00ff00ff00ff")

	qid := event.NewQuarantineID()
	cat.st.Apply(event.New(event.TypeQuarantineCreated, &event.QuarantineCreated{
		QuarantineID: qid,
		EntryID:      entryID,
		CandidateIDs: []event.MediaID{ownMedia},
	}))
	cat.st.Apply(event.New(event.TypeQuarantineRejected, &event.QuarantineRejected{
		QuarantineID: qid,
		Reason:       "reviewed",
	}))

	// A resolved quarantine still marks the entry as handled.
	if err := det.HandleScan(context.Background(), scanJob(entryID)); err != nil {
		t.Fatalf("HandleScan: %v", err)
	}
	if len(cat.appended) != 0 {
		t.Errorf("appended %d events for an already reviewed entry", len(cat.appended))
	}
}

func TestScanSkipsNotImportedAndMissingEntries(t *testing.T) {
	det, cat, srcID := newFixture(t, Config{StrongDistance: 2, ProbableDistance: 8})

	ev := event.New(event.TypeEntryUpserted, &event.EntryUpserted{
		EntryID:  event.NewEntryID(),
		SourceID: srcID,
		Kind:     event.EntryKindFile,
		Path:     "/photos/pending.jpg",
		Size:     bucketSize,
		HeadHash: bucketHash,
	})
	cat.st.Apply(ev)
	pending := ev.Payload.(*event.EntryUpserted).EntryID

	if err := det.HandleScan(context.Background(), scanJob(pending)); err != nil {
		t.Fatalf("HandleScan not-imported: %v", err)
	}
	if err := det.HandleScan(context.Background(), scanJob(event.NewEntryID())); err != nil {
		t.Fatalf("HandleScan missing entry: %v", err)
	}
	if len(cat.appended) != 0 {
		t.Errorf("appended %d events, want 0", len(cat.appended))
	}
}

func TestScanResolvesDuplicateIngestToExistingMedia(t *testing.T) {
	det, cat, srcID := newFixture(t, Config{StrongDistance: 0, ProbableDistance: 2})
	_, canonicalMedia := addImportedEntry(t, cat, srcID, "/photos/a.jpg", "00ff00ff00ff00ff")

	// A second entry whose ingest deduplicated to the canonical media.
	dupEv := event.New(event.TypeEntryUpserted, &event.EntryUpserted{
		EntryID:  event.NewEntryID(),
		SourceID: srcID,
		Kind:     event.EntryKindFile,
		Path:     "/photos/a-copy.jpg",
		Size:     bucketSize,
		HeadHash: bucketHash,
	})
	cat.st.Apply(dupEv)
	cat.st.Apply(event.New(event.TypeMediaSkippedDuplicate, &event.MediaSkippedDuplicate{
		EntryID:         dupEv.Payload.(*event.EntryUpserted).EntryID,
		ExistingMediaID: canonicalMedia,
	}))

	entryID, _ := addImportedEntry(t, cat, srcID, "/photos/b.jpg", "00ff00ff00ff00ff")

	if err := det.HandleScan(context.Background(), scanJob(entryID)); err != nil {
		t.Fatalf("HandleScan: %v", err)
	}

	// Two bucket entries share one media; the seen set collapses them to
	// a single link against the canonical media.
	links := cat.appendedOfType(event.TypeDuplicateLinkCreated)
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}
	if p := links[0].Payload.(*event.DuplicateLinkCreated); p.MediaID != canonicalMedia {
		t.Errorf("link media = %s, want %s", p.MediaID, canonicalMedia)
	}
}

func pendingQuarantine(t *testing.T, cat *testCatalog, srcID event.SourceID) (event.QuarantineID, event.EntryID, event.MediaID, event.MediaID) {
	t.Helper()
	_, otherMedia := addImportedEntry(t, cat, srcID, "/photos/a.jpg", "00ff00ff00ff00ff")
	entryID, ownMedia := addImportedEntry(t, cat, srcID, "/photos/b.jpg", "00ff00ff00ff00fe")
	qid := event.NewQuarantineID()
	cat.st.Apply(event.New(event.TypeQuarantineCreated, &event.QuarantineCreated{
		QuarantineID: qid,
		EntryID:      entryID,
		CandidateIDs: []event.MediaID{ownMedia, otherMedia},
	}))
	return qid, entryID, ownMedia, otherMedia
}

func TestAcceptLinksAcceptedCandidate(t *testing.T) {
	det, cat, srcID := newFixture(t, DefaultConfig())
	qid, entryID, _, otherMedia := pendingQuarantine(t, cat, srcID)

	job := jobs.Job{
		JobID:   event.NewJobID(),
		Kind:    KindQuarantineAccept,
		Payload: AcceptPayload{QuarantineID: qid, AcceptedMediaID: otherMedia},
		Attempt: 1,
	}
	if err := det.HandleAccept(context.Background(), job); err != nil {
		t.Fatalf("HandleAccept: %v", err)
	}

	accepted := cat.appendedOfType(event.TypeQuarantineAccepted)
	if len(accepted) != 1 {
		t.Fatalf("accepted events = %d, want 1", len(accepted))
	}
	if p := accepted[0].Payload.(*event.QuarantineAccepted); p.AcceptedMediaID != otherMedia {
		t.Errorf("accepted media = %s, want %s", p.AcceptedMediaID, otherMedia)
	}
	links := cat.appendedOfType(event.TypeDuplicateLinkCreated)
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}
	lp := links[0].Payload.(*event.DuplicateLinkCreated)
	if lp.Level != event.LinkLevelProbable || lp.MediaID != otherMedia || lp.EntryID != entryID {
		t.Errorf("link = %+v", lp)
	}
	if want := "quarantine " + string(qid) + " accepted"; lp.Reason != want {
		t.Errorf("reason = %q, want %q", lp.Reason, want)
	}

	// Resolving twice is a no-op.
	before := len(cat.appended)
	if err := det.HandleAccept(context.Background(), job); err != nil {
		t.Fatalf("second HandleAccept: %v", err)
	}
	if len(cat.appended) != before {
		t.Errorf("second accept appended events")
	}
}

func TestAcceptRejectsNonCandidateMedia(t *testing.T) {
	det, cat, srcID := newFixture(t, DefaultConfig())
	qid, _, _, _ := pendingQuarantine(t, cat, srcID)

	job := jobs.Job{
		JobID:   event.NewJobID(),
		Kind:    KindQuarantineAccept,
		Payload: AcceptPayload{QuarantineID: qid, AcceptedMediaID: event.NewMediaID()},
	}
	if err := det.HandleAccept(context.Background(), job); err == nil {
		t.Fatal("accepting a non-candidate must fail")
	}
	if len(cat.appendedOfType(event.TypeQuarantineAccepted)) != 0 {
		t.Error("validation failure must not append events")
	}
}

func TestAcceptUnknownQuarantineFails(t *testing.T) {
	det, _, _ := newFixture(t, DefaultConfig())
	job := jobs.Job{
		JobID:   event.NewJobID(),
		Kind:    KindQuarantineAccept,
		Payload: AcceptPayload{QuarantineID: event.NewQuarantineID(), AcceptedMediaID: event.NewMediaID()},
	}
	if err := det.HandleAccept(context.Background(), job); err == nil {
		t.Fatal("unknown quarantine must fail")
	}
}

func TestRejectResolvesWithoutLink(t *testing.T) {
	det, cat, srcID := newFixture(t, DefaultConfig())
	qid, _, _, _ := pendingQuarantine(t, cat, srcID)

	job := jobs.Job{
		JobID:   event.NewJobID(),
		Kind:    KindQuarantineReject,
		Payload: RejectPayload{QuarantineID: qid, Reason: "different shoots"},
	}
	if err := det.HandleReject(context.Background(), job); err != nil {
		t.Fatalf("HandleReject: %v", err)
	}

	rejected := cat.appendedOfType(event.TypeQuarantineRejected)
	if len(rejected) != 1 {
		t.Fatalf("rejected events = %d, want 1", len(rejected))
	}
	if p := rejected[0].Payload.(*event.QuarantineRejected); p.Reason != "different shoots" {
		t.Errorf("reason = %q", p.Reason)
	}
	if len(cat.appendedOfType(event.TypeDuplicateLinkCreated)) != 0 {
		t.Error("reject must not create links")
	}
	item, _ := cat.QuarantineItemByID(qid)
	if item.Status != event.QuarantineStatusRejected {
		t.Errorf("status = %s, want rejected", item.Status)
	}

	before := len(cat.appended)
	if err := det.HandleReject(context.Background(), job); err != nil {
		t.Fatalf("second HandleReject: %v", err)
	}
	if len(cat.appended) != before {
		t.Errorf("second reject appended events")
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{StrongDistance: -1, ProbableDistance: 8},
		{StrongDistance: 2, ProbableDistance: 65},
		{StrongDistance: 9, ProbableDistance: 8},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate(%+v) accepted invalid config", cfg)
		}
	}
	good := Config{StrongDistance: 8, ProbableDistance: 8}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate(%+v): %v", good, err)
	}
}
