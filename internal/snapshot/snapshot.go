// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package snapshot compacts derived state into a reloadable point-in-time
// dump: one NDJSON file of kind-tagged aggregate rows plus pointer.json
// recording the log offset the dump covers. A snapshot is an accelerator
// only; the log remains the source of truth.
package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/curator/internal/logging"
	"github.com/tomtom215/curator/internal/state"
)

// SchemaVersion is the current pointer and row schema version.
const SchemaVersion = 1

// FormatNDJSON is the only snapshot file format currently written.
const FormatNDJSON = "ndjson"

// Row kinds, one per aggregate.
const (
	KindSource        = "source"
	KindSourceEntry   = "sourceEntry"
	KindMedia         = "media"
	KindIngestStatus  = "ingestStatus"
	KindMetadata      = "metadata"
	KindDuplicateLink = "duplicateLink"
	KindQuarantine    = "quarantine"
	KindAlbum         = "album"
)

// Pointer is the authoritative statement that SnapshotFile reflects all
// events up to and including WALSeq. Exactly one pointer is current at a
// time; Write replaces it atomically.
type Pointer struct {
	SchemaVersion int       `json:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt"`
	WALSeq        uint64    `json:"walSeq"`
	SnapshotFile  string    `json:"snapshotFile"`
	Format        string    `json:"format"`
}

// Row is one kind-tagged aggregate dump line.
type Row struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const pointerFile = "pointer.json"

// Store reads and writes snapshots in a single directory.
type Store struct {
	dir string

	// keep is the number of snapshot files retained by Prune, in addition
	// to the file the current pointer references. Zero disables pruning.
	keep int
}

// New creates a store rooted at dir, retaining keep old snapshot files.
func New(dir string, keep int) (*Store, error) {
	if dir == "" {
		return nil, errors.New("snapshot: dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{dir: dir, keep: keep}, nil
}

// Write streams every aggregate row of st into a new snapshot file and
// atomically replaces pointer.json. walSeq must equal the seq of the last
// log record folded into st; that contract is what makes tail replay after
// a snapshot load correct.
func (s *Store) Write(walSeq uint64, st *state.State) (Pointer, error) {
	start := time.Now()
	var zero Pointer

	name := fmt.Sprintf("snapshot-%s-%s.ndjson",
		time.Now().UTC().Format("20060102T150405Z"), uuid.NewString())
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return zero, fmt.Errorf("create snapshot file: %w", err)
	}

	w := bufio.NewWriter(f)
	rows, err := writeRows(w, st)
	if err != nil {
		f.Close()
		os.Remove(path)
		return zero, err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return zero, fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return zero, fmt.Errorf("fsync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return zero, fmt.Errorf("close snapshot: %w", err)
	}

	ptr := Pointer{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().UTC(),
		WALSeq:        walSeq,
		SnapshotFile:  name,
		Format:        FormatNDJSON,
	}
	if err := s.writePointer(ptr); err != nil {
		os.Remove(path)
		return zero, err
	}

	recordSnapshotWrite(rows, time.Since(start).Seconds())
	logging.Info().
		Str("file", name).
		Uint64("wal_seq", walSeq).
		Int("rows", rows).
		Msg("snapshot written")
	return ptr, nil
}

// writePointer replaces pointer.json atomically via temp file + rename.
func (s *Store) writePointer(ptr Pointer) error {
	data, err := json.Marshal(ptr)
	if err != nil {
		return fmt.Errorf("marshal pointer: %w", err)
	}
	tmp := filepath.Join(s.dir, pointerFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write pointer temp: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, pointerFile)); err != nil {
		return fmt.Errorf("replace pointer: %w", err)
	}
	return nil
}

// ReadPointer returns the current pointer, or ok=false if no snapshot has
// ever been written.
func (s *Store) ReadPointer() (Pointer, bool, error) {
	var ptr Pointer
	data, err := os.ReadFile(filepath.Join(s.dir, pointerFile))
	if errors.Is(err, os.ErrNotExist) {
		return ptr, false, nil
	}
	if err != nil {
		return ptr, false, fmt.Errorf("read pointer: %w", err)
	}
	if err := json.Unmarshal(data, &ptr); err != nil {
		return ptr, false, fmt.Errorf("decode pointer: %w", err)
	}
	if ptr.SchemaVersion != SchemaVersion {
		return ptr, false, fmt.Errorf("snapshot pointer schema version %d, want %d", ptr.SchemaVersion, SchemaVersion)
	}
	if ptr.Format != FormatNDJSON {
		return ptr, false, fmt.Errorf("unsupported snapshot format %q", ptr.Format)
	}
	return ptr, true, nil
}

// Load reads the pointed-at snapshot file into a fresh state. The caller
// must call RebuildIndexes on the result; indexes are never persisted.
func (s *Store) Load(ptr Pointer) (*state.State, error) {
	f, err := os.Open(filepath.Join(s.dir, ptr.SnapshotFile))
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	st := state.New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("snapshot %s line %d: %w", ptr.SnapshotFile, line, err)
		}
		if err := loadRow(st, row); err != nil {
			return nil, fmt.Errorf("snapshot %s line %d: %w", ptr.SnapshotFile, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshot %s: %w", ptr.SnapshotFile, err)
	}
	return st, nil
}

// Prune removes old snapshot files, keeping the newest `keep` plus whichever
// file the current pointer references. Retention never affects correctness;
// the pointer target is always preserved.
func (s *Store) Prune() error {
	if s.keep <= 0 {
		return nil
	}

	ptr, hasPtr, err := s.ReadPointer()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read snapshot dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "snapshot-") && strings.HasSuffix(name, ".ndjson") {
			files = append(files, name)
		}
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	removed := 0
	for i, name := range files {
		if i < s.keep {
			continue
		}
		if hasPtr && name == ptr.SnapshotFile {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("prune snapshot %s: %w", name, err)
		}
		removed++
	}
	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("pruned old snapshots")
	}
	return nil
}

// writeRows dumps every aggregate listing as kind-tagged NDJSON rows and
// returns the row count.
func writeRows(w *bufio.Writer, st *state.State) (int, error) {
	rows := 0

	write := func(kind string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s row: %w", kind, err)
		}
		line, err := json.Marshal(Row{Kind: kind, Data: data})
		if err != nil {
			return fmt.Errorf("marshal %s line: %w", kind, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write %s row: %w", kind, err)
		}
		rows++
		return nil
	}

	for _, v := range st.Sources() {
		if err := write(KindSource, v); err != nil {
			return rows, err
		}
	}
	for _, v := range st.Entries() {
		if err := write(KindSourceEntry, v); err != nil {
			return rows, err
		}
	}
	for _, v := range st.MediaList() {
		if err := write(KindMedia, v); err != nil {
			return rows, err
		}
	}
	for _, v := range st.IngestStatuses() {
		if err := write(KindIngestStatus, v); err != nil {
			return rows, err
		}
	}
	for _, v := range st.MetadataList() {
		if err := write(KindMetadata, v); err != nil {
			return rows, err
		}
	}
	for _, v := range st.Links() {
		if err := write(KindDuplicateLink, v); err != nil {
			return rows, err
		}
	}
	for _, v := range st.QuarantineItems("") {
		if err := write(KindQuarantine, v); err != nil {
			return rows, err
		}
	}
	for _, v := range st.Albums() {
		if err := write(KindAlbum, v); err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// loadRow decodes one row into the state being assembled.
func loadRow(st *state.State, row Row) error {
	switch row.Kind {
	case KindSource:
		var v state.Source
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadSource(v)
	case KindSourceEntry:
		var v state.SourceEntry
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadEntry(v)
	case KindMedia:
		var v state.Media
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadMedia(v)
	case KindIngestStatus:
		var v state.IngestStatus
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadIngest(v)
	case KindMetadata:
		var v state.MediaMetadata
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadMetadata(v)
	case KindDuplicateLink:
		var v state.DuplicateLink
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadLink(v)
	case KindQuarantine:
		var v state.QuarantineItem
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadQuarantine(v)
	case KindAlbum:
		var v state.Album
		if err := json.Unmarshal(row.Data, &v); err != nil {
			return err
		}
		st.LoadAlbum(v)
	default:
		return fmt.Errorf("unknown snapshot row kind %q", row.Kind)
	}
	return nil
}
