// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package wal implements Curator's append-only log: ordered, hash-chained,
// HMAC-authenticated persistence of domain events across rotating NDJSON
// segment files. The log is the sole durable source of truth; everything
// else in the system is a fold over it.
package wal

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/logging"
)

const segmentSuffix = ".jsonl"

// segmentName formats a segment id as a 6-digit zero-padded filename.
func segmentName(id int) string {
	return fmt.Sprintf("%06d%s", id, segmentSuffix)
}

// parseSegmentID extracts the numeric id from a segment filename, or -1.
func parseSegmentID(name string) int {
	if !strings.HasSuffix(name, segmentSuffix) {
		return -1
	}
	base := strings.TrimSuffix(name, segmentSuffix)
	if len(base) != 6 {
		return -1
	}
	id, err := strconv.Atoi(base)
	if err != nil || id < 1 {
		return -1
	}
	return id
}

// Log is the single-writer append log. One process owns it; Append is
// serialized internally and persists (fsync when configured) before
// returning.
type Log struct {
	cfg Config
	log zerolog.Logger

	mu          sync.Mutex
	file        *os.File
	segmentID   int
	segmentSize int64
	lastSeq     uint64
	lastHash    *string
	closed      bool
}

// Open opens (or creates) the log in cfg.Dir. On restart it locates the
// highest-numbered segment, recovers the last record's seq and hash from a
// bounded tail window, and continues the chain from there, rotating
// immediately if the recovered segment is already over the size threshold.
func Open(cfg Config) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	l := &Log{
		cfg: cfg,
		log: logging.With().Str("component", "wal").Logger(),
	}

	ids, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		if err := l.openSegment(1); err != nil {
			return nil, err
		}
		l.log.Info().Str("dir", cfg.Dir).Msg("log initialized")
		return l, nil
	}

	if err := l.recover(ids); err != nil {
		return nil, err
	}

	// The recovered segment may already exceed the threshold, e.g. if the
	// threshold was lowered between runs.
	if l.segmentSize >= l.cfg.SegmentMaxBytes {
		if err := l.rotateLocked(); err != nil {
			return nil, err
		}
	}

	l.log.Info().
		Str("dir", cfg.Dir).
		Int("segment", l.segmentID).
		Uint64("last_seq", l.lastSeq).
		Msg("log recovered")
	return l, nil
}

// listSegments returns segment ids in cfg.Dir in increasing order.
func listSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read log dir: %w", err)
	}
	var ids []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id := parseSegmentID(e.Name()); id > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// recover walks segments from newest to oldest until it finds a last record,
// then reopens the newest segment for appending. A torn trailing line (crash
// mid-write, never acknowledged) is truncated away.
func (l *Log) recover(ids []int) error {
	newest := ids[len(ids)-1]

	for i := len(ids) - 1; i >= 0; i-- {
		path := filepath.Join(l.cfg.Dir, segmentName(ids[i]))
		rec, found, err := l.recoverTail(path)
		if err != nil {
			return err
		}
		if found {
			l.lastSeq = rec.Seq
			hash := rec.Hash
			l.lastHash = &hash
			break
		}
	}

	return l.reopenSegment(newest)
}

// recoverTail reads a bounded window from the end of path and parses the
// last complete record. Returns found=false for an empty segment.
func (l *Log) recoverTail(path string) (Record, bool, error) {
	var zero Record

	f, err := os.OpenFile(path, os.O_RDWR, 0o640)
	if err != nil {
		return zero, false, fmt.Errorf("open segment for recovery: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return zero, false, fmt.Errorf("stat segment: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return zero, false, nil
	}

	window := l.cfg.TailWindowBytes
	offset := int64(0)
	if size > window {
		offset = size - window
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return zero, false, fmt.Errorf("read segment tail: %w", err)
	}

	// Drop the torn trailing line, if any. An append is only acknowledged
	// after a full line (and fsync) landed, so truncating an incomplete
	// tail never discards acknowledged data.
	if buf[len(buf)-1] != '\n' {
		cut := bytes.LastIndexByte(buf, '\n')
		if cut < 0 && offset > 0 {
			return zero, false, fmt.Errorf("segment %s: no complete record within tail window", path)
		}
		tornAt := offset + int64(cut) + 1
		l.log.Warn().
			Str("segment", filepath.Base(path)).
			Int64("truncate_at", tornAt).
			Msg("discarding torn trailing record")
		if err := f.Truncate(tornAt); err != nil {
			return zero, false, fmt.Errorf("truncate torn tail: %w", err)
		}
		if cut < 0 {
			return zero, false, nil
		}
		buf = buf[:cut+1]
	}

	lines := bytes.Split(bytes.TrimRight(buf, "\n"), []byte("\n"))
	last := lines[len(lines)-1]
	if len(bytes.TrimSpace(last)) == 0 {
		return zero, false, nil
	}

	var rec Record
	if err := json.Unmarshal(last, &rec); err != nil {
		return zero, false, &IntegrityError{
			Segment: filepath.Base(path),
			Reason:  ReasonMalformed,
			Err:     err,
		}
	}
	return rec, true, nil
}

// reopenSegment opens an existing segment for appending.
func (l *Log) reopenSegment(id int) error {
	path := filepath.Join(l.cfg.Dir, segmentName(id))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("reopen segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat segment: %w", err)
	}
	l.file = f
	l.segmentID = id
	l.segmentSize = info.Size()
	return nil
}

// openSegment creates a fresh segment for appending.
func (l *Log) openSegment(id int) error {
	path := filepath.Join(l.cfg.Dir, segmentName(id))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	l.file = f
	l.segmentID = id
	l.segmentSize = 0
	return nil
}

// rotateLocked closes the current segment and starts the next one.
// Caller must hold l.mu (or be inside Open).
func (l *Log) rotateLocked() error {
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("close segment: %w", err)
		}
	}
	next := l.segmentID + 1
	if err := l.openSegment(next); err != nil {
		return err
	}
	recordRotation()
	l.log.Info().Int("segment", next).Msg("log segment rotated")
	return nil
}

// Append assigns the next seq, links and computes the HMAC chain, persists
// the record (fsync when configured), and returns it. This is the one
// serialized write path of the whole system.
func (l *Log) Append(ev event.Event) (Record, error) {
	start := time.Now()
	defer func() {
		recordAppendLatency(time.Since(start).Seconds())
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	var zero Record
	if l.closed {
		return zero, ErrClosed
	}

	rec := Record{
		SchemaVersion: SchemaVersion,
		Seq:           l.lastSeq + 1,
		TS:            time.Now().UTC(),
		Event:         ev,
		PrevHash:      l.lastHash,
	}
	hash, err := ComputeHash(l.cfg.Secret, &rec)
	if err != nil {
		return zero, err
	}
	rec.Hash = hash

	line, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("marshal record %d: %w", rec.Seq, err)
	}
	line = append(line, '\n')

	if l.segmentSize >= l.cfg.SegmentMaxBytes && l.segmentSize > 0 {
		if err := l.rotateLocked(); err != nil {
			return zero, err
		}
	}

	if _, err := l.file.Write(line); err != nil {
		return zero, fmt.Errorf("write record %d: %w", rec.Seq, err)
	}
	if l.cfg.SyncWrites {
		if err := l.file.Sync(); err != nil {
			return zero, fmt.Errorf("fsync record %d: %w", rec.Seq, err)
		}
	}

	l.segmentSize += int64(len(line))
	l.lastSeq = rec.Seq
	l.lastHash = &rec.Hash

	recordAppend()
	setLastSeq(rec.Seq)
	return rec, nil
}

// LastSeq returns the sequence number of the most recent record, 0 if the
// log is empty.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// ReadAll streams every record in order, verifying the full chain: schema
// version, contiguous seq, prevHash linkage, and the recomputed HMAC. Any
// violation stops the stream with an IntegrityError; records already
// delivered before the violation were individually verified.
func (l *Log) ReadAll(ctx context.Context, fn func(Record) error) error {
	ids, err := listSegments(l.cfg.Dir)
	if err != nil {
		return err
	}

	var (
		prevSeq  uint64
		prevHash *string
	)

	for _, id := range ids {
		segment := segmentName(id)
		path := filepath.Join(l.cfg.Dir, segment)

		err := func() error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open segment %s: %w", segment, err)
			}
			defer f.Close()

			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 64<<10), 16<<20)

			for scanner.Scan() {
				if err := ctx.Err(); err != nil {
					return err
				}
				line := scanner.Bytes()
				if len(bytes.TrimSpace(line)) == 0 {
					continue
				}

				var rec Record
				if err := json.Unmarshal(line, &rec); err != nil {
					recordIntegrityFailure(ReasonMalformed)
					return &IntegrityError{Segment: segment, Seq: prevSeq + 1, Reason: ReasonMalformed, Err: err}
				}
				if err := verifyNext(l.cfg.Secret, segment, &rec, prevSeq, prevHash); err != nil {
					return err
				}

				if err := fn(rec); err != nil {
					return err
				}
				prevSeq = rec.Seq
				prevHash = &rec.Hash
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("scan segment %s: %w", segment, err)
			}
			return nil
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// verifyNext checks one record against the chain state.
func verifyNext(secret []byte, segment string, rec *Record, prevSeq uint64, prevHash *string) error {
	if rec.SchemaVersion != SchemaVersion {
		recordIntegrityFailure(ReasonSchemaVersion)
		return &IntegrityError{
			Segment: segment,
			Seq:     rec.Seq,
			Reason:  ReasonSchemaVersion,
			Err:     fmt.Errorf("got %d, want %d", rec.SchemaVersion, SchemaVersion),
		}
	}
	if rec.Seq != prevSeq+1 {
		recordIntegrityFailure(ReasonSequenceGap)
		return &IntegrityError{
			Segment: segment,
			Seq:     rec.Seq,
			Reason:  ReasonSequenceGap,
			Err:     fmt.Errorf("got seq %d after %d", rec.Seq, prevSeq),
		}
	}
	switch {
	case prevHash == nil:
		if rec.PrevHash != nil {
			recordIntegrityFailure(ReasonChainBreak)
			return &IntegrityError{Segment: segment, Seq: rec.Seq, Reason: ReasonChainBreak,
				Err: fmt.Errorf("first record has non-null prevHash")}
		}
	case rec.PrevHash == nil || *rec.PrevHash != *prevHash:
		recordIntegrityFailure(ReasonChainBreak)
		return &IntegrityError{Segment: segment, Seq: rec.Seq, Reason: ReasonChainBreak}
	}

	ok, err := VerifyHash(secret, rec)
	if err != nil {
		return err
	}
	if !ok {
		recordIntegrityFailure(ReasonHashMismatch)
		return &IntegrityError{Segment: segment, Seq: rec.Seq, Reason: ReasonHashMismatch}
	}
	return nil
}

// Close flushes and closes the current segment.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.file == nil {
		return nil
	}
	if l.cfg.SyncWrites {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("fsync on close: %w", err)
		}
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close segment: %w", err)
	}
	l.file = nil
	return nil
}
