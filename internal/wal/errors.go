// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package wal

import (
	"errors"
	"fmt"
)

// Integrity failure reasons.
const (
	ReasonSchemaVersion = "schema version mismatch"
	ReasonSequenceGap   = "sequence gap"
	ReasonChainBreak    = "hash chain break"
	ReasonHashMismatch  = "hash mismatch"
	ReasonMalformed     = "malformed record"
)

// IntegrityError reports that log verification failed at a specific record.
// It is fatal to the read: the stream cannot be trusted at or beyond Seq and
// the caller must not fall back to partial results silently.
type IntegrityError struct {
	// Segment is the file in which the violation was detected.
	Segment string

	// Seq is the sequence number at which verification failed. Zero when
	// the record was too malformed to carry one.
	Seq uint64

	// Reason is one of the Reason* constants.
	Reason string

	// Err carries the underlying cause, if any.
	Err error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("log integrity violation at seq %d (%s): %s: %v", e.Seq, e.Segment, e.Reason, e.Err)
	}
	return fmt.Sprintf("log integrity violation at seq %d (%s): %s", e.Seq, e.Segment, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsIntegrityError reports whether err is (or wraps) an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// Errors.
var (
	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("log is closed")
)
