// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package wal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tomtom215/curator/internal/event"
)

// SchemaVersion is the current log record schema version. A log written by a
// different schema version fails verification rather than being misread.
const SchemaVersion = 1

// Record is one authenticated line of the append log.
//
// The hash is an HMAC-SHA256 (hex) over the canonical serialization of the
// record with the hash field removed. PrevHash equals the previous record's
// hash, null for the first record ever, forming a linear tamper-evident
// chain across segment boundaries.
type Record struct {
	SchemaVersion int         `json:"schemaVersion"`
	Seq           uint64      `json:"seq"`
	TS            time.Time   `json:"ts"`
	Event         event.Event `json:"event"`
	PrevHash      *string     `json:"prevHash"`
	Hash          string      `json:"hash"`
}

// preimage is the authenticated portion of a record.
type preimage struct {
	SchemaVersion int         `json:"schemaVersion"`
	Seq           uint64      `json:"seq"`
	TS            time.Time   `json:"ts"`
	Event         event.Event `json:"event"`
	PrevHash      *string     `json:"prevHash"`
}

// ComputeHash returns the HMAC for the record's authenticated fields under
// the given secret.
func ComputeHash(secret []byte, r *Record) (string, error) {
	canonical, err := event.Canonical(preimage{
		SchemaVersion: r.SchemaVersion,
		Seq:           r.Seq,
		TS:            r.TS,
		Event:         r.Event,
		PrevHash:      r.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize record %d: %w", r.Seq, err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHash recomputes the record's HMAC and compares it to the stored
// value in constant time.
func VerifyHash(secret []byte, r *Record) (bool, error) {
	want, err := ComputeHash(secret, r)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(want), []byte(r.Hash)), nil
}
