// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package wal

import (
	"errors"
	"fmt"
)

// Defaults applied by Config.Validate for zero values.
const (
	// DefaultSegmentMaxBytes is the rotation threshold for segment files.
	DefaultSegmentMaxBytes = 8 << 20 // 8MB

	// DefaultTailWindowBytes bounds how much of the newest segment is read
	// during startup recovery to locate the last record.
	DefaultTailWindowBytes = 256 << 10 // 256KB
)

// Config holds append log configuration.
type Config struct {
	// Dir is the directory holding segment files.
	Dir string

	// Secret is the shared HMAC key authenticating every record.
	Secret []byte

	// SegmentMaxBytes is the size threshold that triggers rotation.
	// Default: DefaultSegmentMaxBytes.
	SegmentMaxBytes int64

	// SyncWrites fsyncs each append before returning. Disable only in
	// tests; durability of acknowledged appends depends on it.
	SyncWrites bool

	// TailWindowBytes bounds the recovery read of the newest segment.
	// Default: DefaultTailWindowBytes.
	TailWindowBytes int64
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("wal: Dir is required")
	}
	if len(c.Secret) == 0 {
		return errors.New("wal: Secret is required")
	}
	if c.SegmentMaxBytes < 0 {
		return fmt.Errorf("wal: SegmentMaxBytes must be positive, got %d", c.SegmentMaxBytes)
	}
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = DefaultSegmentMaxBytes
	}
	if c.TailWindowBytes <= 0 {
		c.TailWindowBytes = DefaultTailWindowBytes
	}
	return nil
}
