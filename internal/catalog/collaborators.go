// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package catalog

import (
	"context"

	"github.com/tomtom215/curator/internal/event"
)

// Collaborator boundaries. The catalog core never invokes external tools
// or walks the filesystem itself; these interfaces are implemented outside
// the core and wired into job handlers at registration time.

// MetadataExtractor derives media metadata, including the perceptual hash,
// from the raw file behind an entry.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) (event.Metadata, error)
}

// VaultResolver maps catalog content to filesystem paths in the vault and
// derived-asset store.
type VaultResolver interface {
	// PathForSHA256 returns the vault path of imported content.
	PathForSHA256(sha string) (string, error)

	// DerivedPath returns where a derived asset (thumbnail, preview) for
	// the media lives or should be written.
	DerivedPath(id event.MediaID, kind string) (string, error)
}

// ScannedEntry is one file identity fact produced by a scanner walk.
type ScannedEntry struct {
	SourceID event.SourceID
	Kind     event.EntryKind
	Path     string
	Size     int64
	MTimeMS  int64

	// HeadHash is the cheap hash of the first 64KB used for duplicate
	// candidate bucketing.
	HeadHash string
}

// Scanner walks a source directory and reports the entries it finds.
type Scanner interface {
	Scan(ctx context.Context, source event.SourceID, root string, report func(ScannedEntry) error) error
}
