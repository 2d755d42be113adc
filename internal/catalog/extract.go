// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curator/internal/dedup"
	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/jobs"
	"github.com/tomtom215/curator/internal/logging"
	"github.com/tomtom215/curator/internal/validation"
)

// KindExtractMetadata derives metadata for one imported media via the
// external extractor.
const KindExtractMetadata = "media.extract_metadata"

// ExtractPayload names the media to extract metadata for.
type ExtractPayload struct {
	MediaID event.MediaID `json:"mediaId"`
}

// Extractor owns the metadata extraction job handler. The actual tool
// invocation lives behind the MetadataExtractor collaborator; this handler
// resolves the vault path, records the result, and chains a duplicate scan
// when the extractor supplied a perceptual hash.
type Extractor struct {
	core  *Core
	ext   MetadataExtractor
	vault VaultResolver
	eng   *jobs.Engine
	log   zerolog.Logger
}

// NewExtractor builds the handler around the collaborator implementations.
func NewExtractor(core *Core, ext MetadataExtractor, vault VaultResolver) *Extractor {
	return &Extractor{
		core:  core,
		ext:   ext,
		vault: vault,
		log:   logging.With().Str("component", "extract").Logger(),
	}
}

// Register wires the extraction kind into the engine. Extraction shells out
// to external tools, so it runs in the io pool and gets a few attempts for
// transient tool failures.
func (x *Extractor) Register(eng *jobs.Engine) error {
	x.eng = eng
	return eng.Register(KindExtractMetadata, x.HandleExtract,
		jobs.WithPool("io"), jobs.WithMaxAttempts(3))
}

// HandleExtract extracts metadata for the payload's media and appends the
// result. Extractor and vault errors are returned to the engine and routed
// through the retry machine.
func (x *Extractor) HandleExtract(ctx context.Context, job jobs.Job) error {
	var p ExtractPayload
	if err := job.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode extract payload: %w", err)
	}
	if p.MediaID == "" {
		return fmt.Errorf("extract payload missing mediaId")
	}

	media, ok := x.core.Media(p.MediaID)
	if !ok {
		x.log.Warn().Str("media_id", string(p.MediaID)).Msg("media no longer exists, skipping extraction")
		return nil
	}

	path, err := x.vault.PathForSHA256(media.SHA256)
	if err != nil {
		return fmt.Errorf("resolve vault path for %s: %w", media.SHA256, err)
	}
	md, err := x.ext.Extract(ctx, path)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	ev := event.New(event.TypeMediaMetadataExtracted, &event.MediaMetadataExtracted{
		MediaID:  media.ID,
		Metadata: md,
	}).WithJob(job.JobID)
	if err := x.core.Append(ev); err != nil {
		return fmt.Errorf("append metadata: %w", err)
	}
	x.log.Info().
		Str("media_id", string(media.ID)).
		Str("kind", string(md.Kind)).
		Msg("metadata extracted")

	// Chain a duplicate scan once a usable fingerprint is available.
	if raw, _ := md.PerceptualHash(); raw != "" {
		if err := validation.Var(raw, "phash"); err != nil {
			x.log.Warn().
				Str("media_id", string(media.ID)).
				Str("phash", raw).
				Msg("extractor produced a malformed perceptual hash, skipping duplicate scan")
			return nil
		}
		if _, err := x.eng.EnqueueDeduped(dedup.KindScan, dedup.ScanPayload{EntryID: media.EntryID}); err != nil {
			return fmt.Errorf("chain duplicate scan: %w", err)
		}
	}
	return nil
}
