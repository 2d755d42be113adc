// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package jobs

import (
	"fmt"

	"github.com/goccy/go-json"
)

// decodeVia converts a generic payload (as folded from the log, typically
// map[string]any) into a typed struct by round-tripping through JSON.
func decodeVia(from, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, to); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
