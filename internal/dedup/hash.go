// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package dedup

import (
	"fmt"
	"math/bits"
	"strconv"
)

// AlgorithmDHash is the only perceptual hash algorithm the comparator
// understands: 64 bits of sign-of-gradient comparisons over a 9x8
// grayscale downsample, produced by the external metadata extractor.
const AlgorithmDHash = "dhash"

// ParseHash decodes a 64-bit perceptual hash from its 16-hex-character
// storage form.
func ParseHash(s string) (uint64, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("dedup: perceptual hash must be 16 hex characters, got %d", len(s))
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("dedup: invalid perceptual hash %q: %w", s, err)
	}
	return v, nil
}

// Distance is the Hamming distance between two 64-bit fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
