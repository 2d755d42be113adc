// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package event

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Canonical serializes v into a unique byte representation: compact JSON
// with object keys sorted recursively at every level. Two structurally equal
// values always canonicalize to identical bytes regardless of field order or
// map iteration, which is what makes the log's HMAC and the job engine's
// structural payload comparison well defined.
//
// Fields absent from the marshaled form are absent from the canonical form;
// explicit nulls are preserved (a first record's prevHash is null and is
// part of the authenticated bytes).
func Canonical(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}

	// Round-trip through a generic tree with UseNumber so numeric literals
	// survive byte for byte instead of going through float64.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalEqual reports whether a and b are structurally equal under the
// canonical serialization.
func CanonicalEqual(a, b any) (bool, error) {
	ca, err := Canonical(a)
	if err != nil {
		return false, err
	}
	cb, err := Canonical(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		escaped, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canonicalize string: %w", err)
		}
		buf.Write(escaped)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			escaped, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("canonicalize key %q: %w", k, err)
			}
			buf.Write(escaped)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonicalize: unsupported value %T", v)
	}
	return nil
}
