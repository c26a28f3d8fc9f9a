// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides hermetic's standard CBOR encoding configuration.
//
// Hermetic keeps a clear format boundary:
//
//   - YAML for operator-facing configuration (profile tables), plain
//     text for CLI output.
//   - CBOR for machine-to-machine records: the bootstrap policy
//     payload handed to child processes and its on-disk diagnostic
//     copy.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every hermetic package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which keeps the bootstrap payload digest stable for a given
// policy.
//
// For buffer-oriented operations (payloads, files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Types that are only ever CBOR (wire payloads) use `cbor` struct tags,
// with `keyasint` integer keys where compactness matters. Types that
// also serve JSON would use `json` tags and rely on fxamacker's
// fallback; never put both tags on one field.
package codec
