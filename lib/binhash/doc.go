// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides SHA256 content hashing for binary files.
//
// Hermetic records the digest of a target executable when handing a
// process off to it, pairing the staged policy payload with the
// identity of the binary that ran under it. Comparing digests rather
// than paths answers "did the same binary run" across rebuilds and
// reinstalls that keep the path stable.
//
// The API surface is three functions:
//
//   - [HashFile] -- streams a file through SHA256, returning a [32]byte
//     digest with constant memory usage regardless of file size
//   - [FormatDigest] -- converts a [32]byte digest to its canonical
//     hex-encoded string representation for log output
//   - [ParseDigest] -- parses a hex-encoded digest string back to a
//     [32]byte array, validating length and encoding
//
// This package has no dependencies on other hermetic packages.
package binhash
