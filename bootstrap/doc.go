// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap carries a guard policy across a process boundary.
//
// The parent encodes the policy into a compact self-verifying string
// (CBOR, keyed BLAKE3 digest trailer, zstd, base64url) and hands it to
// the child in the HERMETIC_POLICY environment variable, then replaces
// itself with the target binary via exec so the child's exit code is
// the target's own. A cooperating child blank-imports
// bootstrap/autoload, which consumes the variable before main runs and
// enters a process-lifetime scope on the default guard registry.
//
// The handoff is single-use: the child unsets the variables as it
// consumes them, so processes the child spawns (when its policy allows
// spawning at all) do not re-apply the policy.
package bootstrap
