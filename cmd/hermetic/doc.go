// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Hermetic runs a target under a capability-denying policy. It
// provides four subcommands: run (execute a target with guards
// active), check (probe what an assembled policy blocks on this
// machine), list-profiles, and show-profile (inspect the named policy
// presets).
package main
