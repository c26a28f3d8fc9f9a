// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner executes a resolved target under a policy.
//
// In-process targets run inside an activation scope on the default
// guard registry; the scope exits when the entry returns, however it
// returns. Bootstrap targets replace the current process with the
// target executable after staging the policy into its environment.
package runner
