// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package autoload activates a policy delivered by a parent process.
//
// A cooperating binary blank-imports it:
//
//	import _ "github.com/bureau-foundation/hermetic/bootstrap/autoload"
//
// At program initialization, before main runs, the package consumes
// the HERMETIC_POLICY environment variable. When no payload is present
// the program runs unguarded. When one is present it is decoded and
// verified, a process-lifetime scope is entered on the default guard
// registry, and the registry's denial handler is set to print one
// diagnostic line and exit with status 2. A payload that fails to
// decode is also fatal with status 2: a process launched with a policy
// must never run with silently less than that policy.
//
// The package never touches signal handling; interrupts keep their
// default behavior.
package autoload

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/hermetic/bootstrap"
	"github.com/bureau-foundation/hermetic/guard"
)

// violationExitCode is the status a guarded child exits with when the
// policy blocks an action, and when the payload itself is unusable.
const violationExitCode = 2

// exitFunc is the process-exit entry point. Tests override it to
// observe the exit instead of performing it.
var exitFunc = os.Exit

func init() {
	activate()
}

// activate performs the child side of the bootstrap handoff. The
// scope entered here is deliberately never exited: the policy holds
// for the life of the process.
func activate() {
	payload, ok := bootstrap.ConsumeEnv()
	if !ok {
		return
	}

	policy, err := bootstrap.Decode(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hermetic: invalid bootstrap payload: %v\n", err)
		exitFunc(violationExitCode)
		return
	}

	// The handler is in place before any guard installs, so there is
	// no window where a denial goes unreported.
	guard.Default().SetDenialHandler(fatalViolation)
	guard.Enter(policy)
}

// fatalViolation reports a blocked action and terminates immediately.
// No teardown runs: the process is over the moment guarded code steps
// outside its policy.
func fatalViolation(v *guard.Violation) {
	fmt.Fprintf(os.Stderr, "hermetic: blocked action: %s\n", v.Reason)
	exitFunc(violationExitCode)
}
