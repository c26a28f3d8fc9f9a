// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package guard implements hermetic's in-process capability policy:
// deny or constrain network access, process spawning, filesystem
// mutation, and dynamic native-code loading for code that performs
// those operations through the process-wide capability registry.
//
// # Enforcement model
//
// Go has no runtime patch point, so interception works through an
// explicit indirection layer. A [Registry] owns one implementation
// slot per capability, and guarded code obtains the current
// implementation through the package accessors:
//
//	conn, err := guard.Network().DialContext(ctx, "tcp", addr)
//	out, err := guard.Spawner().Output(ctx, "git", "status")
//	f, err := guard.Files().Open(path)
//	p, err := guard.Loader().Open(pluginPath)
//
// Outside an active scope every slot holds a passthrough that
// delegates to the standard library with identical arguments. Entering
// a scope swaps the slots of the restricted capabilities for policy
// checking wrappers; exiting the outermost scope restores the saved
// passthroughs. Code that calls net.Dial or os.Create directly never
// passes through a slot and is therefore not governed; pairing with an
// OS-level sandbox closes that gap for adversarial code.
//
// # Activation
//
// Scopes are reference counted on the registry. The first Enter
// installs the guards selected by its [Policy]; nested enters only
// increment the count, so the outermost policy stays authoritative
// until the last Exit uninstalls everything. Enter/Exit are safe from
// concurrent goroutines, and a scope may be exited by a different
// goroutine than entered it.
//
//	scope := guard.Enter(guard.Policy{BlockNetwork: true})
//	defer scope.Exit()
//
// or, for a bounded body:
//
//	err := guard.With(policy, func() error { ... })
//
// Denied operations return a [*Violation] describing the capability
// and the offending resource. Violations are ordinary error values:
// expected, catchable, and never retried by the engine.
//
// # Profiles
//
// Named profiles (net-hermetic, exec-deny, read-only, no-native,
// strict) expand to base policies. [ProfileLoader] layers user profile
// files over the built-in table; see profile.go.
package guard
