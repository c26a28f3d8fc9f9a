// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import "sync/atomic"

// Scope is one activation of a policy on a registry. The guards come
// off only when the last live scope exits.
type Scope struct {
	registry *Registry
	released atomic.Bool
}

// Enter activates p on r. The first scope in installs the guards
// before Enter returns; nested scopes only raise the count, and the
// outermost policy stays in force until all of them exit.
func (r *Registry) Enter(p Policy) *Scope {
	r.enter(p)
	return &Scope{registry: r}
}

// Exit releases the scope. Only the first call on a given scope
// releases; later calls are no-ops. The exiting goroutine need not be
// the one that entered.
func (s *Scope) Exit() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.registry.release()
}

// With runs fn with p active on r, exiting the scope when fn returns
// or panics. A panic propagates unchanged after the exit.
func (r *Registry) With(p Policy, fn func() error) error {
	s := r.Enter(p)
	defer s.Exit()
	return fn()
}

// Wrap returns a function that runs fn under p on r, entering and
// exiting a fresh scope on every call.
func (r *Registry) Wrap(p Policy, fn func() error) func() error {
	return func() error {
		return r.With(p, fn)
	}
}

// Enter activates p on the process-wide registry.
func Enter(p Policy) *Scope { return defaultRegistry.Enter(p) }

// With runs fn with p active on the process-wide registry.
func With(p Policy, fn func() error) error { return defaultRegistry.With(p, fn) }

// Wrap returns a function that runs fn under p on the process-wide
// registry, one scope cycle per call.
func Wrap(p Policy, fn func() error) func() error { return defaultRegistry.Wrap(p, fn) }
