// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"errors"
	"fmt"
)

// Capability identifies one class of sensitive operation mediated by
// the registry.
type Capability string

const (
	CapabilityNetwork    Capability = "network"
	CapabilitySubprocess Capability = "subprocess"
	CapabilityFilesystem Capability = "filesystem"
	CapabilityNativeLoad Capability = "native-load"
)

// Violation is the error returned when a guarded operation is denied
// by the active policy. It is expected and catchable: callers inside a
// scope branch on it the way they would on fs.ErrPermission. The
// engine never swallows or retries a denial.
type Violation struct {
	// Capability is the guard that denied the operation.
	Capability Capability

	// Resource identifies what was denied: a dial address, a path,
	// or a module name. Empty when the operation has no single
	// resource (a TLS handshake on an existing connection).
	Resource string

	// Reason is the full human-readable denial, e.g.
	// "network disabled: dial example.com:443".
	Reason string
}

func (v *Violation) Error() string { return v.Reason }

// AsViolation unwraps err looking for a *Violation. It mirrors
// errors.As with the result unpacked, which keeps call sites to one
// line in exit-code mapping and tests.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsViolation reports whether err is, or wraps, a *Violation.
func IsViolation(err error) bool {
	_, ok := AsViolation(err)
	return ok
}

// OptionError is the error returned for invalid policy construction
// input: an unrecognized option key or a value of the wrong type.
// Construction fails before any guard installs, so a typo in an
// option name cannot silently weaken a policy.
type OptionError struct {
	// Key is the offending option name.
	Key string

	// Detail says what was wrong with it.
	Detail string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %q: %s", e.Key, e.Detail)
}
