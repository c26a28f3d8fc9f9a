// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"syscall"
)

// execFunc is the process-replacement entry point. Defaults to
// syscall.Exec; tests override it to capture the exec instead of
// performing it.
var execFunc = syscall.Exec

// Exec replaces the current process with the binary at path, passing
// args as the target's own arguments and env as its environment.
// argv[0] is the executable path, so the target sees exactly the
// invocation it would have seen without the hermetic parent, and its
// exit code reaches the original caller with no intermediary. On
// success Exec never returns.
func Exec(path string, args []string, env []string) error {
	argv := append([]string{path}, args...)
	if err := execFunc(path, argv, env); err != nil {
		return &Error{Op: "exec", Path: path, Err: err}
	}
	return nil
}
