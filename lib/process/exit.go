// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. This is
// the standard hermetic binary entrypoint error handler. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// Usage writes the message to stderr and exits with code 2, the flag
// package's parse-failure status. Use it for argument mistakes that
// are the caller's fault rather than the program's.
func Usage(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(2)
}
