// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

// splitArgs separates hermetic's own tokens from the target and its
// arguments at the first "--". found reports whether the separator was
// present; without it every token belongs to hermetic.
func splitArgs(args []string) (own, target []string, found bool) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:], true
		}
	}
	return args, nil, false
}
