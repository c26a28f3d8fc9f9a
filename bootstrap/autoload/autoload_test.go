// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package autoload

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/bureau-foundation/hermetic/bootstrap"
	"github.com/bureau-foundation/hermetic/guard"
)

// These tests share the process-wide default registry and run in
// source order: the test that enters the process-lifetime scope is
// last, after the ones that assert no guards are installed.

// captureStderr runs fn with os.Stderr redirected to a pipe and
// returns what fn wrote.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	oldStderr := os.Stderr
	os.Stderr = writer

	fn()

	os.Stderr = oldStderr
	writer.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading captured stderr: %v", err)
	}
	return string(data)
}

func TestActivateWithoutPayload(t *testing.T) {
	t.Setenv(bootstrap.EnvPolicy, "")

	activate()

	if guard.Installed() {
		t.Fatal("activate installed guards with no payload present")
	}
}

func TestActivateInvalidPayload(t *testing.T) {
	t.Setenv(bootstrap.EnvPolicy, "hermetic1.not-a-real-payload")

	var exitCode int
	originalExit := exitFunc
	exitFunc = func(code int) { exitCode = code }
	t.Cleanup(func() { exitFunc = originalExit })

	stderr := captureStderr(t, activate)

	if exitCode != violationExitCode {
		t.Fatalf("exit code = %d, want %d", exitCode, violationExitCode)
	}
	if !strings.Contains(stderr, "hermetic: invalid bootstrap payload:") {
		t.Fatalf("stderr %q does not report the bad payload", stderr)
	}
	if guard.Installed() {
		t.Fatal("guards installed despite an undecodable payload")
	}
}

func TestActivateEntersProcessLifetimeScope(t *testing.T) {
	policy := guard.Policy{BlockNativeLoad: true}
	payload, err := bootstrap.Encode(policy)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	t.Setenv(bootstrap.EnvPolicy, payload)

	activate()

	if !guard.Installed() {
		t.Fatal("activate did not install guards")
	}
	active, ok := guard.Default().ActivePolicy()
	if !ok {
		t.Fatal("no active policy after activate")
	}
	if want := policy.Normalize(); !active.Equal(want) {
		t.Fatalf("active policy = %+v, want %+v", active, want)
	}
	if v := os.Getenv(bootstrap.EnvPolicy); v != "" {
		t.Errorf("%s still set to %q after activate", bootstrap.EnvPolicy, v)
	}

	// A denial now routes through the fatal handler: one diagnostic
	// line, exit 2. The overridden exit lets the test observe both.
	var exitCode int
	originalExit := exitFunc
	exitFunc = func(code int) { exitCode = code }
	t.Cleanup(func() { exitFunc = originalExit })

	stderr := captureStderr(t, func() {
		if _, err := guard.Loader().Open("/usr/lib/libffi.so.8"); !guard.IsViolation(err) {
			t.Errorf("Open error = %v, want violation", err)
		}
	})

	if exitCode != violationExitCode {
		t.Fatalf("denial exit code = %d, want %d", exitCode, violationExitCode)
	}
	if !strings.Contains(stderr, "hermetic: blocked action: native load blocked: libffi") {
		t.Fatalf("stderr %q does not report the blocked action", stderr)
	}
}
