// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"errors"
	"slices"
	"testing"
)

func TestExecArgv(t *testing.T) {
	var gotPath string
	var gotArgv []string
	var gotEnv []string

	original := execFunc
	execFunc = func(path string, argv []string, env []string) error {
		gotPath = path
		gotArgv = argv
		gotEnv = env
		return nil
	}
	t.Cleanup(func() { execFunc = original })

	env := []string{"PATH=/usr/bin", EnvPolicy + "=hermetic1.x"}
	if err := Exec("/usr/bin/archive-tool", []string{"--verbose", "pack"}, env); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	if gotPath != "/usr/bin/archive-tool" {
		t.Errorf("exec path = %q, want /usr/bin/archive-tool", gotPath)
	}
	// argv[0] is the binary itself; the target sees the invocation it
	// would have seen without the hermetic parent.
	want := []string{"/usr/bin/archive-tool", "--verbose", "pack"}
	if !slices.Equal(gotArgv, want) {
		t.Errorf("exec argv = %v, want %v", gotArgv, want)
	}
	if !slices.Equal(gotEnv, env) {
		t.Errorf("exec env = %v, want %v", gotEnv, env)
	}
}

func TestExecFailure(t *testing.T) {
	execError := errors.New("no such file or directory")

	original := execFunc
	execFunc = func(path string, argv []string, env []string) error {
		return execError
	}
	t.Cleanup(func() { execFunc = original })

	err := Exec("/nonexistent/tool", nil, nil)
	if !errors.Is(err, execError) {
		t.Fatalf("Exec error = %v, want wrapped %v", err, execError)
	}

	var bootErr *Error
	if !errors.As(err, &bootErr) {
		t.Fatalf("Exec error %T is not *Error", err)
	}
	if bootErr.Op != "exec" || bootErr.Path != "/nonexistent/tool" {
		t.Fatalf("Error fields = %+v, want op exec, path /nonexistent/tool", bootErr)
	}
}
