// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/hermetic/guard"
)

// Error is a bootstrap failure on the parent side, before any guard
// was installed in either process.
type Error struct {
	// Op is the failing step, "stage" or "exec".
	Op string

	// Path is the file or binary involved.
	Path string

	// Err is the underlying failure.
	Err error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("bootstrap %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("bootstrap %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Staged is a policy payload prepared for handoff to a child process.
type Staged struct {
	// Payload is the encoded policy, the value of HERMETIC_POLICY.
	Payload string

	// Path is the staged payload file, a diagnostic copy.
	Path string
}

// Environ returns environ with the hermetic handoff variables set,
// replacing stale ones left by an earlier launch.
func (s *Staged) Environ(environ []string) []string {
	out := make([]string, 0, len(environ)+2)
	for _, entry := range environ {
		if strings.HasPrefix(entry, EnvPolicy+"=") || strings.HasPrefix(entry, EnvPolicyFile+"=") {
			continue
		}
		out = append(out, entry)
	}
	out = append(out, EnvPolicy+"="+s.Payload)
	if s.Path != "" {
		out = append(out, EnvPolicyFile+"="+s.Path)
	}
	return out
}

// Stage encodes the policy and writes the diagnostic payload copy
// under the system temp directory. The file write is atomic: a child
// (or a human) never observes a torn payload file.
func Stage(p guard.Policy) (*Staged, error) {
	payload, err := Encode(p)
	if err != nil {
		return nil, &Error{Op: "stage", Err: err}
	}

	dir, err := os.MkdirTemp("", "hermetic-boot-")
	if err != nil {
		return nil, &Error{Op: "stage", Err: err}
	}

	path := filepath.Join(dir, "payload")
	if err := writeFileAtomic(path, []byte(payload+"\n"), 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, &Error{Op: "stage", Path: path, Err: err}
	}

	return &Staged{Payload: payload, Path: path}, nil
}

// writeFileAtomic writes data to path via a temp file in the same
// directory, syncing before the rename into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary payload file: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary payload file: %w", err)
	}
	if err := file.Chmod(perm); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("setting payload file mode: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary payload file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary payload file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming payload file into place: %w", err)
	}
	return nil
}
