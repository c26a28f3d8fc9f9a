// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"os"
	"path/filepath"
	"strings"
)

// FileOpener is the capability behind file opens and the named
// mutating filesystem operations. While the filesystem guard is
// installed, reads delegate (subject to the sandbox root) and every
// write or mutation is denied.
type FileOpener interface {
	// Open opens name read-only, like os.Open.
	Open(name string) (*os.File, error)

	// OpenFile opens name like os.OpenFile. Any write flag in flag
	// (O_WRONLY, O_RDWR, O_APPEND, O_CREATE, O_TRUNC, O_EXCL) makes
	// the call a write for policy purposes.
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)

	// Create creates or truncates name, like os.Create.
	Create(name string) (*os.File, error)

	// WriteFile writes data to name, like os.WriteFile.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Remove removes name, like os.Remove.
	Remove(name string) error

	// RemoveAll removes path and its children, like os.RemoveAll.
	RemoveAll(path string) error

	// Rename renames oldpath to newpath, like os.Rename.
	Rename(oldpath, newpath string) error

	// Mkdir creates one directory, like os.Mkdir.
	Mkdir(name string, perm os.FileMode) error

	// MkdirAll creates a directory and its parents, like os.MkdirAll.
	MkdirAll(path string, perm os.FileMode) error
}

// writeFlags are the os.OpenFile flags that turn an open into a write.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC | os.O_EXCL

// passthroughFiles is the resting filesystem capability: plain os
// calls with no policy applied.
type passthroughFiles struct{}

func (passthroughFiles) Open(name string) (*os.File, error) {
	return os.Open(name)
}

func (passthroughFiles) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (passthroughFiles) Create(name string) (*os.File, error) {
	return os.Create(name)
}

func (passthroughFiles) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (passthroughFiles) Remove(name string) error {
	return os.Remove(name)
}

func (passthroughFiles) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (passthroughFiles) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (passthroughFiles) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(name, perm)
}

func (passthroughFiles) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// guardedFiles denies writes and mutations, and confines reads to the
// realized sandbox root when one is configured.
type guardedFiles struct {
	reg   *Registry
	next  FileOpener
	root  string
	trace bool
}

// newGuardedFiles realizes the sandbox root once and wraps the
// registry's current filesystem capability.
func newGuardedFiles(r *Registry, p Policy) FileOpener {
	return &guardedFiles{
		reg:   r,
		next:  r.Files(),
		root:  realizeRoot(p.FSRoot),
		trace: p.Trace,
	}
}

// realizeRoot resolves the configured sandbox root to a symlink-free
// absolute path. When resolution fails, the absolute form still
// restricts reads lexically.
func realizeRoot(root string) string {
	if root == "" {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

// resolvePath puts a candidate path in the same canonical form as the
// realized root: absolute, symlinks resolved when possible, cleaned.
func resolvePath(name string) string {
	p := name
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.Clean(p)
}

// pathWithin reports whether path equals root or sits lexically under
// it. Both arguments must already be canonical.
func pathWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func (g *guardedFiles) traceAllow(operation, resource string) {
	if g.trace {
		g.reg.log().Info("guard allowed", "capability", CapabilityFilesystem, "operation", operation, "resource", resource)
	}
}

func (g *guardedFiles) deny(operation string, v *Violation) error {
	if g.trace {
		g.reg.log().Warn("guard denied", "capability", CapabilityFilesystem, "operation", operation, "resource", v.Resource)
	}
	return g.reg.deny(v)
}

func (g *guardedFiles) denyWrite(name string) error {
	return g.deny("write", &Violation{
		Capability: CapabilityFilesystem,
		Resource:   name,
		Reason:     "filesystem readonly: " + name,
	})
}

func (g *guardedFiles) denyMutation(operation, resource string) error {
	return g.deny(operation, &Violation{
		Capability: CapabilityFilesystem,
		Resource:   resource,
		Reason:     "filesystem mutation disabled: " + operation + " " + resource,
	})
}

// checkRead denies reads that resolve outside the sandbox root. With
// no root configured every read is permitted.
func (g *guardedFiles) checkRead(name string) error {
	if g.root == "" {
		return nil
	}
	if pathWithin(g.root, resolvePath(name)) {
		return nil
	}
	return g.deny("read", &Violation{
		Capability: CapabilityFilesystem,
		Resource:   name,
		Reason:     "read outside sandbox root: " + name,
	})
}

func (g *guardedFiles) Open(name string) (*os.File, error) {
	if err := g.checkRead(name); err != nil {
		return nil, err
	}
	g.traceAllow("open", name)
	return g.next.Open(name)
}

func (g *guardedFiles) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	if flag&writeFlags != 0 {
		return nil, g.denyWrite(name)
	}
	if err := g.checkRead(name); err != nil {
		return nil, err
	}
	g.traceAllow("open", name)
	return g.next.OpenFile(name, flag, perm)
}

func (g *guardedFiles) Create(name string) (*os.File, error) {
	return nil, g.denyWrite(name)
}

func (g *guardedFiles) WriteFile(name string, data []byte, perm os.FileMode) error {
	return g.denyWrite(name)
}

func (g *guardedFiles) Remove(name string) error {
	return g.denyMutation("remove", name)
}

func (g *guardedFiles) RemoveAll(path string) error {
	return g.denyMutation("removeall", path)
}

func (g *guardedFiles) Rename(oldpath, newpath string) error {
	return g.denyMutation("rename", oldpath+" -> "+newpath)
}

func (g *guardedFiles) Mkdir(name string, perm os.FileMode) error {
	return g.denyMutation("mkdir", name)
}

func (g *guardedFiles) MkdirAll(path string, perm os.FileMode) error {
	return g.denyMutation("mkdirall", path)
}
