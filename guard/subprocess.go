// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"os"
	"os/exec"
)

// ProcessSpawner is the capability behind every child-process launch.
// The subprocess guard has no allow rules: while it is installed,
// every operation on this interface is denied.
type ProcessSpawner interface {
	// Command builds an *exec.Cmd bound to ctx, like
	// exec.CommandContext. The guard denies before the Cmd is built,
	// so a denied caller never holds a runnable handle.
	Command(ctx context.Context, name string, args ...string) (*exec.Cmd, error)

	// Run executes name with the parent's stdio and waits for it.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes name and returns its standard output, like
	// exec.Cmd.Output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Shell executes command through "/bin/sh -c" with the parent's
	// stdio.
	Shell(ctx context.Context, command string) error

	// Start launches a caller-built Cmd, like exec.Cmd.Start.
	Start(cmd *exec.Cmd) error
}

// passthroughSpawner is the resting spawn capability: plain os/exec
// with no policy applied.
type passthroughSpawner struct{}

func (passthroughSpawner) Command(ctx context.Context, name string, args ...string) (*exec.Cmd, error) {
	return exec.CommandContext(ctx, name, args...), nil
}

func (passthroughSpawner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (passthroughSpawner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (passthroughSpawner) Shell(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (passthroughSpawner) Start(cmd *exec.Cmd) error {
	return cmd.Start()
}

// guardedSpawner denies every spawn attempt.
type guardedSpawner struct {
	reg   *Registry
	trace bool
}

func newGuardedSpawner(r *Registry, p Policy) ProcessSpawner {
	return &guardedSpawner{reg: r, trace: p.Trace}
}

func (g *guardedSpawner) deny(operation, name string) error {
	if g.trace {
		g.reg.log().Warn("guard denied", "capability", CapabilitySubprocess, "operation", operation, "resource", name)
	}
	return g.reg.deny(&Violation{
		Capability: CapabilitySubprocess,
		Resource:   name,
		Reason:     "subprocess disabled: " + name,
	})
}

func (g *guardedSpawner) Command(ctx context.Context, name string, args ...string) (*exec.Cmd, error) {
	return nil, g.deny("command", name)
}

func (g *guardedSpawner) Run(ctx context.Context, name string, args ...string) error {
	return g.deny("run", name)
}

func (g *guardedSpawner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, g.deny("output", name)
}

func (g *guardedSpawner) Shell(ctx context.Context, command string) error {
	return g.deny("shell", command)
}

func (g *guardedSpawner) Start(cmd *exec.Cmd) error {
	name := ""
	if cmd != nil {
		name = cmd.Path
	}
	return g.deny("start", name)
}
