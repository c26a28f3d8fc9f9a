// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/hermetic/bootstrap"
	"github.com/bureau-foundation/hermetic/guard"
	"github.com/bureau-foundation/hermetic/lib/binhash"
	"github.com/bureau-foundation/hermetic/target"
)

// violationExitCode is the exit status for a policy violation that
// escapes to the top level.
const violationExitCode = 2

// execProcess hands off to the target executable. Defaults to
// bootstrap.Exec; tests override it to observe the handoff instead of
// performing it.
var execProcess = bootstrap.Exec

// Run resolves name and executes it under policy, returning the exit
// code the process should finish with. In-process targets run inside
// an activation scope; their returned code passes through, except
// that a violation escaping the entry prints one
// "hermetic: blocked action" line to stderr and maps to exit code 2
// with no error. Bootstrap targets replace the current process on
// success, so Run only returns for them when staging or exec fails.
// Every returned error carries exit code 1.
func Run(ctx context.Context, name string, args []string, policy guard.Policy, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	spec, err := target.Resolve(name)
	if err != nil {
		return 1, err
	}

	if spec.Mode == target.ModeBootstrap {
		return runBootstrap(spec, args, policy, logger)
	}
	return runInProcess(ctx, spec, args, policy)
}

func runInProcess(ctx context.Context, spec target.Spec, args []string, policy guard.Policy) (int, error) {
	scope := guard.Enter(policy)
	defer scope.Exit()

	code, err := spec.Func(ctx, args)
	if err != nil {
		if v, ok := guard.AsViolation(err); ok {
			fmt.Fprintf(os.Stderr, "hermetic: blocked action: %s\n", v.Reason)
			return violationExitCode, nil
		}
		return 1, err
	}
	return code, nil
}

func runBootstrap(spec target.Spec, args []string, policy guard.Policy, logger *slog.Logger) (int, error) {
	if !spec.Cooperating {
		logger.Warn("target does not link the hermetic runtime; the policy travels with it but nothing in the child enforces",
			"target", spec.Name,
			"path", spec.ExecPath,
			"interpreter", spec.Interpreter,
		)
	}

	staged, err := bootstrap.Stage(policy)
	if err != nil {
		return 1, err
	}

	// The digest pairs the staged payload with the identity of the
	// binary that ran under it.
	if digest, hashErr := binhash.HashFile(spec.ExecPath); hashErr == nil {
		logger.Debug("target binary identity",
			"path", spec.ExecPath,
			"hash", binhash.FormatDigest(digest),
		)
	} else {
		logger.Warn("failed to hash target binary", "error", hashErr)
	}

	logger.Debug("replacing process with target",
		"path", spec.ExecPath,
		"payload_file", staged.Path,
	)
	if err := execProcess(spec.ExecPath, args, staged.Environ(os.Environ())); err != nil {
		return 1, err
	}
	// Reached only under a test exec function; the real handoff does
	// not return on success.
	return 0, nil
}
