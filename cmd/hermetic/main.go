// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hermetic/guard"
	"github.com/bureau-foundation/hermetic/lib/process"
	"github.com/bureau-foundation/hermetic/lib/version"
	"github.com/bureau-foundation/hermetic/runner"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	logger := newLogger()
	slog.SetDefault(logger)

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCmd(args, logger)
	case "check":
		err = checkCmd(args, logger)
	case "list-profiles":
		err = listProfilesCmd(logger)
	case "show-profile":
		err = showProfileCmd(args, logger)
	case "version", "--version", "-v":
		fmt.Printf("hermetic %s\n", version.Info())
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		process.Fatal(err)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `hermetic - run a target under a capability-denying policy

USAGE
    hermetic <command> [flags] [-- <target> [args...]]

COMMANDS
    run            Run a target under the assembled policy
    check          Probe what the assembled policy blocks on this machine
    list-profiles  List available policy profiles
    show-profile   Show a profile's resolved policy
    version        Show version
    help           Show this help

EXAMPLES
    # Deny network except localhost around a tool on PATH
    hermetic run --profile net-hermetic -- curl https://example.com

    # Block subprocess spawning for a registered in-process entry
    hermetic run --block-subprocess -- archive-tool:verify

    # See what the strict profile would block here
    hermetic check --profile strict

ENVIRONMENT
    HERMETIC_LOG     Log level: debug, info, warn, error (default info)
    HERMETIC_POLICY  Encoded policy payload, set by hermetic for children

Profiles are read from $XDG_CONFIG_HOME/hermetic/profiles.yaml,
~/.config/hermetic/profiles.yaml, and /etc/hermetic/profiles.yaml;
later files shadow earlier ones by name.
`)
}

// newLogger builds the process logger: text on stderr, level from
// HERMETIC_LOG.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("HERMETIC_LOG")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// policyFlags holds the policy-shaping flag values shared by run and
// check.
type policyFlags struct {
	profile         string
	blockNetwork    bool
	blockSubprocess bool
	fsReadonly      bool
	fsRoot          string
	blockNativeLoad bool
	allowLocalhost  bool
	allowDomains    []string
	trace           bool
	noNetwork       bool
	noSubprocess    bool
}

func addPolicyFlags(fs *pflag.FlagSet) *policyFlags {
	f := &policyFlags{}
	fs.StringVar(&f.profile, "profile", "", "start from this named profile")
	fs.BoolVar(&f.blockNetwork, "block-network", false, "deny dials, host lookups, and TLS handshakes")
	fs.BoolVar(&f.blockSubprocess, "block-subprocess", false, "deny all subprocess spawns")
	fs.BoolVar(&f.fsReadonly, "fs-readonly", false, "deny filesystem writes and mutations")
	fs.StringVar(&f.fsRoot, "fs-root", "", "restrict reads to this directory (with --fs-readonly)")
	fs.BoolVar(&f.blockNativeLoad, "block-native-load", false, "deny loading FFI shared modules")
	fs.BoolVar(&f.allowLocalhost, "allow-localhost", false, "permit loopback hosts despite --block-network")
	fs.StringArrayVar(&f.allowDomains, "allow-domain", nil, "permit hosts containing this domain (repeatable)")
	fs.BoolVar(&f.trace, "trace", false, "log every guard decision")
	fs.BoolVar(&f.noNetwork, "no-network", false, "alias for --block-network")
	fs.BoolVar(&f.noSubprocess, "no-subprocess", false, "alias for --block-subprocess")
	return f
}

// assemblePolicy builds the effective policy: the profile first, then
// every flag the user actually set on top of it. An explicit long form
// wins over its alias.
func assemblePolicy(fs *pflag.FlagSet, f *policyFlags, logger *slog.Logger) (guard.Policy, error) {
	var policy guard.Policy
	if f.profile != "" {
		loader, err := guard.LoadFromSearchPathsWithLogger(logger)
		if err != nil {
			return guard.Policy{}, fmt.Errorf("loading profiles: %w", err)
		}
		prof, err := loader.Resolve(f.profile)
		if err != nil {
			return guard.Policy{}, err
		}
		policy = prof.Policy()
	}

	if fs.Changed("no-network") {
		policy.BlockNetwork = f.noNetwork
	}
	if fs.Changed("no-subprocess") {
		policy.BlockSubprocess = f.noSubprocess
	}
	if fs.Changed("block-network") {
		policy.BlockNetwork = f.blockNetwork
	}
	if fs.Changed("block-subprocess") {
		policy.BlockSubprocess = f.blockSubprocess
	}
	if fs.Changed("fs-readonly") {
		policy.FSReadonly = f.fsReadonly
	}
	if fs.Changed("fs-root") {
		policy.FSRoot = f.fsRoot
	}
	if fs.Changed("block-native-load") {
		policy.BlockNativeLoad = f.blockNativeLoad
	}
	if fs.Changed("allow-localhost") {
		policy.AllowLocalhost = f.allowLocalhost
	}
	if fs.Changed("allow-domain") {
		policy.AllowDomains = f.allowDomains
	}
	if fs.Changed("trace") {
		policy.Trace = f.trace
	}
	return policy.Normalize(), nil
}

// runCmd implements the "run" command.
func runCmd(args []string, logger *slog.Logger) error {
	own, targetArgs, separated := splitArgs(args)

	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	f := addPolicyFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `hermetic run - run a target under the assembled policy

USAGE
    hermetic run [flags] -- <target> [args...]

The target is a registered entrypoint ("name" or "name:entry"), a file
path, or an executable on PATH. Entrypoints run in this process inside
an activation scope; executables replace this process with the policy
in their environment.

FLAGS
`)
		fs.PrintDefaults()
	}
	fs.Parse(own)

	if extra := fs.Args(); len(extra) > 0 {
		if !separated {
			process.Usage("usage error: separate hermetic and target args with `--`")
		}
		process.Usage(fmt.Sprintf("usage error: unexpected argument before `--`: %s", extra[0]))
	}
	if !separated || len(targetArgs) == 0 {
		process.Usage("usage error: target required after `--`")
	}

	policy, err := assemblePolicy(fs, f, logger)
	if err != nil {
		return err
	}
	logger.Debug("assembled policy", "policy", policy.String(), "target", targetArgs[0])

	code, err := runner.Run(context.Background(), targetArgs[0], targetArgs[1:], policy, logger)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// checkCmd implements the "check" command: enter the assembled
// policy's scope and attempt one representative operation per
// capability, reporting what the policy does to it. Always exits 0;
// it is a diagnostic, not an enforcement gate.
func checkCmd(args []string, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("check", pflag.ExitOnError)
	f := addPolicyFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `hermetic check - probe what the assembled policy blocks

USAGE
    hermetic check [flags]

Enters the policy's scope in this process and attempts one operation
per capability: a dial to the cloud metadata endpoint, a shell no-op,
a temp-file write, and an FFI module load.

FLAGS
`)
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if extra := fs.Args(); len(extra) > 0 {
		process.Usage(fmt.Sprintf("usage error: unexpected argument: %s", extra[0]))
	}

	policy, err := assemblePolicy(fs, f, logger)
	if err != nil {
		return err
	}
	fmt.Printf("policy: %s\n", policy.String())

	scope := guard.Enter(policy)
	defer scope.Exit()

	fmt.Printf("network:     %s\n", probeNetwork())
	fmt.Printf("subprocess:  %s\n", probeSubprocess())
	fmt.Printf("filesystem:  %s\n", probeFilesystem())
	fmt.Printf("native-load: %s\n", probeNativeLoad())
	return nil
}

// probeOutcome classifies a probe error: a violation means the policy
// blocked it, anything else means the policy let it proceed.
func probeOutcome(err error) string {
	if v, ok := guard.AsViolation(err); ok {
		return fmt.Sprintf("blocked (%s)", v.Reason)
	}
	if err != nil {
		return fmt.Sprintf("allowed (proceeded, failed: %v)", err)
	}
	return "allowed"
}

func probeNetwork() string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, err := guard.Network().DialContext(ctx, "tcp", "169.254.169.254:80")
	if err == nil {
		conn.Close()
	}
	return probeOutcome(err)
}

func probeSubprocess() string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return probeOutcome(guard.Spawner().Run(ctx, "sh", "-c", ":"))
}

func probeFilesystem() string {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("hermetic-check-%d", os.Getpid()))
	err := guard.Files().WriteFile(path, []byte("probe\n"), 0o600)
	if err == nil {
		os.Remove(path)
	}
	return probeOutcome(err)
}

func probeNativeLoad() string {
	_, err := guard.Loader().Open("libffi.so")
	return probeOutcome(err)
}

// listProfilesCmd implements the "list-profiles" command.
func listProfilesCmd(logger *slog.Logger) error {
	loader, err := guard.LoadFromSearchPathsWithLogger(logger)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}

	fmt.Println("Available profiles:")
	for _, name := range loader.List() {
		prof, err := loader.Resolve(name)
		if err != nil {
			fmt.Printf("  %s (error: %v)\n", name, err)
			continue
		}
		fmt.Printf("  %-14s %s\n", name, prof.Description)
	}
	return nil
}

// showProfileCmd implements the "show-profile" command.
func showProfileCmd(args []string, logger *slog.Logger) error {
	if len(args) < 1 {
		process.Usage("usage error: profile name required")
	}
	name := args[0]

	loader, err := guard.LoadFromSearchPathsWithLogger(logger)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	prof, err := loader.Resolve(name)
	if err != nil {
		return err
	}

	policy := prof.Policy()
	fmt.Printf("Profile: %s\n", prof.Name)
	if prof.Description != "" {
		fmt.Printf("Description: %s\n", prof.Description)
	}
	fmt.Println()
	fmt.Println("Policy:")
	fmt.Printf("  Block Network:     %v\n", policy.BlockNetwork)
	fmt.Printf("  Block Subprocess:  %v\n", policy.BlockSubprocess)
	fmt.Printf("  FS Readonly:       %v\n", policy.FSReadonly)
	if policy.FSRoot != "" {
		fmt.Printf("  FS Root:           %s\n", policy.FSRoot)
	}
	fmt.Printf("  Block Native Load: %v\n", policy.BlockNativeLoad)
	fmt.Printf("  Allow Localhost:   %v\n", policy.AllowLocalhost)
	if len(policy.AllowDomains) > 0 {
		fmt.Printf("  Allow Domains:     %s\n", strings.Join(policy.AllowDomains, ", "))
	}
	fmt.Printf("  Trace:             %v\n", policy.Trace)
	return nil
}
