// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestProfileLoaderDefaults(t *testing.T) {
	t.Parallel()

	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}

	profiles := loader.List()
	for _, name := range []string{"net-hermetic", "exec-deny", "read-only", "no-native", "strict"} {
		if !slices.Contains(profiles, name) {
			t.Errorf("built-in profile %q missing from List(): %v", name, profiles)
		}
	}
}

func TestProfileLoaderResolveBuiltins(t *testing.T) {
	t.Parallel()

	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}

	netHermetic, err := loader.Resolve("net-hermetic")
	if err != nil {
		t.Fatalf("Resolve(net-hermetic) failed: %v", err)
	}
	p := netHermetic.Policy()
	if !p.BlockNetwork || !p.AllowLocalhost {
		t.Errorf("net-hermetic policy = %v, want block_network + allow_localhost", p)
	}
	if p.BlockSubprocess || p.FSReadonly || p.BlockNativeLoad {
		t.Errorf("net-hermetic policy restricts more than the network: %v", p)
	}

	execDeny, err := loader.Resolve("exec-deny")
	if err != nil {
		t.Fatalf("Resolve(exec-deny) failed: %v", err)
	}
	want := Policy{BlockSubprocess: true}
	if got := execDeny.Policy(); !got.Equal(want) {
		t.Errorf("exec-deny policy = %v, want %v", got, want)
	}
}

func TestProfileLoaderResolveStrict(t *testing.T) {
	t.Parallel()

	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}

	strict, err := loader.Resolve("strict")
	if err != nil {
		t.Fatalf("Resolve(strict) failed: %v", err)
	}
	if strict.Name != "strict" {
		t.Errorf("resolved name = %q, want %q", strict.Name, "strict")
	}

	p := strict.Policy()
	if !p.BlockNetwork {
		t.Error("strict should inherit block_network from net-hermetic")
	}
	if !p.AllowLocalhost {
		t.Error("strict should inherit allow_localhost from net-hermetic")
	}
	if !p.BlockSubprocess || !p.FSReadonly || !p.BlockNativeLoad {
		t.Errorf("strict missing its own restrictions: %v", p)
	}
}

func TestProfileLoaderUnknown(t *testing.T) {
	t.Parallel()

	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}

	_, err := loader.Resolve("nope")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "unknown profile: nope") {
		t.Errorf("error = %q, want it to say %q", err.Error(), "unknown profile: nope")
	}
}

func TestProfileChildOverridesParentFlag(t *testing.T) {
	t.Parallel()

	loader := NewProfileLoader()
	config, err := ParseProfilesConfig([]byte(`
profiles:
  locked:
    block_network: true
    block_subprocess: true
    allow_domains: [internal.example]
  relaxed:
    inherit: locked
    block_network: false
    allow_domains: [Extra.Example]
`))
	if err != nil {
		t.Fatalf("ParseProfilesConfig failed: %v", err)
	}
	loader.configs = append(loader.configs, config)

	relaxed, err := loader.Resolve("relaxed")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	p := relaxed.Policy()
	if p.BlockNetwork {
		t.Error("child's explicit block_network: false did not override the parent")
	}
	if !p.BlockSubprocess {
		t.Error("unset child field should inherit block_subprocess: true")
	}
	wantDomains := []string{"extra.example", "internal.example"}
	if !slices.Equal(p.AllowDomains, wantDomains) {
		t.Errorf("AllowDomains = %v, want union %v", p.AllowDomains, wantDomains)
	}
}

func TestProfileLoaderShadowing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	userYAML := `
profiles:
  exec-deny:
    description: "Site override"
    block_subprocess: true
    block_network: true
`
	if err := os.WriteFile(path, []byte(userYAML), 0o644); err != nil {
		t.Fatalf("writing profile file: %v", err)
	}

	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}
	if err := loader.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	profile, err := loader.Resolve("exec-deny")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if profile.Description != "Site override" {
		t.Errorf("description = %q, later-loaded file should shadow the built-in", profile.Description)
	}
	if !profile.Policy().BlockNetwork {
		t.Error("shadowed profile lost its override fields")
	}
}

func TestProfileLoaderInheritCycle(t *testing.T) {
	t.Parallel()

	loader := NewProfileLoader()
	config, err := ParseProfilesConfig([]byte(`
profiles:
  a:
    inherit: b
  b:
    inherit: a
`))
	if err != nil {
		t.Fatalf("ParseProfilesConfig failed: %v", err)
	}
	loader.configs = append(loader.configs, config)

	_, err = loader.Resolve("a")
	if err == nil {
		t.Fatal("expected error for inheritance cycle")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error = %q, want it to mention the cycle", err.Error())
	}
}

func TestProfileLoaderCache(t *testing.T) {
	t.Parallel()

	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}

	p1, err := loader.Resolve("strict")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	p2, err := loader.Resolve("strict")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p1 != p2 {
		t.Error("expected cached profile to be the same instance")
	}
}

func TestProfileCloneIsDeep(t *testing.T) {
	t.Parallel()

	enabled := true
	original := &Profile{
		Name:         "p",
		BlockNetwork: &enabled,
		AllowDomains: []string{"a.example"},
	}
	clone := original.Clone()

	*clone.BlockNetwork = false
	clone.AllowDomains[0] = "changed.example"

	if !*original.BlockNetwork {
		t.Error("mutating the clone's flag changed the original")
	}
	if original.AllowDomains[0] != "a.example" {
		t.Error("mutating the clone's domains changed the original")
	}
}
