// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Profile is a named, shareable policy preset. Flag fields are
// pointers so a child profile can override its parent in either
// direction; nil means the field is inherited.
type Profile struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Inherit         string   `yaml:"inherit,omitempty"`
	BlockNetwork    *bool    `yaml:"block_network,omitempty"`
	BlockSubprocess *bool    `yaml:"block_subprocess,omitempty"`
	FSReadonly      *bool    `yaml:"fs_readonly,omitempty"`
	FSRoot          string   `yaml:"fs_root,omitempty"`
	BlockNativeLoad *bool    `yaml:"block_native_load,omitempty"`
	AllowLocalhost  *bool    `yaml:"allow_localhost,omitempty"`
	AllowDomains    []string `yaml:"allow_domains,omitempty"`
	Trace           *bool    `yaml:"trace,omitempty"`
}

// Policy materializes the profile as a normalized Policy. Flag fields
// left nil read as false.
func (p *Profile) Policy() Policy {
	pol := Policy{
		BlockNetwork:    boolValue(p.BlockNetwork),
		BlockSubprocess: boolValue(p.BlockSubprocess),
		FSReadonly:      boolValue(p.FSReadonly),
		FSRoot:          p.FSRoot,
		BlockNativeLoad: boolValue(p.BlockNativeLoad),
		AllowLocalhost:  boolValue(p.AllowLocalhost),
		AllowDomains:    p.AllowDomains,
		Trace:           boolValue(p.Trace),
	}
	return pol.Normalize()
}

func boolValue(b *bool) bool { return b != nil && *b }

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Clone creates a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	clone := *p
	clone.BlockNetwork = cloneBool(p.BlockNetwork)
	clone.BlockSubprocess = cloneBool(p.BlockSubprocess)
	clone.FSReadonly = cloneBool(p.FSReadonly)
	clone.BlockNativeLoad = cloneBool(p.BlockNativeLoad)
	clone.AllowLocalhost = cloneBool(p.AllowLocalhost)
	clone.Trace = cloneBool(p.Trace)
	if p.AllowDomains != nil {
		clone.AllowDomains = append([]string(nil), p.AllowDomains...)
	}
	return &clone
}

// mergeProfiles layers child over parent. Child fields that are set
// win, except AllowDomains, which merges as the union of both lists.
func mergeProfiles(parent, child *Profile) *Profile {
	result := parent.Clone()
	result.Name = child.Name
	result.Inherit = ""

	if child.Description != "" {
		result.Description = child.Description
	}
	if child.BlockNetwork != nil {
		result.BlockNetwork = cloneBool(child.BlockNetwork)
	}
	if child.BlockSubprocess != nil {
		result.BlockSubprocess = cloneBool(child.BlockSubprocess)
	}
	if child.FSReadonly != nil {
		result.FSReadonly = cloneBool(child.FSReadonly)
	}
	if child.FSRoot != "" {
		result.FSRoot = child.FSRoot
	}
	if child.BlockNativeLoad != nil {
		result.BlockNativeLoad = cloneBool(child.BlockNativeLoad)
	}
	if child.AllowLocalhost != nil {
		result.AllowLocalhost = cloneBool(child.AllowLocalhost)
	}
	if len(child.AllowDomains) > 0 {
		result.AllowDomains = normalizeDomains(append(result.AllowDomains, child.AllowDomains...))
	}
	if child.Trace != nil {
		result.Trace = cloneBool(child.Trace)
	}
	return result
}

// ProfilesConfig is the on-disk shape of a profile file.
type ProfilesConfig struct {
	Profiles map[string]*Profile `yaml:"profiles"`
}

// ParseProfilesConfig parses a profile file and names each profile
// after its map key.
func ParseProfilesConfig(data []byte) (*ProfilesConfig, error) {
	var config ProfilesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	for name, profile := range config.Profiles {
		if profile == nil {
			config.Profiles[name] = &Profile{Name: name}
			continue
		}
		profile.Name = name
	}
	return &config, nil
}

// LoadProfilesConfig loads profiles from a YAML file.
func LoadProfilesConfig(path string) (*ProfilesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := ParseProfilesConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// ProfileLoader loads and resolves policy profiles.
type ProfileLoader struct {
	configs   []*ProfilesConfig
	resolved  map[string]*Profile
	resolving map[string]bool
	logger    *slog.Logger
}

// NewProfileLoader creates a new profile loader.
func NewProfileLoader() *ProfileLoader {
	return &ProfileLoader{
		configs:   make([]*ProfilesConfig, 0),
		resolved:  make(map[string]*Profile),
		resolving: make(map[string]bool),
	}
}

// SetLogger enables verbose logging during profile loading.
func (l *ProfileLoader) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

// log is a helper that only logs if a logger is configured.
func (l *ProfileLoader) log(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}
}

// LoadDefaults loads the built-in default profiles.
func (l *ProfileLoader) LoadDefaults() error {
	config, err := ParseProfilesConfig([]byte(defaultProfilesYAML))
	if err != nil {
		return fmt.Errorf("failed to parse default profiles: %w", err)
	}
	l.configs = append(l.configs, config)
	l.log("loaded default profiles", "count", len(config.Profiles))
	return nil
}

// LoadFile loads profiles from a YAML file.
func (l *ProfileLoader) LoadFile(path string) error {
	config, err := LoadProfilesConfig(path)
	if err != nil {
		return err
	}
	l.configs = append(l.configs, config)
	l.log("loaded profiles from file", "path", path, "count", len(config.Profiles))
	return nil
}

// Resolve resolves a profile by name, applying inheritance.
// Later-loaded configs shadow earlier ones by name.
func (l *ProfileLoader) Resolve(name string) (*Profile, error) {
	if profile, ok := l.resolved[name]; ok {
		return profile, nil
	}
	if l.resolving[name] {
		return nil, fmt.Errorf("profile inheritance cycle through %q", name)
	}

	// Find the definition; the last loaded config wins.
	var base *Profile
	for _, config := range l.configs {
		if profile, ok := config.Profiles[name]; ok {
			base = profile
		}
	}
	if base == nil {
		return nil, fmt.Errorf("unknown profile: %s", name)
	}

	var profile *Profile
	if base.Inherit != "" {
		l.resolving[name] = true
		parent, err := l.Resolve(base.Inherit)
		delete(l.resolving, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent profile %q: %w", base.Inherit, err)
		}
		profile = mergeProfiles(parent, base)
	} else {
		profile = base.Clone()
	}

	l.resolved[name] = profile
	l.log("profile resolved", "name", name, "policy", profile.Policy().String())
	return profile, nil
}

// List returns all available profile names, sorted.
func (l *ProfileLoader) List() []string {
	names := make(map[string]bool)
	for _, config := range l.configs {
		for name := range config.Profiles {
			names[name] = true
		}
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// ConfigSearchPaths returns the paths to search for profile configs.
func ConfigSearchPaths() []string {
	paths := []string{}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths, filepath.Join(xdgConfig, "hermetic", "profiles.yaml"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hermetic", "profiles.yaml"))
	}

	paths = append(paths, "/etc/hermetic/profiles.yaml")

	return paths
}

// LoadFromSearchPaths creates a loader holding the built-in profiles
// plus any profile files found in the standard locations.
func LoadFromSearchPaths() (*ProfileLoader, error) {
	return LoadFromSearchPathsWithLogger(nil)
}

// LoadFromSearchPathsWithLogger creates a loader with optional verbose
// logging.
func LoadFromSearchPathsWithLogger(logger *slog.Logger) (*ProfileLoader, error) {
	loader := NewProfileLoader()
	loader.SetLogger(logger)

	if err := loader.LoadDefaults(); err != nil {
		return nil, err
	}

	for _, path := range ConfigSearchPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := loader.LoadFile(path); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		} else {
			loader.log("profile config not found", "path", path)
		}
	}

	return loader, nil
}

// defaultProfilesYAML contains the built-in profile definitions.
const defaultProfilesYAML = `
profiles:
  net-hermetic:
    description: "No network except loopback"
    block_network: true
    allow_localhost: true

  exec-deny:
    description: "No child processes"
    block_subprocess: true

  read-only:
    description: "No filesystem writes or mutations"
    fs_readonly: true

  no-native:
    description: "No foreign-function native modules"
    block_native_load: true

  strict:
    description: "Loopback-only network, no spawn, no writes, no native modules"
    inherit: net-hermetic
    block_subprocess: true
    fs_readonly: true
    block_native_load: true
`
