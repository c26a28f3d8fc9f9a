// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"path/filepath"
	"plugin"
	"strings"
)

// ModuleLoader is the capability behind dynamic native-code loading.
// The native-load guard denies a fixed set of foreign-function
// modules before any load side effect can run; everything else loads
// normally.
type ModuleLoader interface {
	// Open loads the shared object at path, like plugin.Open.
	Open(path string) (*plugin.Plugin, error)
}

// nativeDenyList names the foreign-function-interface modules the
// native-load guard refuses, by exact top-level name.
var nativeDenyList = map[string]struct{}{
	"ffi":    {},
	"libffi": {},
	"dl":     {},
	"libdl":  {},
}

// moduleName reduces a loader path to its top-level module name: the
// base of the path with everything from the first dot onward stripped,
// so "/usr/lib/libffi.so.8" becomes "libffi". The match is exact, not
// substring: "myffi.so" stays "myffi" and loads.
func moduleName(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

// passthroughLoader is the resting native-load capability.
type passthroughLoader struct{}

func (passthroughLoader) Open(path string) (*plugin.Plugin, error) {
	return plugin.Open(path)
}

// guardedLoader denies deny-listed modules and forwards the rest.
type guardedLoader struct {
	reg   *Registry
	next  ModuleLoader
	trace bool
}

func newGuardedLoader(r *Registry, p Policy) ModuleLoader {
	return &guardedLoader{reg: r, next: r.Loader(), trace: p.Trace}
}

func (g *guardedLoader) Open(path string) (*plugin.Plugin, error) {
	name := moduleName(path)
	if _, denied := nativeDenyList[name]; denied {
		if g.trace {
			g.reg.log().Warn("guard denied", "capability", CapabilityNativeLoad, "operation", "open", "resource", path)
		}
		return nil, g.reg.deny(&Violation{
			Capability: CapabilityNativeLoad,
			Resource:   path,
			Reason:     "native load blocked: " + name,
		})
	}
	if g.trace {
		g.reg.log().Info("guard allowed", "capability", CapabilityNativeLoad, "operation", "open", "resource", path)
	}
	return g.next.Open(path)
}
