// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DenialHandler observes every Violation at the moment a guard denies,
// before the error returns to the caller. The bootstrap autoload path
// uses it to turn a denial in a child process into one diagnostic line
// and an immediate exit. Handlers must not block and must not call
// back into the registry.
type DenialHandler func(*Violation)

// Registry owns all interception state for one process: the current
// implementation of each capability, the guards that swap them, and
// the reference-counted activation state. All mutation happens behind
// one lock; capability reads are a single atomic load so that guard
// evaluation stays cheap on every intercepted call.
//
// Most code uses the process-wide registry through the package-level
// functions. Separate registries exist for tests, which need isolated
// activation state.
type Registry struct {
	// mu protects count, active, and the install/uninstall
	// transitions. It is held only across the counter update and the
	// (un)install calls, never during guard evaluation.
	mu     sync.Mutex
	count  int
	active Policy

	// Capability slots. Initialized to passthroughs; swapped for
	// policy-checking wrappers while the matching guard is installed.
	// Written only under mu, read lock-free by the accessors.
	network atomic.Pointer[NetworkConnector]
	spawner atomic.Pointer[ProcessSpawner]
	files   atomic.Pointer[FileOpener]
	loader  atomic.Pointer[ModuleLoader]

	denial atomic.Pointer[DenialHandler]
	logger atomic.Pointer[slog.Logger]

	netGuard  slotGuard[NetworkConnector]
	subGuard  slotGuard[ProcessSpawner]
	fsGuard   slotGuard[FileOpener]
	loadGuard slotGuard[ModuleLoader]
}

// slotGuard tracks one installed capability swap so that uninstall can
// restore exactly what install displaced. The zero value is an
// uninstalled guard. Both methods are called with the registry lock
// held.
type slotGuard[T any] struct {
	installed bool
	saved     *T
	current   *T
}

// install saves the slot's current value and replaces it with guarded.
func (g *slotGuard[T]) install(slot *atomic.Pointer[T], guarded T) {
	g.saved = slot.Load()
	g.current = &guarded
	slot.Store(g.current)
	g.installed = true
}

// uninstall puts the saved value back. A slot that was replaced behind
// the guard's back is still restored, and the tampering is reported.
func (g *slotGuard[T]) uninstall(slot *atomic.Pointer[T], capability Capability) error {
	if !g.installed {
		return nil
	}
	var err error
	if slot.Load() != g.current {
		err = fmt.Errorf("%s guard: capability slot was replaced while the guard was active", capability)
	}
	slot.Store(g.saved)
	g.saved = nil
	g.current = nil
	g.installed = false
	return err
}

// NewRegistry returns a registry with every capability slot holding
// its passthrough implementation and no scope active.
func NewRegistry() *Registry {
	r := &Registry{}
	network := NetworkConnector(passthroughNetwork{})
	r.network.Store(&network)
	spawner := ProcessSpawner(passthroughSpawner{})
	r.spawner.Store(&spawner)
	files := FileOpener(passthroughFiles{})
	r.files.Store(&files)
	loader := ModuleLoader(passthroughLoader{})
	r.loader.Store(&loader)
	return r
}

// Network returns the current network capability.
func (r *Registry) Network() NetworkConnector { return *r.network.Load() }

// Spawner returns the current process-spawn capability.
func (r *Registry) Spawner() ProcessSpawner { return *r.spawner.Load() }

// Files returns the current filesystem capability.
func (r *Registry) Files() FileOpener { return *r.files.Load() }

// Loader returns the current native-load capability.
func (r *Registry) Loader() ModuleLoader { return *r.loader.Load() }

// Installed reports whether any scope is currently active on r.
func (r *Registry) Installed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}

// ActivePolicy returns the outermost scope's normalized policy and
// whether any scope is active.
func (r *Registry) ActivePolicy() (Policy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.count > 0
}

// SetLogger directs trace output and teardown-failure reports to l.
// A nil logger falls back to slog.Default.
func (r *Registry) SetLogger(l *slog.Logger) {
	r.logger.Store(l)
}

// SetDenialHandler registers h to observe every denial on r. Passing
// nil removes the handler.
func (r *Registry) SetDenialHandler(h DenialHandler) {
	if h == nil {
		r.denial.Store(nil)
		return
	}
	r.denial.Store(&h)
}

func (r *Registry) log() *slog.Logger {
	if l := r.logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// deny routes a fresh Violation through the denial handler, if any,
// and returns it as an error. Every guard denial funnels through here.
func (r *Registry) deny(v *Violation) error {
	if h := r.denial.Load(); h != nil {
		(*h)(v)
	}
	return v
}

// enter increments the scope count and, on the 0→1 transition,
// installs the guards selected by p. The install completes before the
// lock is released, so no goroutine that has finished entering can
// observe guards as not yet installed.
func (r *Registry) enter(p Policy) {
	p = p.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if r.count == 1 {
		r.active = p
		r.installAll(p)
	}
}

// release decrements the scope count and, on the 1→0 transition,
// uninstalls all guards. The count is clamped at zero: releasing more
// times than entered is a no-op, and uninstall never runs twice for
// one install.
func (r *Registry) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return
	}
	r.count--
	if r.count > 0 {
		return
	}
	if err := r.uninstallAll(); err != nil {
		// Teardown is best-effort and must never propagate over an
		// in-flight unwind; report and carry on.
		r.log().Error("guard teardown failed", "error", err)
	}
	r.active = Policy{}
}

// installAll installs each guard whose policy flag is set, in fixed
// order: network, subprocess, filesystem, native-load. Guards whose
// flag is unset are left untouched. Caller holds r.mu.
func (r *Registry) installAll(p Policy) {
	if p.BlockNetwork {
		r.netGuard.install(&r.network, newGuardedNetwork(r, p))
	}
	if p.BlockSubprocess {
		r.subGuard.install(&r.spawner, newGuardedSpawner(r, p))
	}
	if p.FSReadonly {
		r.fsGuard.install(&r.files, newGuardedFiles(r, p))
	}
	if p.BlockNativeLoad {
		r.loadGuard.install(&r.loader, newGuardedLoader(r, p))
	}
}

// uninstallAll restores guards in the reverse of install order. Every
// guard's restore is attempted even when an earlier one fails, so one
// bad restoration cannot strand the rest; the failures come back
// joined. Caller holds r.mu.
func (r *Registry) uninstallAll() error {
	return errors.Join(
		r.loadGuard.uninstall(&r.loader, CapabilityNativeLoad),
		r.fsGuard.uninstall(&r.files, CapabilityFilesystem),
		r.subGuard.uninstall(&r.spawner, CapabilitySubprocess),
		r.netGuard.uninstall(&r.network, CapabilityNetwork),
	)
}

// defaultRegistry is the process-wide registry behind the package
// accessors.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry. Application code rarely
// needs it directly; it exists for the bootstrap autoload path and
// for wiring a logger or denial handler.
func Default() *Registry { return defaultRegistry }

// Network returns the process-wide network capability.
func Network() NetworkConnector { return defaultRegistry.Network() }

// Spawner returns the process-wide process-spawn capability.
func Spawner() ProcessSpawner { return defaultRegistry.Spawner() }

// Files returns the process-wide filesystem capability.
func Files() FileOpener { return defaultRegistry.Files() }

// Loader returns the process-wide native-load capability.
func Loader() ModuleLoader { return defaultRegistry.Loader() }

// Installed reports whether any scope is active on the process-wide
// registry.
func Installed() bool { return defaultRegistry.Installed() }
