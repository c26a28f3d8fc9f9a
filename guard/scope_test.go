// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/hermetic/lib/testutil"
)

func TestWithRunsUnderPolicyAndRestores(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	wantErr := errors.New("from fn")

	err := r.With(Policy{BlockSubprocess: true}, func() error {
		if !r.Installed() {
			t.Error("Installed() = false inside With")
		}
		if err := r.Spawner().Shell(context.Background(), "id"); !IsViolation(err) {
			t.Errorf("expected violation inside With, got %v", err)
		}
		return wantErr
	})
	if err != wantErr {
		t.Errorf("With returned %v, want the fn error", err)
	}
	if r.Installed() {
		t.Error("Installed() = true after With returned")
	}
}

func TestWithExitsOnPanic(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic did not propagate through With")
			}
		}()
		_ = r.With(Policy{BlockNetwork: true}, func() error {
			panic("boom")
		})
	}()

	if r.Installed() {
		t.Error("guards still installed after fn panicked")
	}
}

func TestWrapCyclesPerCall(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	calls := 0
	wrapped := r.Wrap(Policy{BlockSubprocess: true}, func() error {
		calls++
		if !r.Installed() {
			t.Error("Installed() = false inside wrapped fn")
		}
		return nil
	})

	if r.Installed() {
		t.Error("Wrap installed guards before the wrapped fn ran")
	}
	for i := 0; i < 3; i++ {
		if err := wrapped(); err != nil {
			t.Fatalf("wrapped call %d failed: %v", i, err)
		}
		if r.Installed() {
			t.Errorf("guards still installed between wrapped calls (call %d)", i)
		}
	}
	if calls != 3 {
		t.Errorf("wrapped fn ran %d times, want 3", calls)
	}
}

func TestScopeExitAtMostOnce(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := r.Enter(Policy{BlockNetwork: true})
	second := r.Enter(Policy{BlockNetwork: true})

	// Exiting the same scope repeatedly releases only once. The
	// second scope keeps the guards installed.
	first.Exit()
	first.Exit()
	first.Exit()
	if !r.Installed() {
		t.Fatal("double exit of one scope released another scope's activation")
	}

	second.Exit()
	if r.Installed() {
		t.Error("Installed() = true after all scopes exited")
	}
}

func TestNilScopeExit(t *testing.T) {
	t.Parallel()

	var s *Scope
	s.Exit()
}

func TestScopeExitFromAnotherGoroutine(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s := r.Enter(Policy{BlockSubprocess: true})

	done := make(chan struct{})
	go func() {
		s.Exit()
		close(done)
	}()

	testutil.RequireClosed(t, done, 5*time.Second, "scope exit from another goroutine")
	if r.Installed() {
		t.Error("Installed() = true after cross-goroutine exit")
	}
}

func TestConcurrentScopes(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.With(Policy{BlockSubprocess: true}, func() error {
				if err := r.Spawner().Shell(context.Background(), "id"); !IsViolation(err) {
					return errors.New("spawn not denied inside active scope")
				}
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}

	if r.Installed() {
		t.Error("Installed() = true after all concurrent scopes exited")
	}
	if _, err := r.Spawner().Command(context.Background(), "true"); err != nil {
		t.Errorf("spawner still guarded after all scopes exited: %v", err)
	}
}
