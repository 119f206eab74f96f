// Package initializable provides the two-phase lifecycle discipline
// spec.md §4.9 requires of every long-lived component: explicit
// Initialize/Uninitialize instead of constructor/destructor side
// effects, so failures can be reported rather than swallowed, plus a
// scoped Guard that plays the role of the original's UninitializeGuard
// (_examples/original_source/foedus-core/src/foedus/initializable.cpp)
// without Go having destructors to hook.
package initializable

import (
	"fmt"
	"log"
	"os"
)

// Initializable is the capability every long-lived component exposes.
// Initialize and Uninitialize must each be idempotent: a second call
// returns nil with no side effect.
type Initializable interface {
	Initialize() error
	IsInitialized() bool
	Uninitialize() error
}

// Policy selects how a Guard reacts if its target is still initialized
// when the Guard is released, or if Uninitialize itself reports an
// error (spec.md §4.9).
type Policy int

const (
	// Silent calls Uninitialize if needed but logs nothing.
	Silent Policy = iota
	// WarnOnUnclean logs a warning if the target was still initialized,
	// then calls Uninitialize, then logs nothing further regardless of
	// its result.
	WarnOnUnclean
	// WarnOnUninitializeError additionally logs a warning if the
	// Uninitialize call triggered by an unclean Guard itself errors.
	WarnOnUninitializeError
	// AbortOnUninitializeError calls os.Exit(1) after logging if the
	// Uninitialize call triggered by an unclean Guard itself errors.
	AbortOnUninitializeError
	// AbortAlwaysIfStillInitialized calls os.Exit(1) immediately,
	// without even attempting Uninitialize, if the target is still
	// initialized when the Guard is released. The strictest policy:
	// it treats "forgot to uninitialize" itself as fatal.
	AbortAlwaysIfStillInitialized
)

// exitFunc is swapped out in tests so Abort* policies can be exercised
// without killing the test binary.
var exitFunc = os.Exit

// Guard is the scoped safety net spec.md §4.9 calls for: construct one
// right after a component's Initialize succeeds, and Release it (via
// defer) at scope exit. Unlike a C++ destructor, Release must be
// called explicitly — Go gives no hook to run code automatically when
// a value goes out of scope — but it reproduces the same reporting
// policy the original's UninitializeGuard implemented.
type Guard struct {
	name   string
	target Initializable
	policy Policy
}

// NewGuard creates a Guard for target, identified as name in any log
// output the policy produces (the original used typeid(*target_).name();
// Go has no stable equivalent, so callers pass a name explicitly).
func NewGuard(name string, target Initializable, policy Policy) *Guard {
	return &Guard{name: name, target: target, policy: policy}
}

// Release implements the check the original performed in
// UninitializeGuard's destructor: if the target is still initialized,
// react per g.policy; otherwise it is a no-op (the expected path, when
// the caller already uninitialized the component properly).
func (g *Guard) Release() {
	if !g.target.IsInitialized() {
		return
	}

	if g.policy != Silent {
		log.Printf("initializable: Guard found %q still initialized at scope exit; this is a bug, "+
			"uninitialize() must be called before going out of scope", g.name)
	}
	if g.policy == AbortAlwaysIfStillInitialized {
		exitFunc(1)
		return
	}

	err := g.target.Uninitialize()
	if err == nil {
		return
	}
	switch g.policy {
	case AbortOnUninitializeError:
		fmt.Fprintf(os.Stderr, "FATAL: Guard's uninitialize() for %q failed: %v\n", g.name, err)
		exitFunc(1)
	case WarnOnUninitializeError:
		fmt.Fprintf(os.Stderr, "WARN: Guard's uninitialize() for %q failed: %v\n", g.name, err)
	default:
		// Silent and WarnOnUnclean both swallow the uninitialize error
		// itself; WarnOnUnclean already warned about the uncleanliness.
	}
}

// State is an embeddable helper implementing the idempotence half of
// the Initializable contract, so components don't each hand-roll the
// same "already done?" guard.
type State struct {
	initialized bool
}

// IsInitialized reports the current state.
func (s *State) IsInitialized() bool { return s.initialized }

// RunInitialize calls fn only if not already initialized, marking the
// state initialized when fn succeeds. Returns nil without calling fn
// if already initialized.
func (s *State) RunInitialize(fn func() error) error {
	if s.initialized {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

// RunUninitialize calls fn only if currently initialized, clearing the
// state regardless of fn's result (so a failed uninitialize does not
// wedge the component into a permanently-initialized state). Returns
// nil without calling fn if not initialized.
func (s *State) RunUninitialize(fn func() error) error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	return fn()
}
