// Package rendezvous implements the one-shot cross-thread signal from
// spec.md §4.7, grounded on FOEDUS's SharedRendezvous
// (_examples/original_source/.../test_shared_rendezvous.cpp): once
// signaled, stays signaled for its lifetime; any number of waiters can
// block on it and all wake together.
package rendezvous

import (
	"sync"
	"sync/atomic"
)

// Rendezvous is a one-shot event. The zero value is not usable; use
// New. Despite the name's origin ("shared" memory across processes),
// this implementation is an in-process primitive: a goroutine-based
// engine has no need to place the flag in a POSIX shared-memory
// segment, but the semantics spec.md §4.7 describes are preserved
// exactly, including tolerance of spurious wakeups via the
// condition-variable wait loop.
type Rendezvous struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled atomic.Bool
}

// New creates an unsignaled Rendezvous.
func New() *Rendezvous {
	r := &Rendezvous{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Wait blocks until Signal has been called. Safe to call from any
// number of goroutines concurrently, including after Signal already
// fired (in which case it returns immediately).
func (r *Rendezvous) Wait() {
	if r.signaled.Load() {
		return
	}
	r.mu.Lock()
	for !r.signaled.Load() {
		r.cond.Wait()
	}
	r.mu.Unlock()
}

// Signal transitions the rendezvous to signaled and wakes every
// current and future waiter. Calling Signal more than once is a no-op
// after the first call; there is no reset.
func (r *Rendezvous) Signal() {
	r.mu.Lock()
	r.signaled.Store(true)
	r.cond.Broadcast()
	r.mu.Unlock()
}

// IsSignaled is a sequentially consistent query of the signaled state.
func (r *Rendezvous) IsSignaled() bool {
	return r.signaled.Load()
}

// IsSignaledWeak is a relaxed query used for opportunistic checks that
// can tolerate a stale "not yet signaled" answer. Go's memory model
// gives atomic.Bool the same ordering as a sequentially consistent
// load, so this is an alias kept distinct to document call-site intent
// (spec.md §4.7 distinguishes the two operations even though this
// runtime does not offer a cheaper relaxed load).
func (r *Rendezvous) IsSignaledWeak() bool {
	return r.signaled.Load()
}
