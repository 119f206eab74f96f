package assorted

import "sync/atomic"

// fenceSentinel is a dummy atomic word. Go has no standalone
// std::atomic_thread_fence equivalent; sync/atomic operations are
// defined by the Go memory model to order surrounding memory accesses,
// so we route each fence flavor through the cheapest atomic operation
// that gives the matching ordering guarantee. On amd64 the acquire and
// consume fences compile to an ordinary load, while the release,
// acq-rel and seq-cst fences compile to locked instructions (XCHG,
// LOCK XADD) that are full hardware barriers; all of them block the
// compiler from reordering across them.
var fenceSentinel atomic.Uint64

// MemoryFenceAcquire is equivalent to a C++ std::memory_order_acquire
// fence: prior writes made by a releasing thread become visible after
// this call returns.
func MemoryFenceAcquire() {
	fenceSentinel.Load()
}

// MemoryFenceRelease is equivalent to a C++ std::memory_order_release
// fence: writes preceding this call become visible to a thread that
// later acquires on the same location.
func MemoryFenceRelease() {
	fenceSentinel.Store(0)
}

// MemoryFenceAcqRel combines acquire and release semantics.
func MemoryFenceAcqRel() {
	fenceSentinel.Add(0)
}

// MemoryFenceConsume is equivalent to std::memory_order_consume. Go's
// memory model does not distinguish consume from acquire, so this is
// an alias; kept distinct so call sites document intent.
func MemoryFenceConsume() {
	MemoryFenceAcquire()
}

// MemoryFenceSeqCst is equivalent to std::memory_order_seq_cst: in
// addition to acq_rel, all threads observe seq_cst operations in the
// same total order.
func MemoryFenceSeqCst() {
	fenceSentinel.Add(0)
}
