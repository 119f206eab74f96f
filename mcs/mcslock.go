// Package mcs implements an MCS queue lock: a mutex where every waiter
// spins on a cache line it privately owns, rather than on the lock
// word itself. FOEDUS adopted this after observing SILO-style spin
// locks with atomic CAS collapse under cache-invalidation storms on
// 8- and 16-socket machines (spec.md §4.6); local-spin scales because
// a release only has to wake the one thread holding the next pointer,
// never every spinner.
package mcs

import (
	"context"
	"sync/atomic"

	"github.com/foedus-go/foedus/assorted"
	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/telemetry"
)

// BlockIndex identifies one Block within the owning thread's BlockArena.
type BlockIndex uint32

// NullBlock is the sentinel meaning "no block" / "not a successor".
const NullBlock BlockIndex = 0

// Block is one acquirer's local-spin node. A Block belongs to exactly
// one thread at a time; threads allocate Blocks from their own
// BlockArena (spec.md §4.5's "slice of MCS block storage") and never
// touch another thread's Block except through the atomic successor
// and locked fields, which is what makes the spin local.
type Block struct {
	// successor packs (threadID+1)<<32 | blockIndex. Zero means "no
	// successor yet". The +1 bias disambiguates "none" from thread 0.
	successor atomic.Uint64
	locked    atomic.Bool
}

func (b *Block) reset() {
	b.successor.Store(0)
	b.locked.Store(true)
}

func packSuccessor(threadID int32, block BlockIndex) uint64 {
	return uint64(uint32(threadID+1))<<32 | uint64(uint32(block))
}

func unpackSuccessor(v uint64) (threadID int32, block BlockIndex) {
	threadID = int32(uint32(v>>32)) - 1
	block = BlockIndex(uint32(v))
	return
}

// BlockArena is the per-thread pool of Blocks that thread's MCS
// acquisitions draw from. It is a ring: FOEDUS reuses block indices
// because a thread never holds more outstanding MCS blocks than the
// deepest nesting of locks it takes within one critical section, which
// is small and bounded by the caller.
type BlockArena struct {
	blocks []Block
	next   uint32
}

// NewBlockArena allocates a BlockArena with room for `capacity`
// concurrently outstanding blocks for one thread.
func NewBlockArena(capacity int) *BlockArena {
	if capacity <= 0 {
		capacity = 1
	}
	return &BlockArena{blocks: make([]Block, capacity)}
}

// Capacity returns the number of blocks this arena can hold.
func (a *BlockArena) Capacity() int {
	return len(a.blocks)
}

// Allocate hands out the next block index in ring order.
func (a *BlockArena) Allocate() (BlockIndex, *Block) {
	idx := BlockIndex(a.next%uint32(len(a.blocks))) + 1
	a.next++
	block := &a.blocks[idx-1]
	block.reset()
	return idx, block
}

// At returns the block for a previously allocated index.
func (a *BlockArena) At(idx BlockIndex) *Block {
	return &a.blocks[idx-1]
}

// Registry lets a lock holder's Release reach into the Block of
// whichever thread most recently linked itself as successor, the way
// a PageResolver lets code reach into another NUMA node's pool: by a
// stable small integer id, never a raw pointer handed across threads
// out of band.
type Registry struct {
	arenas []*BlockArena // indexed by threadID; nil entries are unregistered
}

// NewRegistry creates a Registry sized for up to `maxThreads` threads.
func NewRegistry(maxThreads int) *Registry {
	return &Registry{arenas: make([]*BlockArena, maxThreads)}
}

// Register associates threadID with its BlockArena. Called once during
// thread initialize.
func (r *Registry) Register(threadID int32, arena *BlockArena) {
	r.arenas[threadID] = arena
}

// Unregister clears the association during thread uninitialize.
func (r *Registry) Unregister(threadID int32) {
	r.arenas[threadID] = nil
}

func (r *Registry) resolve(threadID int32) *BlockArena {
	arena := r.arenas[threadID]
	if arena == nil {
		panic("mcs: resolving block arena of an unregistered thread")
	}
	return arena
}

// Lock is the global MCS lock word: a single atomic holding the
// (thread_id, block_index) pair of the current tail of the waiter
// queue, or 0 when the lock is free (spec.md §3, §4.6).
type Lock struct {
	tail atomic.Uint64
}

func packTail(threadID int32, block BlockIndex) uint64 {
	return uint64(uint32(threadID))<<32 | uint64(uint32(block))
}

func unpackTail(v uint64) (threadID int32, block BlockIndex) {
	threadID = int32(uint32(v >> 32))
	block = BlockIndex(uint32(v))
	return
}

// Acquire unconditionally takes the lock, queueing behind any current
// holder. It returns the block index this thread used. bundle may be
// nil (tests exercising the lock directly, with no telemetry bundle at
// hand); a nil bundle simply means no counters are incremented.
func Acquire(lock *Lock, reg *Registry, selfThreadID int32, selfArena *BlockArena, bundle *telemetry.Bundle) BlockIndex {
	idx, block := selfArena.Allocate()
	prevTail := lock.tail.Swap(packTail(selfThreadID, idx))
	if prevTail == 0 {
		assorted.MemoryFenceAcquire()
		countAcquisition(bundle)
		return idx
	}

	predThread, predIdx := unpackTail(prevTail)
	predBlock := reg.resolve(predThread).At(predIdx)
	predBlock.successor.Store(packSuccessor(selfThreadID, idx))
	assorted.MemoryFenceRelease()

	for block.locked.Load() {
		// local spin: only this thread's cache line is invalidated by
		// the eventual Release, never the global tail word.
		countWaitIteration(bundle)
	}
	assorted.MemoryFenceAcquire()
	countAcquisition(bundle)
	return idx
}

// InitialLock takes the lock without any atomic RMW, valid only when
// the caller can prove no other thread contends for it (e.g. during
// single-threaded storage construction). It still allocates and
// returns a block index so Release is symmetric regardless of which
// acquire path was used.
func InitialLock(lock *Lock, selfThreadID int32, selfArena *BlockArena, bundle *telemetry.Bundle) BlockIndex {
	idx, block := selfArena.Allocate()
	block.locked.Store(true)
	lock.tail.Store(packTail(selfThreadID, idx))
	countAcquisition(bundle)
	return idx
}

func countAcquisition(bundle *telemetry.Bundle) {
	if bundle == nil {
		return
	}
	bundle.Counters.McsLockAcquisitions.Add(context.Background(), 1)
}

func countWaitIteration(bundle *telemetry.Bundle) {
	if bundle == nil {
		return
	}
	bundle.Counters.McsLockWaitIterations.Add(context.Background(), 1)
}

// Release unlocks a lock previously acquired (by Acquire or
// InitialLock) as blockIndex by selfThreadID.
func Release(lock *Lock, reg *Registry, selfThreadID int32, selfArena *BlockArena, blockIndex BlockIndex) {
	block := selfArena.At(blockIndex)

	if v := block.successor.Load(); v != 0 {
		succThread, succIdx := unpackSuccessor(v)
		succBlock := reg.resolve(succThread).At(succIdx)
		assorted.MemoryFenceRelease()
		succBlock.locked.Store(false)
		return
	}

	if lock.tail.CompareAndSwap(packTail(selfThreadID, blockIndex), 0) {
		return
	}

	// A successor is in the middle of linking up; spin until it's visible.
	for {
		if v := block.successor.Load(); v != 0 {
			succThread, succIdx := unpackSuccessor(v)
			succBlock := reg.resolve(succThread).At(succIdx)
			assorted.MemoryFenceRelease()
			succBlock.locked.Store(false)
			return
		}
	}
}

// AcquireBatch takes `len(locks)` locks in array order, returning each
// lock's own block index. BlockArena.Allocate hands out indices from a
// ring (a.next wraps modulo capacity), so a batch straddling the wrap
// boundary does not land on a contiguous run of indices; the caller
// must hold onto the exact index each lock was given rather than
// deriving it from the first one, which is why this returns a slice
// instead of just the head index.
func AcquireBatch(locks []*Lock, reg *Registry, selfThreadID int32, selfArena *BlockArena, bundle *telemetry.Bundle) ([]BlockIndex, error) {
	if len(locks) == 0 {
		return nil, errorstack.New(errorstack.CodeNotImplemented, "AcquireBatch called with zero locks")
	}
	indices := make([]BlockIndex, len(locks))
	for i, l := range locks {
		indices[i] = Acquire(l, reg, selfThreadID, selfArena, bundle)
	}
	return indices, nil
}

// ReleaseBatch releases a batch acquired by AcquireBatch, indices
// holding the per-lock block index AcquireBatch returned for each
// entry of locks. It walks both slices in reverse: MCS itself does not
// care about release order, but spec.md §4.6 requires the batch API to
// release in the reverse of the array order callers used to acquire,
// leaving deadlock-avoidance ordering entirely to the caller.
func ReleaseBatch(locks []*Lock, reg *Registry, selfThreadID int32, selfArena *BlockArena, indices []BlockIndex) {
	for i := len(locks) - 1; i >= 0; i-- {
		Release(locks[i], reg, selfThreadID, selfArena, indices[i])
	}
}
