package thread

import "github.com/foedus-go/foedus/mcs"

// McsAcquireLock unconditionally takes lock, queueing behind any
// current holder (spec.md §4.6, §4.8).
func (t *Thread) McsAcquireLock(lock *mcs.Lock) mcs.BlockIndex {
	return mcs.Acquire(lock, t.mcsRegistry, t.globalOrdinal, t.coreMemory.McsBlockArena(), t.telemetry)
}

// McsAcquireLockBatch takes every lock in locks, in array order,
// returning each lock's own block index (spec.md §4.6).
func (t *Thread) McsAcquireLockBatch(locks []*mcs.Lock) ([]mcs.BlockIndex, error) {
	return mcs.AcquireBatch(locks, t.mcsRegistry, t.globalOrdinal, t.coreMemory.McsBlockArena(), t.telemetry)
}

// McsInitialLock takes lock without any atomic RMW; valid only when
// the caller can prove no contender exists (spec.md §4.6).
func (t *Thread) McsInitialLock(lock *mcs.Lock) mcs.BlockIndex {
	return mcs.InitialLock(lock, t.globalOrdinal, t.coreMemory.McsBlockArena(), t.telemetry)
}

// McsReleaseLock releases a lock acquired by this thread as blockIndex.
func (t *Thread) McsReleaseLock(lock *mcs.Lock, blockIndex mcs.BlockIndex) {
	mcs.Release(lock, t.mcsRegistry, t.globalOrdinal, t.coreMemory.McsBlockArena(), blockIndex)
}

// McsReleaseLockBatch releases a batch acquired by McsAcquireLockBatch,
// walking locks in reverse order (spec.md §4.6).
func (t *Thread) McsReleaseLockBatch(locks []*mcs.Lock, indices []mcs.BlockIndex) {
	mcs.ReleaseBatch(locks, t.mcsRegistry, t.globalOrdinal, t.coreMemory.McsBlockArena(), indices)
}
