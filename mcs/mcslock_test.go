package mcs

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseUncontended(t *testing.T) {
	arena := NewBlockArena(4)
	reg := NewRegistry(1)
	reg.Register(0, arena)

	var lock Lock
	idx := Acquire(&lock, reg, 0, arena, nil)
	require.NotEqual(t, NullBlock, idx)
	Release(&lock, reg, 0, arena, idx)
	require.Equal(t, uint64(0), lock.tail.Load())
}

func TestInitialLockThenRelease(t *testing.T) {
	arena := NewBlockArena(4)
	reg := NewRegistry(1)
	reg.Register(0, arena)

	var lock Lock
	idx := InitialLock(&lock, 0, arena, nil)
	Release(&lock, reg, 0, arena, idx)
	require.Equal(t, uint64(0), lock.tail.Load())
}

func TestAcquireQueuesBehindHolder(t *testing.T) {
	arena0 := NewBlockArena(4)
	arena1 := NewBlockArena(4)
	reg := NewRegistry(2)
	reg.Register(0, arena0)
	reg.Register(1, arena1)

	var lock Lock
	holderIdx := Acquire(&lock, reg, 0, arena0, nil)

	waiterDone := make(chan BlockIndex)
	go func() {
		waiterDone <- Acquire(&lock, reg, 1, arena1, nil)
	}()

	// Give the waiter a chance to link up as successor before releasing.
	var waiterLinked bool
	for i := 0; i < 100000 && !waiterLinked; i++ {
		waiterLinked = arena0.At(holderIdx).successor.Load() != 0
		runtime.Gosched()
	}
	require.True(t, waiterLinked, "waiter never linked as successor")

	Release(&lock, reg, 0, arena0, holderIdx)
	waiterIdx := <-waiterDone
	Release(&lock, reg, 1, arena1, waiterIdx)
	require.Equal(t, uint64(0), lock.tail.Load())
}

// BlockArena.Allocate hands out indices from a ring: arena.next is
// monotonic across the arena's whole life but the index is
// arena.next % capacity. A batch acquired right as that counter wraps
// must not assume its blocks land on a contiguous run of indices
// derived from the first one.
func TestAcquireBatchReleaseBatchAcrossRingWrap(t *testing.T) {
	const capacity = 4
	arena := NewBlockArena(capacity)
	reg := NewRegistry(1)
	reg.Register(0, arena)

	// Burn through allocations so the ring counter sits right at the
	// wrap boundary (next == capacity - 1) before the batch starts.
	for i := 0; i < capacity-1; i++ {
		var throwaway Lock
		idx := InitialLock(&throwaway, 0, arena, nil)
		Release(&throwaway, reg, 0, arena, idx)
	}

	locks := make([]*Lock, 3)
	for i := range locks {
		locks[i] = &Lock{}
	}
	indices, err := AcquireBatch(locks, reg, 0, arena, nil)
	require.NoError(t, err)
	require.Len(t, indices, 3)

	// The batch straddles the wrap: indices are not head, head+1, head+2.
	require.False(t, indices[1] == indices[0]+1 && indices[2] == indices[0]+2,
		"expected the batch to straddle the ring wrap, got contiguous indices %v", indices)

	seen := make(map[BlockIndex]bool)
	for _, idx := range indices {
		require.False(t, seen[idx], "duplicate block index %d in batch", idx)
		seen[idx] = true
	}

	ReleaseBatch(locks, reg, 0, arena, indices)
	for _, l := range locks {
		require.Equal(t, uint64(0), l.tail.Load())
	}
}

func TestAcquireBatchEmptyIsError(t *testing.T) {
	arena := NewBlockArena(4)
	reg := NewRegistry(1)
	reg.Register(0, arena)

	_, err := AcquireBatch(nil, reg, 0, arena, nil)
	require.Error(t, err)
}

func TestManyAcquireReleaseCyclesNeverCorruptRing(t *testing.T) {
	arena := NewBlockArena(3)
	reg := NewRegistry(1)
	reg.Register(0, arena)

	var wg sync.WaitGroup
	locks := make([]Lock, 50)
	for i := range locks {
		wg.Add(1)
		l := &locks[i]
		func() {
			defer wg.Done()
			idx := Acquire(l, reg, 0, arena, nil)
			Release(l, reg, 0, arena, idx)
		}()
	}
	wg.Wait()
}
