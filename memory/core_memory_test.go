package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foedus-go/foedus/storage"
)

func TestCoreMemoryInitializeGrabsHalfChunk(t *testing.T) {
	pool := newTestPool(t, 256, 8)
	core := NewNumaCoreMemory(0, 0, pool, CoreMemoryOptions{
		ChunkCapacity:    100,
		ReadSetCapacity:  16,
		WriteSetCapacity: 16,
		McsBlockCapacity: 8,
	})
	require.NoError(t, core.Initialize())
	require.Equal(t, 50, core.chunk.Size())
	require.Equal(t, uint64(248-50), pool.FreeCount())

	require.NoError(t, core.Uninitialize())
	require.Equal(t, 0, core.chunk.Size())
	require.Equal(t, uint64(248), pool.FreeCount())
}

func TestCoreMemoryGrabAndReleaseFreePage(t *testing.T) {
	pool := newTestPool(t, 256, 8)
	core := NewNumaCoreMemory(0, 0, pool, CoreMemoryOptions{
		ChunkCapacity:    10,
		ReadSetCapacity:  4,
		WriteSetCapacity: 4,
		McsBlockCapacity: 4,
	})
	require.NoError(t, core.Initialize())

	seen := map[uint32]bool{}
	for i := 0; i < 20; i++ {
		offset, err := core.GrabFreePage()
		require.NoError(t, err)
		require.False(t, seen[uint32(offset)], "offset reused while still outstanding")
		seen[uint32(offset)] = true
	}
	for offset := range seen {
		core.ReleaseFreePage(storage.Offset(offset))
	}
	require.NoError(t, core.Uninitialize())
	require.Equal(t, uint64(248), pool.FreeCount())
}
