package array

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foedus-go/foedus/mcs"
	"github.com/foedus-go/foedus/memory"
	"github.com/foedus-go/foedus/snapshotcache"
	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/telemetry"
	"github.com/foedus-go/foedus/thread"
	"github.com/foedus-go/foedus/xct"
)

// newTestThread builds a single-node, single-core Manager and one
// Thread over it, sized generously enough for the small arrays these
// tests build.
func newTestThread(t *testing.T, totalPages uint64) (*thread.Thread, *memory.Manager) {
	t.Helper()
	topo := memory.NewSingleNodeTopology(4)
	mgr := memory.NewManager(topo, memory.ManagerOptions{
		PagePoolSizePerNodeBytes: totalPages * storage.PageSize,
		PagesForFreePool:         4,
		CoresPerNode:             1,
		Core: memory.CoreMemoryOptions{
			ChunkCapacity:    64,
			ReadSetCapacity:  64,
			WriteSetCapacity: 64,
			McsBlockCapacity: 16,
		},
	}, telemetry.NewNop())
	require.NoError(t, mgr.Initialize())

	cache, err := snapshotcache.NewCache(snapshotcache.DefaultOptions(1<<16), snapshotcache.NullSnapshotPageReader{})
	require.NoError(t, err)

	registry := mcs.NewRegistry(4)
	th := thread.New(thread.Options{
		ID:             thread.ID{Node: 0, Local: 0},
		GlobalOrdinal:  0,
		CoreMemory:     mgr.CoreMemory(0, 0),
		LogBufferBytes: 4096,
		Resolver:       mgr.GlobalVolatilePageResolver(),
		McsRegistry:    registry,
		SnapshotCache:  cache,
		SnapshotReader: snapshotcache.NullSnapshotPageReader{},
	})
	require.NoError(t, th.Initialize())
	th.GetCurrentXct().Begin(xct.Serializable)
	return th, mgr
}

func TestCreateSmallArrayAndLookupBoundaries(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	// payload=16 => leaf record size 32, records_per_leaf = (4096-64)/32 = 126.
	s := New(1, "small", 16, 1000)
	require.Equal(t, uint64(126), s.Metadata().RecordsPerLeaf)
	require.NoError(t, s.Create(th, 1))
	require.True(t, s.Exists())

	for _, offset := range []uint64{0, 1, 125, 126, 999} {
		page, err := s.Lookup(th, offset)
		require.NoError(t, err, "offset %d", offset)
		require.True(t, page.IsLeaf())
		require.True(t, page.RangeContains(offset), "offset %d not in [%d,%d)", offset, page.RangeBegin(), page.RangeEnd())
	}
}

func TestGetAndOverwriteRecordRoundTrip(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(2, "rw", 16, 500)
	require.NoError(t, s.Create(th, 1))

	buf := make([]byte, 16)
	require.NoError(t, s.GetRecord(th, 42, buf, 0, 16))
	require.Equal(t, make([]byte, 16), buf) // freshly built pages are zeroed

	payload := []byte("0123456789abcdef")
	require.NoError(t, s.OverwriteRecord(th, 42, payload, 0, 16))

	require.Equal(t, 1, len(th.GetCurrentXct().WriteSet()))
	require.Equal(t, 1, len(th.GetCurrentXct().ReadSet()))
}

func TestGetRecordFailsReadSetOverflow(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(3, "overflow", 16, 1000)
	require.NoError(t, s.Create(th, 1))

	buf := make([]byte, 16)
	th.GetCurrentXct().Begin(xct.Serializable) // fresh, small xct for this test's purposes
	for i := 0; i < 64; i++ {
		require.NoError(t, s.GetRecord(th, uint64(i), buf, 0, 16))
	}
	err := s.GetRecord(th, 64, buf, 0, 16)
	require.Error(t, err)
}

func TestCreateTwiceFailsAlreadyExists(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(4, "dup", 16, 100)
	require.NoError(t, s.Create(th, 1))
	err := s.Create(th, 1)
	require.Error(t, err)
}

func TestUninitializeReleasesPages(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(5, "release", 16, 100)
	require.NoError(t, s.Create(th, 1))

	before := mgr.PagePool(0).FreeCount()
	require.NoError(t, s.Uninitialize(mgr.GlobalVolatilePageResolver(), mgr.AnyCoreMemory()))
	require.False(t, s.Exists())
	// Releasing pages flushes them back toward the pool (possibly
	// through the core's chunk), so free count never decreases.
	require.GreaterOrEqual(t, mgr.PagePool(0).FreeCount(), before)
}

func TestCreateStampsVerifiableLeafChecksums(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(7, "checksummed", 16, 200)
	require.NoError(t, s.Create(th, 1))

	page, err := s.Lookup(th, 0)
	require.NoError(t, err)
	require.True(t, page.VerifyChecksum())

	copy(page.Body(), []byte{0xff, 0xff, 0xff, 0xff})
	require.False(t, page.VerifyChecksum())
}

func TestArrayWithManyLevels(t *testing.T) {
	th, mgr := newTestThread(t, 4096)
	defer mgr.Uninitialize()

	// payload=8 => leaf record size 24, records_per_leaf = (4096-64)/24 = 168.
	// array_size chosen so the tree needs 3 levels: more than
	// INTERIOR_FANOUT leaf pages but not so many it needs a 4th.
	arraySize := uint64(168 * storage.InteriorFanout * 3)
	s := New(6, "tall", 8, arraySize)
	require.GreaterOrEqual(t, s.Levels(), 3)
	require.NoError(t, s.Create(th, 1))

	for _, offset := range []uint64{0, arraySize / 2, arraySize - 1} {
		page, err := s.Lookup(th, offset)
		require.NoError(t, err)
		require.True(t, page.RangeContains(offset))
	}
}
