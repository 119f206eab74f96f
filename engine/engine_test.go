package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foedus-go/foedus/snapshotcache"
)

func testOptions() Options {
	o := EmitDefaults()
	o.MemoryPagePoolSizePerNode = 4 << 20
	o.MemoryPagesForFreePool = 16
	o.ThreadGroupCount = 1
	o.ThreadCountPerGroup = 2
	return o
}

func TestValidateRejectsZeroFields(t *testing.T) {
	o := EmitDefaults()
	o.ThreadCountPerGroup = 0
	require.Error(t, o.Validate())
}

func TestEmitDefaultsValidates(t *testing.T) {
	require.NoError(t, EmitDefaults().Validate())
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	var bad Options
	_, err := New(bad, snapshotcache.NullSnapshotPageReader{})
	require.Error(t, err)
}

func TestEngineInitializeAndUninitializeRoundTrip(t *testing.T) {
	e, err := New(testOptions(), snapshotcache.NullSnapshotPageReader{})
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.Len(t, e.ThreadGroup().Threads(), 2)
	require.NoError(t, e.Uninitialize())
}

func TestEngineInitializeIsIdempotent(t *testing.T) {
	e, err := New(testOptions(), snapshotcache.NullSnapshotPageReader{})
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Uninitialize())
}

func TestEngineCreateArrayRunsOnOwningThread(t *testing.T) {
	e, err := New(testOptions(), snapshotcache.NullSnapshotPageReader{})
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Uninitialize()

	require.NotNil(t, e.ThreadGroup().ByGlobalOrdinal(0))

	s, err := e.CreateArray(0, "widgets", 16, 500, 1)
	require.NoError(t, err)
	require.Equal(t, "widgets", s.Name())

	got, ok := e.StorageManager().Get("widgets")
	require.True(t, ok)
	require.Same(t, s, got)

	_, err = e.CreateArray(0, "widgets", 16, 500, 1)
	require.Error(t, err)
}
