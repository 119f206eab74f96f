package xct

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
)

func newTestRecord(payloadSize int) storage.Record {
	return storage.Record(make([]byte, storage.RecordOverhead+payloadSize))
}

func TestReadSetOverflow(t *testing.T) {
	x := New(2, 2)
	x.Begin(Serializable)

	require.NoError(t, x.AddToReadSet(newTestRecord(8)))
	require.NoError(t, x.AddToReadSet(newTestRecord(8)))
	err := x.AddToReadSet(newTestRecord(8))
	require.Error(t, err)
	require.Equal(t, errorstack.CodeReadSetOverflow, errorstack.CodeOf(err))
}

func TestWriteSetOverflow(t *testing.T) {
	x := New(2, 1)
	x.Begin(Serializable)

	require.NoError(t, x.AddToWriteSet(newTestRecord(8), []byte("log")))
	err := x.AddToWriteSet(newTestRecord(8), []byte("log"))
	require.Error(t, err)
	require.Equal(t, errorstack.CodeWriteSetOverflow, errorstack.CodeOf(err))
}

func TestBeginResetsSetsFromPriorTransaction(t *testing.T) {
	x := New(4, 4)
	x.Begin(Serializable)
	require.NoError(t, x.AddToReadSet(newTestRecord(8)))
	x.End()

	x.Begin(SnapshotIsolation)
	require.Empty(t, x.ReadSet())
	require.False(t, x.TracksPointerSets())
}

func TestSerializableTracksPointerSets(t *testing.T) {
	x := New(4, 4)
	x.Begin(Serializable)
	require.True(t, x.TracksPointerSets())
	require.True(t, x.IsRunning())
	x.End()
	require.False(t, x.IsRunning())
}
