package txlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
)

func TestReserveNewLogAdvancesCursor(t *testing.T) {
	buf := NewBuffer(1024)
	s1, err := buf.ReserveNewLog(32)
	require.NoError(t, err)
	require.Len(t, s1, 32)
	require.Equal(t, uint64(32), buf.Cursor())

	s2, err := buf.ReserveNewLog(16)
	require.NoError(t, err)
	require.Len(t, s2, 16)
	require.Equal(t, uint64(48), buf.Cursor())
}

func TestReserveNewLogWrapsWithoutSplitting(t *testing.T) {
	buf := NewBuffer(64)
	_, err := buf.ReserveNewLog(48)
	require.NoError(t, err)
	// 16 bytes remain before the wrap point; a 32-byte record must pad
	// to the boundary and start over at 0 rather than straddle it.
	rec, err := buf.ReserveNewLog(32)
	require.NoError(t, err)
	require.Len(t, rec, 32)
	require.Equal(t, uint64(96), buf.Cursor())
}

func TestReserveNewLogFullFailsOversizedRecord(t *testing.T) {
	buf := NewBuffer(16)
	_, err := buf.ReserveNewLog(17)
	require.Error(t, err)
	require.Equal(t, errorstack.CodeLogBufferFull, errorstack.CodeOf(err))
}

// Scenario 5 of spec.md §8, log half: the overwrite log for a 32-byte
// payload is OverwriteLogType::calculate_log_length(32) == 56 bytes long
// and its fields read back as written.
func TestOverwriteLogRoundTrip(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(0x11 + i)
	}

	length := CalculateOverwriteLogLength(32)
	require.Equal(t, uint16(56), length) // align8(overwriteHeaderSize(18) + 32) == 56

	buf := NewBuffer(256)
	dest, err := buf.ReserveNewLog(length)
	require.NoError(t, err)
	PopulateOverwriteLog(dest, storage.StorageID(7), 42, payload, 0, 32)

	require.Equal(t, length, OverwriteLogLength(dest))
	require.Equal(t, storage.StorageID(7), OverwriteLogStorageID(dest))
	require.Equal(t, uint64(42), OverwriteLogArrayOffset(dest))
	require.Equal(t, payload, OverwriteLogPayload(dest))
}
