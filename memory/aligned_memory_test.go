package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateAndRelease(t *testing.T) {
	mem, err := Allocate(4096, 4096, AllocNormal, 0)
	require.NoError(t, err)
	require.False(t, mem.IsEmpty())
	require.Len(t, mem.Bytes(), 4096)

	require.NoError(t, mem.Release())
	require.True(t, mem.IsEmpty())
	require.Nil(t, mem.Bytes())

	// Releasing an already-empty region is a no-op (spec.md §4.9 idempotence).
	require.NoError(t, mem.Release())
}

func TestAllocateRejectsBadAlignment(t *testing.T) {
	_, err := Allocate(4096, 3, AllocNormal, 0)
	require.Error(t, err)
}

func TestAllocateRejectsHugepageAlignmentBelowPageSize(t *testing.T) {
	_, err := Allocate(1024, 1024, AllocHugepage, 0)
	require.Error(t, err)
}

func TestTakeInvalidatesSource(t *testing.T) {
	mem, err := Allocate(4096, 4096, AllocNormal, 0)
	require.NoError(t, err)

	moved := mem.Take()
	require.True(t, mem.IsEmpty())
	require.False(t, moved.IsEmpty())
	require.NoError(t, moved.Release())
}
