package array

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/telemetry"
	"github.com/foedus-go/foedus/txlog"
)

func TestPartitionerSinglePageIsNotPartitionable(t *testing.T) {
	th, mgr := newTestThread(t, 64)
	defer mgr.Uninitialize()

	// array_size small enough that records_per_leaf covers it in one page.
	s := New(10, "tiny", 16, 8)
	require.Equal(t, 1, s.Levels())
	require.NoError(t, s.Create(th, 1))

	p := Build(s, mgr.GlobalVolatilePageResolver(), 4, nil, telemetry.NewNop())
	require.False(t, p.IsPartitionable())

	results := make([]storage.PartitionID, 3)
	p.PartitionBatch(storage.PartitionID(2), nil, []storage.BufferPosition{0, 0, 0}, results)
	for _, r := range results {
		require.Equal(t, storage.PartitionID(2), r)
	}
}

func TestPartitionerBalancesAllOnOneNode(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(11, "balance", 16, 1000) // 2 levels, root has 8 non-null children, all on node 0
	require.NoError(t, s.Create(th, 1))

	var warnings []string
	warn := func(format string, args ...interface{}) {
		warnings = append(warnings, format)
	}
	p := Build(s, mgr.GlobalVolatilePageResolver(), 4, warn, telemetry.NewNop())
	require.True(t, p.IsPartitionable())

	avg := storage.InteriorFanout / 4
	capLimit := int(float64(avg) * 1.2)
	counts := make(map[storage.PartitionID]int)
	for _, owner := range p.bucketOwners {
		counts[owner]++
	}
	total := 0
	for part := storage.PartitionID(0); part < 4; part++ {
		require.LessOrEqual(t, counts[part], capLimit)
		total += counts[part]
	}
	require.Equal(t, storage.InteriorFanout, total)
}

func TestPartitionerCloneIsIndependent(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(12, "clone", 16, 1000)
	require.NoError(t, s.Create(th, 1))

	p := Build(s, mgr.GlobalVolatilePageResolver(), 4, nil, telemetry.NewNop())
	clone := p.Clone()
	require.Equal(t, p.StorageID(), clone.StorageID())

	var buf bytes.Buffer
	clone.Describe(&buf)
	require.Contains(t, buf.String(), "array.Partitioner")
}

func TestPartitionerSortBatchStableByOffset(t *testing.T) {
	th, mgr := newTestThread(t, 256)
	defer mgr.Uninitialize()

	s := New(13, "sort", 16, 1000)
	require.NoError(t, s.Create(th, 1))
	p := Build(s, mgr.GlobalVolatilePageResolver(), 4, nil, telemetry.NewNop())

	logBuf := make(storage.LogBuffer, 256)
	positions := make([]storage.BufferPosition, 0, 3)
	offsets := []uint64{50, 10, 30}
	payload := make([]byte, 16)
	for i, off := range offsets {
		pos := storage.BufferPosition(i * 64)
		txlog.PopulateOverwriteLog(logBuf[pos:], s.ID(), off, payload, 0, 16)
		positions = append(positions, pos)
	}

	output := make([]storage.BufferPosition, len(positions))
	n := p.SortBatch(logBuf, positions, 0, output)
	require.Equal(t, len(positions), n)

	gotOffsets := make([]uint64, n)
	for i, pos := range output {
		gotOffsets[i] = txlog.OverwriteLogArrayOffset(logBuf[pos:])
	}
	require.Equal(t, []uint64{10, 30, 50}, gotOffsets)
}
