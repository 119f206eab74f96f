package array

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/foedus-go/foedus/assorted"
	"github.com/foedus-go/foedus/memory"
	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/telemetry"
	"github.com/foedus-go/foedus/txlog"
)

// Partitioner assigns each of an array's INTERIOR_FANOUT root-level
// buckets to a NUMA-node partition, then uses that assignment plus a
// constant-division helper to route log entries to partitions in the
// hot path (spec.md §4.11). It implements storage.Partitioner.
type Partitioner struct {
	storageID     storage.StorageID
	partitionable bool
	bucketSize    uint64
	div           assorted.ConstDiv
	bucketOwners  [storage.InteriorFanout]storage.PartitionID
}

// Warner receives a message when Build detects a partition that ended
// up owning zero buckets (spec.md §4.11 "A warning is emitted").
type Warner func(format string, args ...interface{})

// Build constructs a Partitioner for s by reading its root page's
// current child ownership and balancing the result across
// numPartitions partitions (spec.md §4.11). warn may be nil. bundle
// records each rebalance this call performs (SPEC_FULL.md §4.14).
func Build(s *Storage, resolver memory.GlobalVolatilePageResolver, numPartitions int, warn Warner, bundle *telemetry.Bundle) *Partitioner {
	p := &Partitioner{storageID: s.ID()}

	if s.Levels() == 1 {
		// Single-page array: nothing to partition (spec.md §4.11 "For a
		// single-page array, is_partitionable = false").
		return p
	}
	p.partitionable = true
	p.bucketSize = s.Metadata().OffsetIntervals[s.Levels()-2]
	p.div = assorted.NewConstDiv(p.bucketSize)

	rootVP := s.RootPointer().Volatile()
	if rootVP.IsNull() {
		return p
	}
	rootPage := resolver.Resolve(rootVP)

	counts := make(map[storage.PartitionID]int, numPartitions)
	for slot := uint16(0); slot < storage.InteriorFanout; slot++ {
		owner := storage.PartitionID(interiorPointer(rootPage, slot).Volatile().Node())
		p.bucketOwners[slot] = owner
		counts[owner]++
	}

	p.rebalance(numPartitions, counts, warn, bundle)
	return p
}

// rebalance enforces the ±20% imbalance cap from spec.md §4.11: any
// partition holding more than cap = floor(avg*1.2) buckets surrenders
// its highest-indexed buckets first, deterministically, to whichever
// partition currently holds the fewest (ties broken by lowest id).
func (p *Partitioner) rebalance(numPartitions int, counts map[storage.PartitionID]int, warn Warner, bundle *telemetry.Bundle) {
	if numPartitions <= 0 {
		return
	}
	bundle.Counters.PartitionerRebalances.Add(context.Background(), 1)
	avg := storage.InteriorFanout / numPartitions
	capLimit := int(float64(avg) * 1.2)

	partitions := make([]storage.PartitionID, numPartitions)
	for i := range partitions {
		partitions[i] = storage.PartitionID(i)
	}
	fewest := func() storage.PartitionID {
		best := partitions[0]
		for _, cand := range partitions[1:] {
			if counts[cand] < counts[best] {
				best = cand
			}
		}
		return best
	}

	for _, owner := range partitions {
		for counts[owner] > capLimit {
			idx := -1
			for slot := storage.InteriorFanout - 1; slot >= 0; slot-- {
				if p.bucketOwners[slot] == owner {
					idx = slot
					break
				}
			}
			if idx < 0 {
				break
			}
			target := fewest()
			if target == owner {
				break
			}
			p.bucketOwners[idx] = target
			counts[owner]--
			counts[target]++
		}
	}

	if warn == nil {
		return
	}
	for _, part := range partitions {
		if counts[part] == 0 {
			warn("array.Partitioner: partition %d received zero buckets for storage %d", part, p.storageID)
		}
	}
}

// StorageID implements storage.Partitioner.
func (p *Partitioner) StorageID() storage.StorageID { return p.storageID }

// IsPartitionable implements storage.Partitioner.
func (p *Partitioner) IsPartitionable() bool { return p.partitionable }

// PartitionBatch implements storage.Partitioner.
func (p *Partitioner) PartitionBatch(localPartition storage.PartitionID, logBuffer storage.LogBuffer, logPositions []storage.BufferPosition, results []storage.PartitionID) {
	if !p.partitionable {
		for i := range logPositions {
			results[i] = localPartition
		}
		return
	}
	for i, pos := range logPositions {
		record := logBuffer[pos:]
		offset := txlog.OverwriteLogArrayOffset(record)
		bucket := p.div.Div(offset)
		results[i] = p.bucketOwners[bucket]
	}
}

// SortBatch implements storage.Partitioner: a stable sort by
// (storage_id, offset), with original position as the final tiebreak
// standing in for the original's in-epoch ordinal (this engine's
// OverwriteLogType carries no per-entry epoch, per txlog's design).
// written_count always equals len(logPositions); duplicates are not
// collapsed at this layer (spec.md §4.11).
func (p *Partitioner) SortBatch(logBuffer storage.LogBuffer, logPositions []storage.BufferPosition, baseEpoch storage.Epoch, output []storage.BufferPosition) int {
	type entry struct {
		pos       storage.BufferPosition
		storageID storage.StorageID
		offset    uint64
		ordinal   int
	}
	entries := make([]entry, len(logPositions))
	for i, pos := range logPositions {
		record := logBuffer[pos:]
		entries[i] = entry{
			pos:       pos,
			storageID: txlog.OverwriteLogStorageID(record),
			offset:    txlog.OverwriteLogArrayOffset(record),
			ordinal:   i,
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].storageID != entries[b].storageID {
			return entries[a].storageID < entries[b].storageID
		}
		if entries[a].offset != entries[b].offset {
			return entries[a].offset < entries[b].offset
		}
		return entries[a].ordinal < entries[b].ordinal
	})
	for i, e := range entries {
		output[i] = e.pos
	}
	return len(entries)
}

// Clone implements storage.Partitioner as a plain value copy, matching
// the original ArrayPartitioner's byte-wise copy constructor (spec.md
// §9 open question: "whether deep state is ever added later is an
// open invariant" — there is none to deep-copy today).
func (p *Partitioner) Clone() storage.Partitioner {
	clone := *p
	return &clone
}

// Describe implements storage.Partitioner.
func (p *Partitioner) Describe(w io.Writer) {
	fmt.Fprintf(w, "array.Partitioner{storage=%d partitionable=%v bucket_size=%d}\n",
		p.storageID, p.partitionable, p.bucketSize)
}
