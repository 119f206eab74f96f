// Package array implements the dense array storage from spec.md
// §4.10-§4.11: a multi-level tree of fixed-fanout pages built once,
// left to right, at creation time, plus the partitioner that assigns
// its root's children to NUMA-node partitions for downstream batch
// processing. Grounded on
// _examples/original_source/foedus-core/src/foedus/storage/array/array_storage_pimpl.cpp
// and .../array_partitioner.hpp.
package array

import (
	"github.com/foedus-go/foedus/assorted"
	"github.com/foedus-go/foedus/storage"
)

// interiorRecordSize is the on-page size of one interior record: a
// DualPagePointer (SnapshotPointer uint64 + atomic volatile uint64),
// 16 bytes, no other metadata (range is derived positionally from the
// page's own header plus the slot index, per spec.md §6).
const interiorRecordSize = 16

// Metadata is the immutable shape of one array storage, computed once
// at construction from payloadSize and arraySize (spec.md §4.10
// "Compute-at-create").
type Metadata struct {
	PayloadSize     uint16
	ArraySize       uint64
	RecordsPerLeaf  uint64
	LeafRecordSize  uint64
	PagesPerLevel   []uint64 // index 0 = leaf level
	OffsetIntervals []uint64 // index 0 = leaf level
	Levels          int
}

// computeMetadata mirrors calculate_required_pages + the
// offset_intervals_ loop from the constructor of ArrayStoragePimpl.
func computeMetadata(payloadSize uint16, arraySize uint64) Metadata {
	payloadAligned := assorted.Align8(uint64(payloadSize))
	recordsPerLeaf := uint64(storage.DataSize) / (payloadAligned + storage.RecordOverhead)
	if recordsPerLeaf == 0 {
		panic("array: payload_size too large to fit even one record per leaf page")
	}

	leafPages := assorted.IntDivCeil(arraySize, recordsPerLeaf)
	if leafPages == 0 {
		leafPages = 1
	}
	pagesPerLevel := []uint64{leafPages}
	for pagesPerLevel[len(pagesPerLevel)-1] != 1 {
		next := assorted.IntDivCeil(pagesPerLevel[len(pagesPerLevel)-1], storage.InteriorFanout)
		pagesPerLevel = append(pagesPerLevel, next)
	}

	offsetIntervals := []uint64{recordsPerLeaf}
	for level := 1; level < len(pagesPerLevel); level++ {
		offsetIntervals = append(offsetIntervals, offsetIntervals[level-1]*storage.InteriorFanout)
	}

	return Metadata{
		PayloadSize:     payloadSize,
		ArraySize:       arraySize,
		RecordsPerLeaf:  recordsPerLeaf,
		LeafRecordSize:  payloadAligned + storage.RecordOverhead,
		PagesPerLevel:   pagesPerLevel,
		OffsetIntervals: offsetIntervals,
		Levels:          len(pagesPerLevel),
	}
}
