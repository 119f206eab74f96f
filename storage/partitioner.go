package storage

import "io"

// PartitionID identifies one output partition of a Partitioner. It is
// also, not coincidentally, a NodeID: partitioning assigns buckets to
// NUMA nodes (spec.md §4.11).
type PartitionID uint16

// LogBuffer is the read-only view over a run of serialized log entries
// that a Partitioner slices offsets and storage ids out of. This spec
// does not implement the snapshot/log-sort machinery that produces
// these buffers (out of scope, §1); partitioner tests construct one
// directly.
type LogBuffer []byte

// BufferPosition is a byte offset into a LogBuffer identifying the
// start of one log entry.
type BufferPosition uint64

// Epoch is the coarse logical commit-boundary timestamp from spec.md's
// glossary. It is managed externally; this package only compares and
// stores it.
type Epoch uint64

// Partitioner is the capability set spec.md §9 calls for:
// "Polymorphism over storage types ... express as a capability set
// (describe, is_partitionable, partition_batch, sort_batch, clone)
// realized by a tagged variant over the known storage kinds." In Go
// this is simply an interface; each storage kind (today, only array)
// provides its own implementation.
type Partitioner interface {
	// StorageID returns the storage this partitioner was built for.
	StorageID() StorageID
	// IsPartitionable reports whether this storage has more than one
	// page and can therefore be meaningfully partitioned.
	IsPartitionable() bool
	// PartitionBatch assigns each of the logs named by logPositions to
	// an output partition, writing results[i] for logPositions[i].
	PartitionBatch(localPartition PartitionID, logBuffer LogBuffer, logPositions []BufferPosition, results []PartitionID)
	// SortBatch stably sorts the referenced log entries by the
	// storage's natural key order and writes the permuted positions to
	// output. Returns the number of positions written.
	SortBatch(logBuffer LogBuffer, logPositions []BufferPosition, baseEpoch Epoch, output []BufferPosition) int
	// Clone returns an independent copy of this partitioner.
	Clone() Partitioner
	// Describe writes a human-readable summary of the partitioner's
	// current assignment, for diagnostics.
	Describe(w io.Writer)
}

// VolatilePageInitializer initializes a freshly grabbed page in place
// of reading it from a snapshot, used by Thread.FollowPagePointer when
// both sides of a dual pointer are null (spec.md §4.8).
type VolatilePageInitializer interface {
	InitializeVolatilePage(page Page, offset Offset) error
}

// VolatilePageInitializerFunc adapts a plain function to
// VolatilePageInitializer.
type VolatilePageInitializerFunc func(page Page, offset Offset) error

// InitializeVolatilePage implements VolatilePageInitializer.
func (f VolatilePageInitializerFunc) InitializeVolatilePage(page Page, offset Offset) error {
	return f(page, offset)
}
