// Package storage defines the types shared by every storage
// implementation built on top of the page pool: the fixed page format,
// dual (volatile/snapshot) page pointers, the opaque record layout, and
// the capability-set interfaces (Partitioner, VolatilePageInitializer)
// that let the thread and array packages stay storage-agnostic.
package storage

// PageSize is the fixed size of every page in the engine, in bytes.
// spec.md §3 calls 4 KiB "typical"; this engine fixes it so page math
// in the resolver is a compile-time constant shift.
const PageSize = 4096

// RecordOverhead is the per-record header size (a version/TID word)
// that precedes every record's payload bytes (spec.md §3 "Record").
const RecordOverhead = 16

// DataSize is the portion of a page available for records or interior
// entries, after the fixed page header.
const DataSize = PageSize - HeaderSize

// HeaderSize is the size in bytes of the opaque page header described
// in spec.md §6: storage id, node height, array range, epoch.
const HeaderSize = 64

// InteriorFanout is the fixed number of child entries in one interior
// page (spec.md §3 "Interior fanout = INTERIOR_FANOUT (constant)").
// Derived the way the original does, kInteriorFanout =
// (kPageSize - kHeaderSize) / sizeof(DualPagePointer): each interior
// record is a 16-byte DualPagePointer (array.interiorRecordSize), so
// only DataSize/16 of them fit in a page's body. storage cannot import
// array (array already imports storage), so the 16 is repeated here
// rather than referenced.
const InteriorFanout = DataSize / 16

// StorageID identifies a storage instance within the engine.
type StorageID uint32

// SnapshotPointer is the opaque 64-bit identifier of a page in a
// durable snapshot. This core never interprets its bits; only the
// out-of-scope snapshot subsystem does.
type SnapshotPointer uint64

// NullSnapshotPointer means "no snapshot page".
const NullSnapshotPointer SnapshotPointer = 0
