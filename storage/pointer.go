package storage

import "sync/atomic"

// NodeID identifies the NUMA node that owns a page offset.
type NodeID uint16

// Offset is a 32-bit index into a per-node page pool. Offset 0 is
// reserved as null (spec.md §3).
type Offset uint32

// NullOffset is the reserved null page offset.
const NullOffset Offset = 0

// VolatilePointer is the triple (node_id, mod_count, offset) from
// spec.md §3, packed into a single 64-bit word so it can be read,
// written, and CAS'd atomically without a lock:
//
//	bits 63..48  node_id   (16 bits)
//	bits 47..32  mod_count (16 bits)
//	bits 31..0   offset    (32 bits)
//
// mod_count only needs to be wide enough to make an ABA-style pointer
// swing between two reads of the same offset astronomically unlikely;
// 16 bits costs nothing extra since node_id+offset already leave the
// high half of the word free.
type VolatilePointer uint64

// NullVolatilePointer is the zero value: node 0, mod_count 0, offset 0.
const NullVolatilePointer VolatilePointer = 0

// NewVolatilePointer packs the triple into a VolatilePointer.
func NewVolatilePointer(node NodeID, modCount uint16, offset Offset) VolatilePointer {
	return VolatilePointer(uint64(node)<<48 | uint64(modCount)<<32 | uint64(offset))
}

// Node extracts the NUMA node component.
func (p VolatilePointer) Node() NodeID { return NodeID(p >> 48) }

// ModCount extracts the pointer-swing counter component.
func (p VolatilePointer) ModCount() uint16 { return uint16(p >> 32) }

// Offset extracts the page-pool offset component.
func (p VolatilePointer) Offset() Offset { return Offset(p) }

// IsNull reports whether the offset component is null, which is the
// only part of the triple that determines nullness.
func (p VolatilePointer) IsNull() bool { return p.Offset() == NullOffset }

// Bumped returns a pointer to the given node/offset carrying p's
// mod_count plus one, for use right before a CAS-install that
// replaces the page this pointer refers to.
func (p VolatilePointer) Bumped(node NodeID, offset Offset) VolatilePointer {
	return NewVolatilePointer(node, p.ModCount()+1, offset)
}

// DualPagePointer is the pair (snapshot_pointer, volatile_pointer)
// describing one logical page (spec.md §3). At least one side is
// non-null for any live page; a null volatile pointer means "fetch
// from snapshot on demand".
//
// The volatile half is stored as an atomic word so install_a_volatile_page
// and follow_page_pointer can race safely: the loser of a concurrent
// install observes the winner's pointer via this same CAS.
type DualPagePointer struct {
	SnapshotPointer SnapshotPointer
	volatile        atomic.Uint64
}

// Volatile loads the current volatile pointer.
func (d *DualPagePointer) Volatile() VolatilePointer {
	return VolatilePointer(d.volatile.Load())
}

// SetVolatile stores a volatile pointer unconditionally. Used only
// when no concurrent installer can exist (single-threaded array
// build, or re-initializing a pointer that is being torn down).
func (d *DualPagePointer) SetVolatile(p VolatilePointer) {
	d.volatile.Store(uint64(p))
}

// CASVolatile attempts to swing the volatile pointer from old to new.
// Returns the pointer that ends up installed: new on success, or the
// winner's pointer on failure (the caller of install_a_volatile_page
// reclaims its page and returns this winner, per spec.md §4.8).
func (d *DualPagePointer) CASVolatile(old, new VolatilePointer) (installed VolatilePointer, won bool) {
	if d.volatile.CompareAndSwap(uint64(old), uint64(new)) {
		return new, true
	}
	return VolatilePointer(d.volatile.Load()), false
}

// IsNull reports whether both sides of the dual pointer are null.
func (d *DualPagePointer) IsNull() bool {
	return d.SnapshotPointer == NullSnapshotPointer && d.Volatile().IsNull()
}
