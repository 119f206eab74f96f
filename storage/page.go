package storage

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Page is one fixed-size raw page as it sits in a node's page pool,
// interpreted by the owning storage (spec.md §3). The header occupies
// the first HeaderSize bytes; the remaining DataSize bytes are body,
// meaning records for a leaf page or child entries for an interior
// page (spec.md §6).
type Page []byte

// NewPage allocates a zeroed page-sized buffer. Production pages live
// inside a PagePool's single contiguous memory region and are never
// allocated one at a time this way outside of tests; the memory
// package's page resolvers (LocalPageResolver,
// GlobalVolatilePageResolver) are the only things that turn a pool
// offset into a live Page.
func NewPage() Page {
	return make(Page, PageSize)
}

const (
	headerStorageIDOffset  = 0
	headerNodeHeightOffset = 4
	headerRangeBeginOffset = 8
	headerRangeEndOffset   = 16
	headerEpochOffset      = 24
	headerChecksumOffset   = 32
)

// InitHeader stamps the common page header fields. Storage-specific
// page types call this once when a page is first carved out of the
// pool, then lay out their body starting at HeaderSize.
func (p Page) InitHeader(storageID StorageID, nodeHeight uint8, rangeBegin, rangeEnd uint64, epoch uint64) {
	binary.LittleEndian.PutUint32(p[headerStorageIDOffset:], uint32(storageID))
	p[headerNodeHeightOffset] = nodeHeight
	binary.LittleEndian.PutUint64(p[headerRangeBeginOffset:], rangeBegin)
	binary.LittleEndian.PutUint64(p[headerRangeEndOffset:], rangeEnd)
	binary.LittleEndian.PutUint64(p[headerEpochOffset:], epoch)
}

// StorageID returns the owning storage's id.
func (p Page) StorageID() StorageID {
	return StorageID(binary.LittleEndian.Uint32(p[headerStorageIDOffset:]))
}

// NodeHeight returns the page's height in its tree (0 = leaf).
func (p Page) NodeHeight() uint8 { return p[headerNodeHeightOffset] }

// IsLeaf reports whether this page is a leaf (height 0).
func (p Page) IsLeaf() bool { return p.NodeHeight() == 0 }

// RangeBegin returns the inclusive lower bound of the logical key
// range (array offset, for array storages) this page covers.
func (p Page) RangeBegin() uint64 { return binary.LittleEndian.Uint64(p[headerRangeBeginOffset:]) }

// RangeEnd returns the exclusive upper bound of the logical key range
// this page covers.
func (p Page) RangeEnd() uint64 { return binary.LittleEndian.Uint64(p[headerRangeEndOffset:]) }

// SetRangeEnd updates the exclusive upper bound of the logical key
// range this page covers.
func (p Page) SetRangeEnd(end uint64) {
	binary.LittleEndian.PutUint64(p[headerRangeEndOffset:], end)
}

// RangeContains reports whether offset falls within [RangeBegin, RangeEnd).
func (p Page) RangeContains(offset uint64) bool {
	return offset >= p.RangeBegin() && offset < p.RangeEnd()
}

// Epoch returns the epoch this page was created or last structurally
// modified in (spec.md §3, "Initial epoch is the current global epoch").
func (p Page) Epoch() uint64 { return binary.LittleEndian.Uint64(p[headerEpochOffset:]) }

// Body returns the mutable body bytes following the header.
func (p Page) Body() []byte { return p[HeaderSize:] }

// StampChecksum computes xxhash64 over the page body and writes it
// into the header, paralleling the teacher's ErrChecksumMismatch
// integrity check. Callers stamp after a body mutation completes, not
// on every read, since a page's body can legitimately be written to
// concurrently by its owning thread mid-transaction.
func (p Page) StampChecksum() {
	sum := xxhash.Sum64(p.Body())
	binary.LittleEndian.PutUint64(p[headerChecksumOffset:], sum)
}

// Checksum returns the last stamped checksum value.
func (p Page) Checksum() uint64 {
	return binary.LittleEndian.Uint64(p[headerChecksumOffset:])
}

// VerifyChecksum reports whether the page body still hashes to its
// stamped checksum. Used by tests and by diagnostic tooling, not on
// the transactional hot path.
func (p Page) VerifyChecksum() bool {
	return xxhash.Sum64(p.Body()) == p.Checksum()
}
