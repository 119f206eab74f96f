package array

import (
	"unsafe"

	"github.com/foedus-go/foedus/storage"
)

// leafRecord returns the index-th record of a leaf page, per the
// packed-records body layout spec.md §6 describes for leaf pages.
func leafRecord(page storage.Page, index uint64, meta Metadata) storage.Record {
	start := uint64(storage.HeaderSize) + index*meta.LeafRecordSize
	return storage.Record(page[start : start+meta.LeafRecordSize])
}

// interiorPointer returns the DualPagePointer living at slot within an
// interior page's body, backed directly by the page's own bytes so
// CAS-installing a child volatile pointer mutates the page in place
// the same way the original's get_interior_record(i)->pointer_ does.
//
// This reaches into the page's raw bytes with unsafe.Pointer rather
// than copying a DualPagePointer value out and back, because the
// volatile half must support the same CAS install/lose-race protocol
// thread.Thread.FollowPagePointer uses everywhere else: callers need a
// single *storage.DualPagePointer, not a page offset they have to
// re-resolve after every write.
func interiorPointer(page storage.Page, slot uint16) *storage.DualPagePointer {
	start := storage.HeaderSize + int(slot)*interiorRecordSize
	return (*storage.DualPagePointer)(unsafe.Pointer(&page[start]))
}
