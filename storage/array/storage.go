package array

import (
	"context"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/memory"
	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/thread"
	"github.com/foedus-go/foedus/txlog"
)

// Storage is one array storage instance: an immutable
// {id, name, payload_size, array_size} plus a dual root pointer
// (spec.md §3 "ArrayStorage (logical)"). The tree beneath the root is
// dense and fully built at Create time; there are no structural
// changes afterward (spec.md §4.10).
type Storage struct {
	id      storage.StorageID
	name    string
	meta    Metadata
	root    *storage.DualPagePointer
	created bool
}

// New describes (but does not build) an array storage of the given
// shape. Call Create to actually build its page tree.
func New(id storage.StorageID, name string, payloadSize uint16, arraySize uint64) *Storage {
	return &Storage{
		id:   id,
		name: name,
		meta: computeMetadata(payloadSize, arraySize),
		root: &storage.DualPagePointer{},
	}
}

// Open reconstructs a Storage handle for an array created by an
// earlier process, given its persisted root pointer. Not implemented:
// the original's initialize_once leaves a "// initialize root_page_"
// TODO for this path (spec.md §9 open question), and this engine
// carries no durable snapshot reader of its own to resolve it against.
func Open(storage.StorageID, string, uint16, uint64, *storage.DualPagePointer) (*Storage, error) {
	return nil, errorstack.Stack(errorstack.CodeNotImplemented)
}

// ID returns this storage's id.
func (s *Storage) ID() storage.StorageID { return s.id }

// Name returns this storage's name.
func (s *Storage) Name() string { return s.name }

// PayloadSize returns the configured per-record payload size.
func (s *Storage) PayloadSize() uint16 { return s.meta.PayloadSize }

// ArraySize returns the number of logical array slots.
func (s *Storage) ArraySize() uint64 { return s.meta.ArraySize }

// Levels returns the tree's height, leaf level counted as 1.
func (s *Storage) Levels() int { return s.meta.Levels }

// Metadata returns the derived page-tree shape, used by the partitioner.
func (s *Storage) Metadata() Metadata { return s.meta }

// Exists reports whether Create (or, eventually, Open) has succeeded.
func (s *Storage) Exists() bool { return s.created }

// RootPointer returns the storage's root dual pointer, read concurrently
// by any thread and written only by Create or by an installer CAS
// (spec.md §5 "Root dual pointer ... written ... always via CAS").
func (s *Storage) RootPointer() *storage.DualPagePointer { return s.root }

// Create builds this array's page tree left to right: the leftmost
// chain of one page per level first, then each subsequent leaf walking
// upward to fill or extend interior pages, per spec.md §4.10.
func (s *Storage) Create(th *thread.Thread, epoch uint64) error {
	_, span := th.Telemetry().Tracer.Start(context.Background(), "array.Storage.Create")
	defer span.End()

	if s.Exists() {
		return errorstack.New(errorstack.CodeStrAlreadyExists, "array: storage already exists")
	}

	core := th.CoreMemory()
	resolver := th.GlobalVolatilePageResolver()
	node := th.ID().Node

	currentPages := make([]storage.Page, s.meta.Levels)
	currentOffsets := make([]storage.Offset, s.meta.Levels)
	currentRecords := make([]uint16, s.meta.Levels)

	// First, create the leftmost page of every level, linking each
	// level's single page to the one below it.
	for level := 0; level < s.meta.Levels; level++ {
		offset, err := core.GrabFreePage()
		if err != nil {
			return errorstack.Wrap(err, "array.Create: grab leftmost page")
		}
		page := resolver.ResolveNodeOffset(node, offset)
		rangeEnd := s.meta.OffsetIntervals[level]
		if rangeEnd > s.meta.ArraySize {
			rangeEnd = s.meta.ArraySize
		}
		page.InitHeader(s.id, uint8(level), 0, rangeEnd, epoch)
		if level == 0 {
			page.StampChecksum()
		}

		currentPages[level] = page
		currentOffsets[level] = offset
		if level == 0 {
			currentRecords[level] = 0
		} else {
			currentRecords[level] = 1
			child := interiorPointer(page, 0)
			child.SnapshotPointer = storage.NullSnapshotPointer
			child.SetVolatile(storage.NewVolatilePointer(node, 0, currentOffsets[level-1]))
		}
	}

	// Then move on to the right, one leaf at a time, propagating the
	// new leaf's link up through however many interior levels are full.
	for leaf := uint64(1); leaf < s.meta.PagesPerLevel[0]; leaf++ {
		offset, err := core.GrabFreePage()
		if err != nil {
			return errorstack.Wrap(err, "array.Create: grab leaf page")
		}
		page := resolver.ResolveNodeOffset(node, offset)
		rangeBegin := currentPages[0].RangeEnd()
		rangeEnd := rangeBegin + s.meta.OffsetIntervals[0]
		if rangeEnd > s.meta.ArraySize {
			rangeEnd = s.meta.ArraySize
		}
		page.InitHeader(s.id, 0, rangeBegin, rangeEnd, epoch)
		page.StampChecksum()
		currentPages[0] = page
		currentOffsets[0] = offset

		for level := 1; level < s.meta.Levels; level++ {
			if currentRecords[level] == storage.InteriorFanout {
				interiorOffset, err := core.GrabFreePage()
				if err != nil {
					return errorstack.Wrap(err, "array.Create: grab interior page")
				}
				interiorPage := resolver.ResolveNodeOffset(node, interiorOffset)
				interiorBegin := currentPages[level].RangeEnd()
				interiorEnd := interiorBegin + s.meta.OffsetIntervals[level]
				if interiorEnd > s.meta.ArraySize {
					interiorEnd = s.meta.ArraySize
				}
				interiorPage.InitHeader(s.id, uint8(level), interiorBegin, interiorEnd, epoch)

				child := interiorPointer(interiorPage, 0)
				child.SnapshotPointer = storage.NullSnapshotPointer
				child.SetVolatile(storage.NewVolatilePointer(node, 0, currentOffsets[level-1]))

				currentPages[level] = interiorPage
				currentOffsets[level] = interiorOffset
				currentRecords[level] = 1
				// This new interior page still needs linking into its own
				// parent, so fall through to the next level up.
			} else {
				child := interiorPointer(currentPages[level], currentRecords[level])
				child.SnapshotPointer = storage.NullSnapshotPointer
				child.SetVolatile(storage.NewVolatilePointer(node, 0, currentOffsets[level-1]))
				currentRecords[level]++
				break
			}
		}
	}

	s.root.SnapshotPointer = storage.NullSnapshotPointer
	s.root.SetVolatile(storage.NewVolatilePointer(node, 0, currentOffsets[s.meta.Levels-1]))
	s.created = true
	return nil
}

// Lookup walks from the root to the leaf page covering offset,
// following only volatile pointers. If an interior child's volatile
// pointer is null, the caller would need to fetch it from the snapshot
// cache; that path is not implemented in the original source this
// spec was distilled from (spec.md §9 open question), so this reports
// CodeNotImplemented rather than guessing a resolution.
func (s *Storage) Lookup(th *thread.Thread, offset uint64) (storage.Page, error) {
	if offset >= s.meta.ArraySize {
		panic("array: Lookup offset out of range")
	}
	th.Telemetry().Counters.ArrayLookups.Add(context.Background(), 1)
	resolver := th.GlobalVolatilePageResolver()

	currentVP := s.root.Volatile()
	if currentVP.IsNull() {
		return nil, errorstack.Stack(errorstack.CodeNotImplemented)
	}
	currentPage := resolver.Resolve(currentVP)
	for !currentPage.IsLeaf() {
		diff := offset - currentPage.RangeBegin()
		slot := diff / s.meta.OffsetIntervals[currentPage.NodeHeight()-1]
		child := interiorPointer(currentPage, uint16(slot))
		vp := child.Volatile()
		if vp.IsNull() {
			return nil, errorstack.Stack(errorstack.CodeNotImplemented)
		}
		currentPage = resolver.Resolve(vp)
	}
	return currentPage, nil
}

// GetRecord reads payloadCount bytes starting at payloadOffset from
// the record at offset into buf, recording the observed version in
// th's read set (spec.md §4.10). Preconditions (caller-enforced, panic
// on violation): offset < ArraySize, payloadOffset+payloadCount <=
// PayloadSize.
func (s *Storage) GetRecord(th *thread.Thread, offset uint64, buf []byte, payloadOffset, payloadCount uint16) error {
	if offset >= s.meta.ArraySize {
		panic("array: GetRecord offset out of range")
	}
	if uint32(payloadOffset)+uint32(payloadCount) > uint32(s.meta.PayloadSize) {
		panic("array: GetRecord payload window exceeds payload_size")
	}
	page, err := s.Lookup(th, offset)
	if err != nil {
		return errorstack.Wrap(err, "array.GetRecord: lookup")
	}
	index := offset - page.RangeBegin()
	record := leafRecord(page, index, s.meta)
	if err := th.GetCurrentXct().AddToReadSet(record); err != nil {
		return errorstack.Wrap(err, "array.GetRecord: read set")
	}
	copy(buf, record.Payload()[payloadOffset:payloadOffset+payloadCount])
	return nil
}

// OverwriteRecord stages a write to the record at offset: it reserves
// an OverwriteLogType entry in th's redo log buffer, populates it, and
// adds (record, log entry) to the write set. The record's bytes are
// not mutated here; that happens at commit, out of this spec's scope
// (spec.md §4.10).
func (s *Storage) OverwriteRecord(th *thread.Thread, offset uint64, payload []byte, payloadOffset, payloadCount uint16) error {
	if offset >= s.meta.ArraySize {
		panic("array: OverwriteRecord offset out of range")
	}
	if uint32(payloadOffset)+uint32(payloadCount) > uint32(s.meta.PayloadSize) {
		panic("array: OverwriteRecord payload window exceeds payload_size")
	}
	page, err := s.Lookup(th, offset)
	if err != nil {
		return errorstack.Wrap(err, "array.OverwriteRecord: lookup")
	}
	index := offset - page.RangeBegin()
	record := leafRecord(page, index, s.meta)

	length := txlog.CalculateOverwriteLogLength(payloadCount)
	logEntry, err := th.LogBuffer().ReserveNewLog(length)
	if err != nil {
		return errorstack.Wrap(err, "array.OverwriteRecord: reserve log")
	}
	txlog.PopulateOverwriteLog(logEntry, s.id, offset, payload, payloadOffset, payloadCount)

	if err := th.GetCurrentXct().AddToWriteSet(record, logEntry); err != nil {
		return errorstack.Wrap(err, "array.OverwriteRecord: write set")
	}
	return nil
}

// Uninitialize releases every page reachable from the root via a
// post-order walk, returning them to core's chunk (spec.md §4.10: "the
// recursion is not performance-critical"). The caller must guarantee no
// live reader still references any page being freed (spec.md §5).
func (s *Storage) Uninitialize(resolver memory.GlobalVolatilePageResolver, core *memory.NumaCoreMemory) error {
	if !s.Exists() {
		return nil
	}
	rootVP := s.root.Volatile()
	if !rootVP.IsNull() {
		releaseRecursive(resolver, core, resolver.Resolve(rootVP), rootVP.Offset())
		s.root.SetVolatile(storage.NullVolatilePointer)
	}
	s.created = false
	return nil
}

func releaseRecursive(resolver memory.GlobalVolatilePageResolver, core *memory.NumaCoreMemory, page storage.Page, offset storage.Offset) {
	if !page.IsLeaf() {
		for slot := uint16(0); slot < storage.InteriorFanout; slot++ {
			child := interiorPointer(page, slot)
			vp := child.Volatile()
			if !vp.IsNull() {
				childPage := resolver.Resolve(vp)
				releaseRecursive(resolver, core, childPage, vp.Offset())
				child.SetVolatile(storage.NullVolatilePointer)
			}
		}
	}
	core.ReleaseFreePage(offset)
}
