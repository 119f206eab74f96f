package memory

import (
	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/mcs"
	"github.com/foedus-go/foedus/storage"
)

// CoreMemoryOptions sizes the pieces NumaCoreMemory owns, mirroring
// the engine options spec.md §6 names (xct.max_read_set_size,
// xct.max_write_set_size) plus the chunk and MCS-block capacities this
// spec adds to make those options concrete and constructible.
type CoreMemoryOptions struct {
	ChunkCapacity     int
	ReadSetCapacity   int
	WriteSetCapacity  int
	McsBlockCapacity  int
	McsMaxThreadsHint int // not read by NumaCoreMemory; the engine sizes the shared mcs.Registry itself
}

// NumaCoreMemory is the per-core memory repository from spec.md §4.5:
// a batched free-page chunk backing the node's PagePool, sized
// read/write-set capacities for this core's Xct, and this core's MCS
// block arena. It is not safe for concurrent use by more than one
// thread; exactly one Thread owns each NumaCoreMemory.
type NumaCoreMemory struct {
	node     storage.NodeID
	ordinal  int
	pool     *PagePool
	chunk    *OffsetChunk
	opts     CoreMemoryOptions
	mcsArena *mcs.BlockArena
	initDone bool
}

// NewNumaCoreMemory constructs (but does not yet grab any pages for)
// the core memory repository for one core of node, backed by pool.
func NewNumaCoreMemory(node storage.NodeID, ordinal int, pool *PagePool, opts CoreMemoryOptions) *NumaCoreMemory {
	return &NumaCoreMemory{
		node:     node,
		ordinal:  ordinal,
		pool:     pool,
		chunk:    NewOffsetChunk(opts.ChunkCapacity),
		opts:     opts,
		mcsArena: mcs.NewBlockArena(opts.McsBlockCapacity),
	}
}

// Node returns the NUMA node this core memory belongs to.
func (m *NumaCoreMemory) Node() storage.NodeID { return m.node }

// ReadSetCapacity returns the configured read-set arena size for this core's Xct.
func (m *NumaCoreMemory) ReadSetCapacity() int { return m.opts.ReadSetCapacity }

// WriteSetCapacity returns the configured write-set arena size for this core's Xct.
func (m *NumaCoreMemory) WriteSetCapacity() int { return m.opts.WriteSetCapacity }

// McsBlockArena returns this core's MCS block arena.
func (m *NumaCoreMemory) McsBlockArena() *mcs.BlockArena { return m.mcsArena }

// Initialize grabs pages until the chunk is 50% full (spec.md §4.5).
// Idempotent per spec.md §4.9.
func (m *NumaCoreMemory) Initialize() error {
	if m.initDone {
		return nil
	}
	target := uint32(m.chunk.Capacity() / 2)
	if target > 0 {
		if err := m.pool.Grab(target, m.chunk); err != nil {
			return errorstack.Wrap(err, "NumaCoreMemory.Initialize: initial chunk fill")
		}
	}
	m.initDone = true
	return nil
}

// IsInitialized reports whether Initialize has completed.
func (m *NumaCoreMemory) IsInitialized() bool { return m.initDone }

// Uninitialize releases the entire chunk back to the pool (spec.md
// §4.5, §5 "pages grabbed by a thread must be released before the
// thread uninitializes"). Idempotent.
func (m *NumaCoreMemory) Uninitialize() error {
	if !m.initDone {
		return nil
	}
	m.pool.Release(uint32(m.chunk.Size()), m.chunk)
	m.initDone = false
	return nil
}

// GrabFreePage pops one offset from the chunk, refilling from the pool
// with half the chunk's capacity when the chunk runs dry (spec.md §4.5).
func (m *NumaCoreMemory) GrabFreePage() (storage.Offset, error) {
	if m.chunk.Empty() {
		refill := uint32(m.chunk.Capacity() / 2)
		if refill == 0 {
			refill = 1
		}
		if err := m.pool.Grab(refill, m.chunk); err != nil {
			return storage.NullOffset, errorstack.Wrap(err, "NumaCoreMemory.GrabFreePage: chunk refill")
		}
	}
	if m.chunk.Empty() {
		return storage.NullOffset, errorstack.New(errorstack.CodeOutOfPages, "core page chunk empty after refill attempt")
	}
	return m.chunk.Pop(), nil
}

// ReleaseFreePage pushes offset back to the chunk, flushing half the
// chunk's capacity to the pool when the chunk is full (spec.md §4.5).
func (m *NumaCoreMemory) ReleaseFreePage(offset storage.Offset) {
	if m.chunk.Full() {
		flush := uint32(m.chunk.Capacity() / 2)
		if flush == 0 {
			flush = 1
		}
		m.pool.Release(flush, m.chunk)
	}
	m.chunk.Push(offset)
}
