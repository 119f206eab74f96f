package memory

import (
	"context"
	"sync"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/telemetry"
)

// PagePool is a single NUMA node's pool of fixed-size pages (spec.md
// §4.3). The first PagesForFreePool pages of the backing region are
// reserved for the pool's own free-queue bookkeeping, so every offset
// a caller can legitimately grab satisfies
// PagesForFreePool <= offset < TotalPages; offset 0 is never handed
// out (it is the reserved null offset).
type PagePool struct {
	node    storage.NodeID
	region  AlignedMemory
	total   uint64
	forFree uint64

	lock     sync.Mutex
	freePool []storage.Offset // circular queue, length == capacity
	head     uint64
	count    uint64

	telemetry *telemetry.Bundle
}

// NewPagePool carves a PagePool for node out of region, which must
// already be sized for totalPages pages. pagesForFreePool of those
// pages are reserved for the free queue's own storage and are never
// themselves grabbable (they hold no page data, only bookkeeping).
// bundle records grabs, releases, and exhaustion (SPEC_FULL.md §4.14).
func NewPagePool(node storage.NodeID, region AlignedMemory, totalPages, pagesForFreePool uint64, bundle *telemetry.Bundle) *PagePool {
	capacity := totalPages - pagesForFreePool
	pool := &PagePool{
		node:      node,
		region:    region,
		total:     totalPages,
		forFree:   pagesForFreePool,
		freePool:  make([]storage.Offset, capacity),
		telemetry: bundle,
	}
	for i := uint64(0); i < capacity; i++ {
		pool.freePool[i] = storage.Offset(pagesForFreePool + i)
	}
	pool.count = capacity
	return pool
}

// Node returns the NUMA node this pool belongs to.
func (p *PagePool) Node() storage.NodeID { return p.node }

// Resolver returns a LocalPageResolver bound to this pool's base
// address (spec.md §4.3 "resolver()").
func (p *PagePool) Resolver() LocalPageResolver {
	return LocalPageResolver{base: p.region.Bytes()}
}

// FreeCount returns the number of pages currently in the free queue.
// Exposed for tests asserting the round-trip invariant (spec.md §8
// scenario 3).
func (p *PagePool) FreeCount() uint64 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.count
}

// Capacity returns the total number of grabbable pages this pool manages.
func (p *PagePool) Capacity() uint64 {
	return p.total - p.forFree
}

// Grab fills chunk up to min(chunk.Capacity(), chunk.Size()+desired)
// by popping offsets from the head of the free queue (spec.md §4.3).
// Fails with CodeNoFreePages only when the pool could not supply even
// one page; a partial fill is otherwise treated as success.
func (p *PagePool) Grab(desired uint32, chunk *OffsetChunk) error {
	room := chunk.Capacity() - chunk.Size()
	if room <= 0 {
		return nil
	}
	want := int(desired)
	if want > room {
		want = room
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if p.count == 0 {
		p.telemetry.Counters.PagePoolExhaustions.Add(context.Background(), 1)
		return errorstack.New(errorstack.CodeNoFreePages, "page pool has no free pages")
	}
	if uint64(want) > p.count {
		want = int(p.count)
	}

	grabbed := make([]storage.Offset, want)
	capacity := uint64(len(p.freePool))
	for i := 0; i < want; i++ {
		grabbed[i] = p.freePool[p.head]
		p.head = (p.head + 1) % capacity
	}
	p.count -= uint64(want)
	chunk.PushN(grabbed)
	p.telemetry.Counters.PagePoolGrabs.Add(context.Background(), int64(want))
	return nil
}

// Release appends up to desired offsets from the top of chunk to the
// tail of the free queue (spec.md §4.3). A correctly-sized caller never
// overflows the queue, since total outstanding pages never exceeds
// capacity; an attempt to do so is a fatal invariant violation rather
// than a recoverable error (spec.md §7).
func (p *PagePool) Release(desired uint32, chunk *OffsetChunk) {
	want := int(desired)
	if want > chunk.Size() {
		want = chunk.Size()
	}
	released := chunk.PopN(want)

	p.lock.Lock()
	defer p.lock.Unlock()

	capacity := uint64(len(p.freePool))
	if p.count+uint64(len(released)) > capacity {
		panic("memory: page pool free queue overflow, a page was released twice")
	}
	tail := (p.head + p.count) % capacity
	for _, offset := range released {
		p.freePool[tail] = offset
		tail = (tail + 1) % capacity
	}
	p.count += uint64(len(released))
	p.telemetry.Counters.PagePoolReleases.Add(context.Background(), int64(len(released)))
}
