package memory

import "github.com/foedus-go/foedus/storage"

// OffsetChunk is a small bounded stack of page offsets owned by one
// core (spec.md §3 "PagePoolOffsetChunk"). It is the unit of transfer
// between a core's NumaCoreMemory and its PagePool: grab/release move
// whole chunks' worth of offsets under one lock acquisition rather than
// one lock per page.
type OffsetChunk struct {
	offsets []storage.Offset
}

// NewOffsetChunk creates an empty chunk with room for capacity offsets.
func NewOffsetChunk(capacity int) *OffsetChunk {
	return &OffsetChunk{offsets: make([]storage.Offset, 0, capacity)}
}

// Capacity returns the maximum number of offsets this chunk can hold.
func (c *OffsetChunk) Capacity() int { return cap(c.offsets) }

// Size returns the number of offsets currently held.
func (c *OffsetChunk) Size() int { return len(c.offsets) }

// Empty reports whether the chunk holds no offsets.
func (c *OffsetChunk) Empty() bool { return len(c.offsets) == 0 }

// Full reports whether the chunk is at capacity.
func (c *OffsetChunk) Full() bool { return len(c.offsets) == cap(c.offsets) }

// Push appends one offset. The caller must ensure the chunk is not full.
func (c *OffsetChunk) Push(offset storage.Offset) {
	c.offsets = append(c.offsets, offset)
}

// Pop removes and returns the most recently pushed offset. The caller
// must ensure the chunk is not empty.
func (c *OffsetChunk) Pop() storage.Offset {
	n := len(c.offsets) - 1
	offset := c.offsets[n]
	c.offsets = c.offsets[:n]
	return offset
}

// PopN removes and returns up to n offsets from the top of the chunk,
// for bulk transfer into a PagePool.release() call.
func (c *OffsetChunk) PopN(n int) []storage.Offset {
	if n > len(c.offsets) {
		n = len(c.offsets)
	}
	start := len(c.offsets) - n
	popped := append([]storage.Offset(nil), c.offsets[start:]...)
	c.offsets = c.offsets[:start]
	return popped
}

// PushN appends offsets in order, for bulk transfer from a PagePool.grab() call.
func (c *OffsetChunk) PushN(offsets []storage.Offset) {
	c.offsets = append(c.offsets, offsets...)
}
