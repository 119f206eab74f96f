// Package txlog implements the per-thread redo log buffer and the
// array storage's overwrite log record format from spec.md §3
// ("Thread ... a ThreadLogBuffer") and §4.10 (OverwriteLogType). The
// durable write-ahead log, group commit, and recovery that consume
// this buffer are out of scope (spec.md §1); this package only
// reserves space for and formats the in-memory redo records that
// array.Storage.OverwriteRecord produces.
package txlog

import "github.com/foedus-go/foedus/errorstack"

// Buffer is one thread's private, contiguous redo log arena: a ring of
// bytes that ReserveNewLog carves fixed-length records out of in
// commit order. Mutated only by its owning thread (spec.md §5).
type Buffer struct {
	data   []byte
	cursor uint64 // next write position, monotonically increasing mod len(data)
}

// NewBuffer allocates a log buffer of the given byte capacity.
func NewBuffer(capacityBytes int) *Buffer {
	return &Buffer{data: make([]byte, capacityBytes)}
}

// Capacity returns the buffer's total byte capacity.
func (b *Buffer) Capacity() int { return len(b.data) }

// Cursor returns the buffer's current logical write position, for
// tests asserting reservations advance it by exactly length each time.
func (b *Buffer) Cursor() uint64 { return b.cursor }

// ReserveNewLog carves out length contiguous bytes at the current
// cursor and returns them for the caller to populate, advancing the
// cursor past them. A reservation never straddles the ring's wrap
// point: if length does not fit before the end of the backing array,
// the buffer wraps to offset 0 first, matching how real redo-log rings
// avoid splitting a single log record across the boundary. Fails with
// CodeLogBufferFull when length exceeds the buffer's total capacity
// (this in-memory slice does not implement the durable log's
// "consumer is catching up" backpressure; that belongs to the
// out-of-scope group-commit/flush subsystem).
func (b *Buffer) ReserveNewLog(length uint16) ([]byte, error) {
	n := int(length)
	if n > len(b.data) {
		return nil, errorstack.Newf(errorstack.CodeLogBufferFull, "log record of %d bytes exceeds buffer capacity %d", n, len(b.data))
	}
	pos := int(b.cursor % uint64(len(b.data)))
	if pos+n > len(b.data) {
		b.cursor += uint64(len(b.data) - pos) // pad to the wrap point
		pos = 0
	}
	slice := b.data[pos : pos+n]
	b.cursor += uint64(n)
	return slice, nil
}
