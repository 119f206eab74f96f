// Package xct implements the per-thread transaction state from
// spec.md §3 "Xct": a bounded-capacity read set and write set used for
// validation and redo, plus the isolation level that governs whether
// storage operations (by way of thread.Thread.FollowPagePointer)
// bother tracking pointer installs at all.
package xct

import (
	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
)

// IsolationLevel is the transaction's isolation level. spec.md §1 lists
// "supporting isolation weaker than snapshot-or-serializable" as a
// non-goal, so these are the only two levels this engine recognizes.
type IsolationLevel int

const (
	// Serializable is the strictest level: read-set and write-set
	// validation at commit, and pointer-set tracking on every page
	// pointer follow (spec.md §4.8 "take_ptr_set_*" flags).
	Serializable IsolationLevel = iota
	// SnapshotIsolation skips pointer-set tracking entirely (spec.md
	// §4.8: "If the transaction's isolation level is weaker than
	// serializable, the take_ptr_set_* flags are ignored").
	SnapshotIsolation
)

// ReadSetEntry records one record this transaction has read, captured
// so the (out-of-scope) commit validator can detect whether the
// record changed since this transaction observed it.
type ReadSetEntry struct {
	Record          storage.Record
	ObservedVersion uint64
}

// WriteSetEntry records one record this transaction has overwritten,
// paired with the redo log entry that carries the new bytes. The
// record itself is mutated only at commit (out of scope here).
type WriteSetEntry struct {
	Record   storage.Record
	LogEntry []byte
}

// PointerSetEntry records one dual page pointer this transaction
// observed while following a page pointer without modifying it
// (spec.md §4.8's take_ptr_set_* flags), so the out-of-scope commit
// validator can detect a concurrent volatile-page install that this
// transaction should have seen.
type PointerSetEntry struct {
	Pointer  *storage.DualPagePointer
	Observed storage.VolatilePointer
}

// Xct is one thread's currently-running transaction. A Thread owns
// exactly one Xct and reuses it (Begin clears it) across transactions
// rather than allocating a new one each time, so the read/write-set
// backing arrays are sized once, by New, when the Thread is constructed.
type Xct struct {
	isolation IsolationLevel
	running   bool

	readSet    []ReadSetEntry
	writeSet   []WriteSetEntry
	pointerSet []PointerSetEntry
}

// New allocates an Xct with read/write-set arenas sized to the given
// capacities (spec.md §6 "xct.max_read_set_size", "xct.max_write_set_size").
func New(readSetCapacity, writeSetCapacity int) *Xct {
	return &Xct{
		readSet:  make([]ReadSetEntry, 0, readSetCapacity),
		writeSet: make([]WriteSetEntry, 0, writeSetCapacity),
	}
}

// Begin starts a new transaction at the given isolation level, clearing
// any state left over from a previous transaction this Xct ran.
func (x *Xct) Begin(isolation IsolationLevel) {
	x.isolation = isolation
	x.running = true
	x.readSet = x.readSet[:0]
	x.writeSet = x.writeSet[:0]
	x.pointerSet = x.pointerSet[:0]
}

// End marks the transaction as no longer running (commit or abort,
// decided by the out-of-scope commit machinery).
func (x *Xct) End() {
	x.running = false
}

// IsRunning reports whether a transaction is currently active on this Xct.
func (x *Xct) IsRunning() bool { return x.running }

// IsolationLevel returns the running transaction's isolation level.
func (x *Xct) IsolationLevel() IsolationLevel { return x.isolation }

// TracksPointerSets reports whether follow_page_pointer should record
// ptr-set entries for this transaction (spec.md §4.8).
func (x *Xct) TracksPointerSets() bool { return x.isolation == Serializable }

// AddToReadSet appends record (with its currently observed version) to
// the read set, failing with CodeReadSetOverflow once the arena is full.
func (x *Xct) AddToReadSet(record storage.Record) error {
	if len(x.readSet) == cap(x.readSet) {
		return errorstack.New(errorstack.CodeReadSetOverflow, "xct: read set arena is full")
	}
	x.readSet = append(x.readSet, ReadSetEntry{Record: record, ObservedVersion: record.Version()})
	return nil
}

// AddToWriteSet appends record and its redo log entry to the write
// set, failing with CodeWriteSetOverflow once the arena is full.
func (x *Xct) AddToWriteSet(record storage.Record, logEntry []byte) error {
	if len(x.writeSet) == cap(x.writeSet) {
		return errorstack.New(errorstack.CodeWriteSetOverflow, "xct: write set arena is full")
	}
	x.writeSet = append(x.writeSet, WriteSetEntry{Record: record, LogEntry: logEntry})
	return nil
}

// AddToPointerSet records that this transaction observed pointer at
// its current value. Unlike the read/write sets, the pointer set has
// no configured capacity cap in spec.md; it grows with the number of
// pages followed without modification in this transaction.
func (x *Xct) AddToPointerSet(pointer *storage.DualPagePointer, observed storage.VolatilePointer) {
	x.pointerSet = append(x.pointerSet, PointerSetEntry{Pointer: pointer, Observed: observed})
}

// PointerSet returns the entries recorded so far this transaction.
func (x *Xct) PointerSet() []PointerSetEntry { return x.pointerSet }

// ReadSet returns the entries recorded so far this transaction.
func (x *Xct) ReadSet() []ReadSetEntry { return x.readSet }

// WriteSet returns the entries recorded so far this transaction.
func (x *Xct) WriteSet() []WriteSetEntry { return x.writeSet }
