// Package thread implements the core-pinned worker from spec.md §4.8:
// it owns the running transaction, the per-thread redo log buffer, and
// the MCS lock and page-pointer-following machinery every storage
// operation goes through, grounded on
// _examples/original_source/foedus-core/include/foedus/thread/thread.hpp.
package thread

import (
	"context"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/mcs"
	"github.com/foedus-go/foedus/memory"
	"github.com/foedus-go/foedus/snapshotcache"
	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/telemetry"
	"github.com/foedus-go/foedus/txlog"
	"github.com/foedus-go/foedus/xct"
)

// ID identifies a thread as (NUMA node, core-local ordinal), per
// spec.md §3 "Thread ... owns thread_id = (node, local_ordinal)".
type ID struct {
	Node  storage.NodeID
	Local uint16
}

// Thread is one worker pinned to one core. Exactly one goroutine (the
// one Group.Initialize starts for it, see group.go) calls methods on a given
// Thread; nothing here is safe for concurrent use by more than one
// goroutine, matching spec.md §5's "per-core chunk, read set, write
// set, log buffer: mutated only by the owning thread".
type Thread struct {
	id             ID
	globalOrdinal  int32
	coreMemory     *memory.NumaCoreMemory
	logBuffer      *txlog.Buffer
	xct            *xct.Xct
	resolver       memory.GlobalVolatilePageResolver
	mcsRegistry    *mcs.Registry
	snapshotCache  *snapshotcache.Cache
	snapshotReader snapshotcache.SnapshotPageReader
	ownerGoroutine int64
	telemetry      *telemetry.Bundle
}

// Options bundles the collaborators New needs, kept together so
// engine.Engine has one call to make per thread it spawns.
type Options struct {
	ID             ID
	GlobalOrdinal  int32
	CoreMemory     *memory.NumaCoreMemory
	LogBufferBytes int
	Resolver       memory.GlobalVolatilePageResolver
	McsRegistry    *mcs.Registry
	SnapshotCache  *snapshotcache.Cache
	SnapshotReader snapshotcache.SnapshotPageReader
	Telemetry      *telemetry.Bundle
}

// New constructs a Thread. It does not register with the MCS registry
// (Initialize does that) or pin the OS thread (the Group goroutine
// that runs this Thread does that via PinToCore).
func New(opts Options) *Thread {
	bundle := opts.Telemetry
	if bundle == nil {
		bundle = telemetry.NewNop()
	}
	return &Thread{
		id:             opts.ID,
		globalOrdinal:  opts.GlobalOrdinal,
		coreMemory:     opts.CoreMemory,
		logBuffer:      txlog.NewBuffer(opts.LogBufferBytes),
		xct:            xct.New(opts.CoreMemory.ReadSetCapacity(), opts.CoreMemory.WriteSetCapacity()),
		resolver:       opts.Resolver,
		mcsRegistry:    opts.McsRegistry,
		snapshotCache:  opts.SnapshotCache,
		snapshotReader: opts.SnapshotReader,
		telemetry:      bundle,
	}
}

// Telemetry returns this thread's logging/metrics/tracing bundle,
// consulted by storage operations run on this thread (SPEC_FULL.md §4.14).
func (t *Thread) Telemetry() *telemetry.Bundle { return t.telemetry }

// Initialize registers this thread's MCS block arena with the shared
// registry so other threads' Release calls can reach it. Idempotent
// registration is left to mcs.Registry (re-registering the same
// threadID is harmless, just overwrites with the same arena pointer).
func (t *Thread) Initialize() error {
	_, span := t.telemetry.Tracer.Start(context.Background(), "thread.Initialize")
	defer span.End()
	t.mcsRegistry.Register(t.globalOrdinal, t.coreMemory.McsBlockArena())
	t.ownerGoroutine = currentGoroutineID()
	return nil
}

// Uninitialize unregisters this thread from the shared MCS registry.
// The caller must have already released every lock this thread held
// and returned every page it grabbed (spec.md §5).
func (t *Thread) Uninitialize() error {
	t.mcsRegistry.Unregister(t.globalOrdinal)
	return nil
}

// ID returns this thread's (node, local ordinal) identity.
func (t *Thread) ID() ID { return t.id }

// GlobalOrdinal returns this thread's engine-wide ordinal, the value
// used as its identity in the MCS registry.
func (t *Thread) GlobalOrdinal() int32 { return t.globalOrdinal }

// GetCurrentXct returns the transaction currently bound to this thread.
func (t *Thread) GetCurrentXct() *xct.Xct { return t.xct }

// IsRunningXct reports whether a transaction is currently active.
func (t *Thread) IsRunningXct() bool { return t.xct.IsRunning() }

// CoreMemory returns this thread's private memory repository.
func (t *Thread) CoreMemory() *memory.NumaCoreMemory { return t.coreMemory }

// LogBuffer returns this thread's private redo log buffer.
func (t *Thread) LogBuffer() *txlog.Buffer { return t.logBuffer }

// GlobalVolatilePageResolver returns the resolver used to dereference
// pointers naming any NUMA node's pool.
func (t *Thread) GlobalVolatilePageResolver() memory.GlobalVolatilePageResolver { return t.resolver }

// FindOrReadASnapshotPage consults the snapshot cache, reading through
// to the injected SnapshotPageReader on a miss (spec.md §4.8).
func (t *Thread) FindOrReadASnapshotPage(pageID storage.SnapshotPointer) (storage.Page, error) {
	return t.snapshotCache.FindOrRead(pageID)
}

// ReadASnapshotPage always performs I/O via the injected
// SnapshotPageReader, bypassing the cache (spec.md §4.8: "this method
// always READs, so no caching done").
func (t *Thread) ReadASnapshotPage(pageID storage.SnapshotPointer) (storage.Page, error) {
	return t.snapshotReader.ReadPage(pageID)
}

// InstallAVolatilePage allocates a new volatile page from this
// thread's core chunk, copies the snapshot image into it, and
// CAS-installs it into pointer's volatile side (spec.md §4.8).
// Preconditions: pointer.SnapshotPointer != 0, checked on every call
// (a violation panics), and pointer.Volatile().IsNull(), which is not
// checked (a concurrent installer may have already won).
//
// If another thread installs first, this thread's page is reclaimed to
// its own chunk and the winner's page is returned instead.
func (t *Thread) InstallAVolatilePage(pointer *storage.DualPagePointer) (storage.Page, error) {
	t.assertOwningGoroutine()
	if pointer.SnapshotPointer == storage.NullSnapshotPointer {
		panic("thread: InstallAVolatilePage requires a non-null snapshot pointer")
	}

	snapshotPage, err := t.FindOrReadASnapshotPage(pointer.SnapshotPointer)
	if err != nil {
		return nil, errorstack.Wrap(err, "InstallAVolatilePage: snapshot read")
	}

	offset, err := t.coreMemory.GrabFreePage()
	if err != nil {
		return nil, errorstack.Wrap(err, "InstallAVolatilePage: grab page")
	}
	newPage := t.resolver.ResolveNodeOffset(t.id.Node, offset)
	copy(newPage, snapshotPage)

	candidate := storage.NewVolatilePointer(t.id.Node, pointer.Volatile().ModCount()+1, offset)
	installed, won := pointer.CASVolatile(pointer.Volatile(), candidate)
	if !won {
		// Lost the race: reclaim our page, return the winner's instead.
		t.coreMemory.ReleaseFreePage(offset)
		return t.resolver.Resolve(installed), nil
	}
	return newPage, nil
}

// FollowPagePointer is the general pointer dereference from spec.md
// §4.8, governed by four orthogonal flags. Precondition: !tolerateNull
// || !willModify.
func (t *Thread) FollowPagePointer(
	initializer storage.VolatilePageInitializer,
	tolerateNull bool,
	willModify bool,
	takePtrSetSnapshot bool,
	takePtrSetVolatile bool,
	pointer *storage.DualPagePointer,
) (storage.Page, error) {
	t.assertOwningGoroutine()
	if tolerateNull && willModify {
		panic("thread: FollowPagePointer precondition violated: !tolerate_null || !will_modify")
	}
	trackPtrSet := t.xct.TracksPointerSets()

	volatile := pointer.Volatile()
	if !volatile.IsNull() {
		if trackPtrSet && takePtrSetVolatile {
			t.addToPointerSet(pointer, volatile)
		}
		return t.resolver.Resolve(volatile), nil
	}

	if pointer.SnapshotPointer != storage.NullSnapshotPointer {
		page, err := t.FindOrReadASnapshotPage(pointer.SnapshotPointer)
		if err != nil {
			return nil, errorstack.Wrap(err, "FollowPagePointer: snapshot read")
		}
		if willModify {
			installed, err := t.InstallAVolatilePage(pointer)
			if err != nil {
				return nil, err
			}
			return installed, nil
		}
		if trackPtrSet && takePtrSetSnapshot {
			t.addToPointerSet(pointer, pointer.Volatile())
		}
		return page, nil
	}

	// Both sides null.
	if tolerateNull {
		return nil, nil
	}
	offset, err := t.coreMemory.GrabFreePage()
	if err != nil {
		return nil, errorstack.Wrap(err, "FollowPagePointer: grab page for new volatile page")
	}
	newPage := t.resolver.ResolveNodeOffset(t.id.Node, offset)
	if err := initializer.InitializeVolatilePage(newPage, offset); err != nil {
		t.coreMemory.ReleaseFreePage(offset)
		return nil, errorstack.Wrap(err, "FollowPagePointer: initialize new volatile page")
	}
	candidate := storage.NewVolatilePointer(t.id.Node, pointer.Volatile().ModCount()+1, offset)
	installed, won := pointer.CASVolatile(storage.NullVolatilePointer, candidate)
	if !won {
		t.coreMemory.ReleaseFreePage(offset)
		return t.resolver.Resolve(installed), nil
	}
	return newPage, nil
}

func (t *Thread) addToPointerSet(pointer *storage.DualPagePointer, observed storage.VolatilePointer) {
	t.xct.AddToPointerSet(pointer, observed)
}
