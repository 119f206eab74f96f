package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/mcs"
	"github.com/foedus-go/foedus/memory"
	"github.com/foedus-go/foedus/snapshotcache"
	"github.com/foedus-go/foedus/storage/array"
	"github.com/foedus-go/foedus/telemetry"
	"github.com/foedus-go/foedus/thread"
)

// Engine is the single process-wide object spec.md §9 says every
// component is constructed against explicitly: it owns the
// MemoryManager, the thread.Group, the StorageManager, and the
// telemetry Bundle. Nothing in this package reaches for a package-level
// global to get at any of these; every collaborator is handed its
// Engine (or a piece of it) at construction, per spec.md's "no global
// state" design note.
type Engine struct {
	// InstanceID uniquely names this engine instance in its log lines,
	// grounded on the teacher's uuid.New().String() id-generation
	// pattern.
	InstanceID string

	options   Options
	topology  *memory.NodeTopology
	memory    *memory.Manager
	threads   *thread.Group
	mcs       *mcs.Registry
	snapshot  *snapshotcache.Cache
	storages  *StorageManager
	telemetry *telemetry.Bundle

	initDone bool
}

// New constructs an Engine from options and a snapshot reader (use
// snapshotcache.NullSnapshotPageReader{} when no snapshot backing
// exists, the common case for this in-memory-only engine). No page pool
// memory is allocated and no worker goroutines are spawned until
// Initialize runs; the snapshot cache built here starts ristretto's own
// background goroutines right away.
func New(options Options, reader snapshotcache.SnapshotPageReader) (*Engine, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	bundle, err := telemetry.New(
		telemetry.Config{
			Enabled:        options.TelemetryEnabled,
			ServiceName:    options.TelemetryServiceName,
			PrometheusPort: options.TelemetryPrometheusPort,
		},
		telemetry.LogConfig{
			Level:      options.TelemetryLogLevel,
			Format:     options.TelemetryLogFormat,
			OutputFile: "stdout",
		},
	)
	if err != nil {
		return nil, errorstack.Wrap(err, "engine: building telemetry bundle")
	}

	cache, err := snapshotcache.NewCache(snapshotcache.DefaultOptions(64<<20), reader)
	if err != nil {
		return nil, errorstack.Wrap(err, "engine: building snapshot cache")
	}

	topology := memory.NewFixedTopology(options.ThreadGroupCount, options.ThreadCountPerGroup)

	mgr := memory.NewManager(topology, memory.ManagerOptions{
		PagePoolSizePerNodeBytes: options.MemoryPagePoolSizePerNode,
		PagesForFreePool:         options.MemoryPagesForFreePool,
		CoresPerNode:             options.ThreadCountPerGroup,
		Core: memory.CoreMemoryOptions{
			ChunkCapacity:    64,
			ReadSetCapacity:  options.XctMaxReadSetSize,
			WriteSetCapacity: options.XctMaxWriteSetSize,
			McsBlockCapacity: 256,
		},
	}, bundle)

	totalThreads := options.ThreadGroupCount * options.ThreadCountPerGroup
	registry := mcs.NewRegistry(totalThreads)

	return &Engine{
		InstanceID: uuid.New().String(),
		options:    options,
		topology:   topology,
		memory:     mgr,
		mcs:        registry,
		snapshot:   cache,
		storages:   newStorageManager(),
		telemetry:  bundle,
	}, nil
}

// Initialize allocates every node's page pool, spawns one pinned
// goroutine per configured thread, and brings the whole engine up
// (spec.md §4.9 applied at engine scope). Idempotent.
func (e *Engine) Initialize() error {
	if e.initDone {
		return nil
	}
	if err := e.memory.Initialize(); err != nil {
		return errorstack.Wrap(err, "engine: initializing memory manager")
	}

	var threads []*thread.Thread
	var cpus []int
	ordinal := int32(0)
	for _, node := range e.topology.Nodes() {
		nodeCPUs := e.topology.CoresOf(node)
		for local, cpu := range nodeCPUs {
			th := thread.New(thread.Options{
				ID:             thread.ID{Node: node, Local: uint16(local)},
				GlobalOrdinal:  ordinal,
				CoreMemory:     e.memory.CoreMemory(node, local),
				LogBufferBytes: 1 << 20,
				Resolver:       e.memory.GlobalVolatilePageResolver(),
				McsRegistry:    e.mcs,
				SnapshotCache:  e.snapshot,
				SnapshotReader: snapshotcache.NullSnapshotPageReader{},
				Telemetry:      e.telemetry,
			})
			threads = append(threads, th)
			cpus = append(cpus, cpu)
			ordinal++
		}
	}
	e.threads = thread.NewGroup(threads, cpus)
	if err := e.threads.Initialize(); err != nil {
		return errorstack.Wrap(err, "engine: initializing thread group")
	}

	e.initDone = true
	e.telemetry.Logger.Info("engine initialized",
		zap.String("instance_id", e.InstanceID),
		zap.String("memory", e.memory.DescribeSizes()),
		zap.Int("threads", len(threads)),
	)
	return nil
}

// Uninitialize tears the engine down in reverse order: thread group
// first (so every Thread has released its pages and locks), then the
// memory manager, then telemetry. Aggregates failures rather than
// stopping at the first (spec.md §7).
func (e *Engine) Uninitialize() error {
	if !e.initDone {
		return nil
	}
	var batch errorstack.Batch
	if e.threads != nil {
		batch.Add(e.threads.Uninitialize())
	}
	batch.Add(e.memory.Uninitialize())
	batch.Add(e.telemetry.Shutdown(context.Background()))
	e.snapshot.Close()
	e.initDone = false
	return batch.Summarize()
}

// Options returns the validated options this engine was built from.
func (e *Engine) Options() Options { return e.options }

// MemoryManager returns the engine's memory substrate.
func (e *Engine) MemoryManager() *memory.Manager { return e.memory }

// ThreadGroup returns the engine's pinned worker pool. Valid only
// after Initialize.
func (e *Engine) ThreadGroup() *thread.Group { return e.threads }

// StorageManager returns the engine's registry of created array
// storages.
func (e *Engine) StorageManager() *StorageManager { return e.storages }

// Telemetry returns the engine's logging/metrics/tracing bundle.
func (e *Engine) Telemetry() *telemetry.Bundle { return e.telemetry }

// CreateArray runs CreateArray on the given thread ordinal's own
// goroutine via Group.Submit, matching spec.md §5's "mutated only by
// the owning thread" for every per-core structure Storage.Create
// touches while building the tree.
func (e *Engine) CreateArray(threadOrdinal int32, name string, payloadSize uint16, arraySize uint64, epoch uint64) (*array.Storage, error) {
	var result *array.Storage
	var createErr error
	e.threads.Submit(threadOrdinal, func(th *thread.Thread) {
		result, createErr = e.storages.CreateArray(th, name, payloadSize, arraySize, epoch)
	})
	return result, createErr
}
