package memory

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/telemetry"
)

// ManagerOptions configures the MemoryManager, concretizing the engine
// options spec.md §6 names: memory.page_pool_size_per_node (bytes) and
// memory.pages_for_free_pool, plus the per-core sizing this spec's
// CoreMemoryOptions adds.
type ManagerOptions struct {
	PagePoolSizePerNodeBytes uint64
	PagesForFreePool         uint64
	CoresPerNode             int
	Core                     CoreMemoryOptions
}

// Manager owns one PagePool per NUMA node, the GlobalVolatilePageResolver
// spanning all of them, and one NumaCoreMemory per configured core
// (spec.md §2 C3-C5). It is the engine's single memory substrate; every
// Thread is handed its NumaCoreMemory and a reference to the global
// resolver by this Manager during engine initialize.
type Manager struct {
	topology *NodeTopology
	opts     ManagerOptions

	pools     []*PagePool // indexed by NodeID
	resolver  GlobalVolatilePageResolver
	coreMems  [][]*NumaCoreMemory // [node][ordinal]
	initDone  bool
	telemetry *telemetry.Bundle
}

// NewManager constructs a Manager for the given topology and options.
// bundle is threaded into every node's PagePool so page-pool grabs,
// releases, and exhaustion are observable (SPEC_FULL.md §4.14). No
// memory is allocated until Initialize runs.
func NewManager(topology *NodeTopology, opts ManagerOptions, bundle *telemetry.Bundle) *Manager {
	return &Manager{
		topology:  topology,
		opts:      opts,
		resolver:  NewGlobalVolatilePageResolver(topology.NumNodes()),
		telemetry: bundle,
	}
}

// Initialize allocates every node's page pool and grabs each core's
// initial chunk. Idempotent (spec.md §4.9).
func (m *Manager) Initialize() error {
	if m.initDone {
		return nil
	}
	if m.opts.PagePoolSizePerNodeBytes == 0 {
		return errorstack.New(errorstack.CodeBadAlignment, "memory.page_pool_size_per_node must be positive")
	}
	totalPages := m.opts.PagePoolSizePerNodeBytes / storage.PageSize
	if totalPages <= m.opts.PagesForFreePool {
		return errorstack.New(errorstack.CodeBadAlignment, "page pool too small to hold its own free-pool bookkeeping")
	}

	m.pools = make([]*PagePool, m.topology.NumNodes())
	m.coreMems = make([][]*NumaCoreMemory, m.topology.NumNodes())

	for _, node := range m.topology.Nodes() {
		region, err := Allocate(int(totalPages*storage.PageSize), storage.PageSize, AllocNumaLocal, node)
		if err != nil {
			return errorstack.Wrap(err, "allocating node page pool")
		}
		pool := NewPagePool(node, region, totalPages, m.opts.PagesForFreePool, m.telemetry)
		m.pools[node] = pool
		m.resolver.SetNode(node, pool.Resolver())

		cores := make([]*NumaCoreMemory, m.opts.CoresPerNode)
		for ordinal := range cores {
			core := NewNumaCoreMemory(node, ordinal, pool, m.opts.Core)
			if err := core.Initialize(); err != nil {
				return errorstack.Wrap(err, "initializing core memory")
			}
			cores[ordinal] = core
		}
		m.coreMems[node] = cores
	}
	m.initDone = true
	return nil
}

// IsInitialized reports whether Initialize has completed.
func (m *Manager) IsInitialized() bool { return m.initDone }

// Uninitialize releases every core's chunk and every node's page pool,
// in reverse of initialize order, aggregating failures rather than
// stopping at the first one (spec.md §4.9, §7).
func (m *Manager) Uninitialize() error {
	if !m.initDone {
		return nil
	}
	var batch errorstack.Batch
	for _, node := range m.topology.Nodes() {
		for _, core := range m.coreMems[node] {
			batch.Add(core.Uninitialize())
		}
	}
	for _, node := range m.topology.Nodes() {
		pool := m.pools[node]
		region := pool.region
		batch.Add(region.Release())
	}
	m.initDone = false
	return batch.Summarize()
}

// PagePool returns the page pool for node.
func (m *Manager) PagePool(node storage.NodeID) *PagePool { return m.pools[node] }

// GlobalVolatilePageResolver returns the resolver spanning every node's pool.
func (m *Manager) GlobalVolatilePageResolver() GlobalVolatilePageResolver { return m.resolver }

// CoreMemory returns the NumaCoreMemory for the given node and
// core-local ordinal.
func (m *Manager) CoreMemory(node storage.NodeID, ordinal int) *NumaCoreMemory {
	return m.coreMems[node][ordinal]
}

// DescribeSizes renders a human-readable one-line summary of this
// manager's per-node pool sizing, for startup log lines (SPEC_FULL.md
// §AMBIENT STACK: "log-line formatting of pool/region byte sizes").
func (m *Manager) DescribeSizes() string {
	total := m.opts.PagePoolSizePerNodeBytes * uint64(m.topology.NumNodes())
	return fmt.Sprintf(
		"%d node(s) x %s page pool (%s total), %d pages reserved per node for free-pool bookkeeping",
		m.topology.NumNodes(),
		humanize.Bytes(m.opts.PagePoolSizePerNodeBytes),
		humanize.Bytes(total),
		m.opts.PagesForFreePool,
	)
}

// AnyCoreMemory returns an arbitrary core's memory, used by code (like
// array.Storage.Uninitialize) that just needs somewhere to return
// freed pages and does not care which core services the return
// (spec.md §4.10 "Returns pages to any one core's chunk").
func (m *Manager) AnyCoreMemory() *NumaCoreMemory {
	for _, node := range m.topology.Nodes() {
		if len(m.coreMems[node]) > 0 {
			return m.coreMems[node][0]
		}
	}
	return nil
}
