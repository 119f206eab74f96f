package memory

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/foedus-go/foedus/storage"
)

// NodeTopology is the discovered NUMA layout: how many nodes exist and
// which cores belong to each, used to size the MemoryManager's
// per-node pools and to pin Thread goroutines (spec.md §3 "NUMA node").
type NodeTopology struct {
	nodes    []storage.NodeID
	nodeCPUs map[storage.NodeID][]int
	cpuNode  map[int]storage.NodeID
}

// NumNodes returns the number of NUMA nodes in this topology.
func (t *NodeTopology) NumNodes() int { return len(t.nodes) }

// Nodes returns the node ids in ascending order.
func (t *NodeTopology) Nodes() []storage.NodeID { return t.nodes }

// CoresOf returns the core (CPU) ids belonging to node.
func (t *NodeTopology) CoresOf(node storage.NodeID) []int { return t.nodeCPUs[node] }

// NodeOf returns the NUMA node owning CPU cpu, or 0 if unknown.
func (t *NodeTopology) NodeOf(cpu int) storage.NodeID { return t.cpuNode[cpu] }

// DiscoverTopology reads the NUMA layout from /sys/devices/system/node,
// the same source the rest of the Go NUMA tooling in this ecosystem
// uses. When that path is unavailable (containers, non-Linux, non-NUMA
// hardware) it falls back to a single pseudo-node covering every
// GOMAXPROCS core, matching the portability fallback spec.md assumes
// any NUMA-topology-dependent code must have.
func DiscoverTopology() *NodeTopology {
	topo, err := discoverFromSysfs()
	if err != nil {
		return singleNodeFallback()
	}
	return topo
}

func discoverFromSysfs() (*NodeTopology, error) {
	const numaPath = "/sys/devices/system/node"
	if _, err := os.Stat(numaPath); os.IsNotExist(err) {
		return nil, errors.New("NUMA sysfs not available")
	}
	entries, err := os.ReadDir(numaPath)
	if err != nil {
		return nil, err
	}
	topo := &NodeTopology{
		nodeCPUs: make(map[storage.NodeID][]int),
		cpuNode:  make(map[int]storage.NodeID),
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "node") {
			continue
		}
		idStr := strings.TrimPrefix(entry.Name(), "node")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		node := storage.NodeID(id)
		cpuListPath := filepath.Join(numaPath, entry.Name(), "cpulist")
		cpuData, err := os.ReadFile(cpuListPath)
		if err != nil {
			continue
		}
		cpus := parseCPUList(strings.TrimSpace(string(cpuData)))
		topo.nodes = append(topo.nodes, node)
		topo.nodeCPUs[node] = cpus
		for _, cpu := range cpus {
			topo.cpuNode[cpu] = node
		}
	}
	if len(topo.nodes) == 0 {
		return nil, errors.New("no NUMA nodes found")
	}
	return topo, nil
}

func singleNodeFallback() *NodeTopology {
	return NewSingleNodeTopology(runtime.GOMAXPROCS(0))
}

// NewSingleNodeTopology builds a one-node topology covering numCPUs
// CPUs, the same shape DiscoverTopology falls back to when NUMA sysfs
// is unavailable. Exported so tests across packages can build a
// MemoryManager without depending on the host's real NUMA layout.
func NewSingleNodeTopology(numCPUs int) *NodeTopology {
	cpus := make([]int, numCPUs)
	cpuNode := make(map[int]storage.NodeID, numCPUs)
	for i := range cpus {
		cpus[i] = i
		cpuNode[i] = 0
	}
	return &NodeTopology{
		nodes:    []storage.NodeID{0},
		nodeCPUs: map[storage.NodeID][]int{0: cpus},
		cpuNode:  cpuNode,
	}
}

// NewFixedTopology builds a synthetic topology of exactly groupCount
// nodes with coresPerGroup CPUs each, used by engine.Engine to realize
// its thread.group_count / thread.thread_count_per_group options
// without depending on the host actually having that many real NUMA
// nodes (spec.md §6). CPU ids are assigned densely starting at 0 and
// are not claimed to correspond to real hardware cores; callers
// sizing ThreadGroupCount*ThreadCountPerGroup above GOMAXPROCS should
// expect PinToCore to fail on Linux (invalid affinity target) rather
// than silently oversubscribing real cores.
func NewFixedTopology(groupCount, coresPerGroup int) *NodeTopology {
	nodes := make([]storage.NodeID, groupCount)
	nodeCPUs := make(map[storage.NodeID][]int, groupCount)
	cpuNode := make(map[int]storage.NodeID)
	cpu := 0
	for g := 0; g < groupCount; g++ {
		node := storage.NodeID(g)
		nodes[g] = node
		cpus := make([]int, coresPerGroup)
		for c := 0; c < coresPerGroup; c++ {
			cpus[c] = cpu
			cpuNode[cpu] = node
			cpu++
		}
		nodeCPUs[node] = cpus
	}
	return &NodeTopology{nodes: nodes, nodeCPUs: nodeCPUs, cpuNode: cpuNode}
}

func parseCPUList(cpuList string) []int {
	var cpus []int
	if cpuList == "" {
		return cpus
	}
	for _, part := range strings.Split(cpuList, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, errA := strconv.Atoi(bounds[0])
			end, errB := strconv.Atoi(bounds[1])
			if errA != nil || errB != nil {
				continue
			}
			for i := start; i <= end; i++ {
				cpus = append(cpus, i)
			}
		} else if cpu, err := strconv.Atoi(part); err == nil {
			cpus = append(cpus, cpu)
		}
	}
	return cpus
}
