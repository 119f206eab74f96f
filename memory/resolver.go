package memory

import "github.com/foedus-go/foedus/storage"

// LocalPageResolver translates an offset within one node's page pool
// into a typed page reference by pure pointer arithmetic: base +
// offset*PageSize (spec.md §4.4). It holds no lock and does no bounds
// checking in the hot path; it is a value type, safe to copy, exactly
// as spec.md requires.
type LocalPageResolver struct {
	base []byte
}

// Resolve returns the Page living at offset within this node's pool.
func (r LocalPageResolver) Resolve(offset storage.Offset) storage.Page {
	start := uint64(offset) * storage.PageSize
	return storage.Page(r.base[start : start+storage.PageSize])
}

// GlobalVolatilePageResolver indexes a LocalPageResolver per NUMA node
// so any thread can dereference a VolatilePointer regardless of which
// node it names (spec.md §4.4 "For cross-node resolution..."). Like
// its local counterpart it is a cheap value type.
type GlobalVolatilePageResolver struct {
	perNode []LocalPageResolver
}

// NewGlobalVolatilePageResolver builds a resolver spanning numNodes
// nodes. Each node's LocalPageResolver is installed with SetNode once
// that node's pool exists.
func NewGlobalVolatilePageResolver(numNodes int) GlobalVolatilePageResolver {
	return GlobalVolatilePageResolver{perNode: make([]LocalPageResolver, numNodes)}
}

// SetNode installs the resolver for one node.
func (g *GlobalVolatilePageResolver) SetNode(node storage.NodeID, resolver LocalPageResolver) {
	g.perNode[node] = resolver
}

// Resolve dereferences a VolatilePointer to its page, regardless of node.
func (g GlobalVolatilePageResolver) Resolve(p storage.VolatilePointer) storage.Page {
	return g.perNode[p.Node()].Resolve(p.Offset())
}

// ResolveNodeOffset is the (node, offset) form used when a caller
// already decomposed a pointer, e.g. while walking child pointers
// during array build.
func (g GlobalVolatilePageResolver) ResolveNodeOffset(node storage.NodeID, offset storage.Offset) storage.Page {
	return g.perNode[node].Resolve(offset)
}
