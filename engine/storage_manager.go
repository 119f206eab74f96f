package engine

import (
	"sync"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
	"github.com/foedus-go/foedus/storage/array"
	"github.com/foedus-go/foedus/thread"
)

// StorageManager is the engine-wide registry of created storages,
// matching SPEC_FULL.md §3's "StorageManager (registry of created
// ArrayStorage instances)". Only array storages exist in this engine;
// a real FOEDUS-style engine would hold hash/masstree/sequential
// storages alongside, but those are out of scope (spec.md §1).
type StorageManager struct {
	mu     sync.Mutex
	byID   map[storage.StorageID]*array.Storage
	byName map[string]*array.Storage
	nextID storage.StorageID
}

func newStorageManager() *StorageManager {
	return &StorageManager{
		byID:   make(map[storage.StorageID]*array.Storage),
		byName: make(map[string]*array.Storage),
		nextID: 1,
	}
}

// CreateArray allocates a StorageID, builds the array's tree via
// Storage.Create, and registers it under name. Fails with
// CodeStrAlreadyExists if name is already registered, matching
// spec.md's array storage creation contract.
func (m *StorageManager) CreateArray(th *thread.Thread, name string, payloadSize uint16, arraySize uint64, epoch uint64) (*array.Storage, error) {
	m.mu.Lock()
	if _, exists := m.byName[name]; exists {
		m.mu.Unlock()
		return nil, errorstack.New(errorstack.CodeStrAlreadyExists, "engine: storage name already registered: "+name)
	}
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	s := array.New(id, name, payloadSize, arraySize)
	if err := s.Create(th, epoch); err != nil {
		return nil, errorstack.Wrap(err, "engine: creating array storage "+name)
	}

	m.mu.Lock()
	m.byID[id] = s
	m.byName[name] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks up a registered storage by name.
func (m *StorageManager) Get(name string) (*array.Storage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byName[name]
	return s, ok
}

// GetByID looks up a registered storage by id.
func (m *StorageManager) GetByID(id storage.StorageID) (*array.Storage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	return s, ok
}

// All returns every registered storage, in no particular order.
func (m *StorageManager) All() []*array.Storage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*array.Storage, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out
}
