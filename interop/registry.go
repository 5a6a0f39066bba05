package interop

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Type registry
// ---------------------------------------------------------------------------

// typeInfo is what the engine knows about one host type.
type typeInfo struct {
	ID    uint32
	Type  reflect.Type
	Spec  *ClassSpec // registered description, nil for observed types
	class *ClassDesc // built lazily, immutable once set
}

// typeRegistry assigns stable IDs to host types and holds their class
// descriptors. Thread-safe for concurrent registration and lookup.
type typeRegistry struct {
	mu     sync.RWMutex
	types  map[uint32]*typeInfo
	byType map[reflect.Type]uint32
	nextID uint32
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		types:  make(map[uint32]*typeInfo),
		byType: make(map[reflect.Type]uint32),
		nextID: 1, // 0 means unregistered
	}
}

// register returns the entry for rt, creating it on first sight.
func (r *typeRegistry) register(rt reflect.Type) *typeInfo {
	if info := r.lookupByType(rt); info != nil {
		return info
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byType[rt]; ok {
		return r.types[id]
	}
	info := &typeInfo{ID: r.nextID, Type: rt}
	r.nextID++
	r.types[info.ID] = info
	r.byType[rt] = info.ID
	return info
}

// setSpec attaches a class description, dropping any descriptor built
// from an earlier one.
func (r *typeRegistry) setSpec(spec *ClassSpec) *typeInfo {
	info := r.register(spec.typ)
	r.mu.Lock()
	defer r.mu.Unlock()
	info.Spec = spec
	info.class = nil
	return info
}

func (r *typeRegistry) lookup(id uint32) *typeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[id]
}

func (r *typeRegistry) lookupByType(rt reflect.Type) *typeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[rt]
	if !ok {
		return nil
	}
	return r.types[id]
}

// cached returns the built descriptor for info, if any.
func (r *typeRegistry) cached(info *typeInfo) (*ClassDesc, *ClassSpec) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return info.class, info.Spec
}

// store publishes a descriptor unless its ClassSpec was replaced while it was built.
func (r *typeRegistry) store(info *typeInfo, spec *ClassSpec, c *ClassDesc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info.Spec == spec && r.types[info.ID] == info {
		info.class = c
	}
}

// evict forgets the descriptor built for rt. Descriptors already handed
// out stay valid.
func (r *typeRegistry) evict(rt reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byType[rt]
	if !ok || r.types[id].class == nil {
		return false
	}
	r.types[id].class = nil
	return true
}

func (r *typeRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// key renders a collision-free cache key for a list of types.
func (r *typeRegistry) key(types []reflect.Type) string {
	parts := make([]string, len(types))
	for i, rt := range types {
		parts[i] = strconv.FormatUint(uint64(r.register(rt).ID), 10)
	}
	return strings.Join(parts, "+")
}
