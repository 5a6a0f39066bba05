package guest

import (
	"math/big"
	"reflect"
	"sync"
)

// Hash is a guest hash with arbitrary keys. Numeric keys compare by value,
// so 1, int32(1) and 1.0 name the same entry.
type Hash struct {
	mu     sync.RWMutex
	index  map[any]int
	keys   []any
	values []any
}

func NewHash() *Hash {
	return &Hash{index: make(map[any]int)}
}

// Put stores an entry and returns h.
func (h *Hash) Put(key, v any) *Hash {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := hashKey(key)
	if i, ok := h.index[k]; ok {
		h.values[i] = v
		return h
	}
	h.index[k] = len(h.keys)
	h.keys = append(h.keys, key)
	h.values = append(h.values, v)
	return h
}

// Remove deletes key, reporting whether it was present.
func (h *Hash) Remove(key any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := hashKey(key)
	i, ok := h.index[k]
	if !ok {
		return false
	}
	delete(h.index, k)
	h.keys = append(h.keys[:i], h.keys[i+1:]...)
	h.values = append(h.values[:i], h.values[i+1:]...)
	for j := i; j < len(h.keys); j++ {
		h.index[hashKey(h.keys[j])] = j
	}
	return true
}

func (h *Hash) HashSize() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.keys))
}

func (h *Hash) ReadHashValue(key any) (any, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, ok := h.index[hashKey(key)]
	if !ok {
		return nil, false, nil
	}
	return h.values[i], true, nil
}

func (h *Hash) HashKeys() ([]any, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]any(nil), h.keys...), nil
}

// hashKey normalizes numbers so equal values share an entry. Keys that are
// not comparable hash by identity of their printed type and pointer.
func hashKey(k any) any {
	switch x := k.(type) {
	case *big.Int:
		if x.IsInt64() {
			return float64(x.Int64())
		}
		return "big:" + x.String()
	}
	rv := reflect.ValueOf(k)
	if !rv.IsValid() {
		return nil
	}
	switch {
	case rv.CanInt():
		return float64(rv.Int())
	case rv.CanUint():
		return float64(rv.Uint())
	case rv.CanFloat():
		return rv.Float()
	case rv.Kind() == reflect.String:
		return rv.String()
	}
	if !rv.Comparable() {
		return identity{rv.Type(), pointerOf(rv)}
	}
	return k
}

type identity struct {
	t   reflect.Type
	ptr uintptr
}

func pointerOf(rv reflect.Value) uintptr {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.Pointer()
	}
	return 0
}
