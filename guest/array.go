package guest

import (
	"sync"

	"github.com/chazu/hostbridge/interop"
)

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

// Array is a mutable guest array.
type Array struct {
	mu    sync.RWMutex
	items []any
}

// NewArray creates an array holding items.
func NewArray(items ...any) *Array {
	return &Array{items: append([]any(nil), items...)}
}

func (a *Array) ArraySize() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int64(len(a.items))
}

func (a *Array) ReadElement(i int64) (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= int64(len(a.items)) {
		return nil, &interop.InvalidIndexError{Index: i, Size: int64(len(a.items))}
	}
	return a.items[i], nil
}

func (a *Array) WriteElement(i int64, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= int64(len(a.items)) {
		return &interop.InvalidIndexError{Index: i, Size: int64(len(a.items))}
	}
	a.items[i] = v
	return nil
}

// Append adds elements at the end.
func (a *Array) Append(items ...any) {
	a.mu.Lock()
	a.items = append(a.items, items...)
	a.mu.Unlock()
}

// Items returns a copy of the elements.
func (a *Array) Items() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]any(nil), a.items...)
}

// Iterator walks a snapshot of the elements.
func (a *Array) Iterator() (interop.Iterator, error) {
	return NewIterator(a.Items()...), nil
}

// ---------------------------------------------------------------------------
// Iterators
// ---------------------------------------------------------------------------

// Iterator yields a fixed sequence once.
type Iterator struct {
	mu    sync.Mutex
	items []any
	pos   int
}

func NewIterator(items ...any) *Iterator {
	return &Iterator{items: items}
}

func (it *Iterator) HasNext() (bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.pos < len(it.items), nil
}

func (it *Iterator) Next() (any, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos >= len(it.items) {
		return nil, interop.ErrStopIteration
	}
	v := it.items[it.pos]
	it.pos++
	return v, nil
}

// Sequence is an iterable that is not an array: every Iterator call starts
// over.
type Sequence struct {
	items []any
}

func NewSequence(items ...any) *Sequence {
	return &Sequence{items: items}
}

func (s *Sequence) Iterator() (interop.Iterator, error) {
	return NewIterator(s.items...), nil
}
