package interop

import (
	"reflect"
)

// Iterable and iterator protocols on host values.

// Iterator returns a fresh iterator over an iterable host value. The result
// is itself a host object exposing HasNext and Next.
func (h *HostObject) Iterator() (Iterator, error) {
	if h.static || !h.caps().Has(CapIterable) {
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "iterator"}
	}
	var it HostIterator
	if src, ok := h.value.(HostIterable); ok {
		it = src.Iter()
	} else if l, ok := h.value.(List); ok {
		it = &sliceIter{list: l, n: l.Len(), i: -1}
	} else {
		rv := reflect.ValueOf(h.value)
		it = &sliceIter{rv: rv, n: rv.Len(), i: -1}
	}
	return &HostObject{e: h.e, value: it}, nil
}

// HasNext reports whether Next will produce an element. It advances the
// underlying HostIterator at most once per element.
func (h *HostObject) HasNext() (bool, error) {
	it, err := h.iterator()
	if err != nil {
		return false, err
	}
	h.iterMu.Lock()
	defer h.iterMu.Unlock()
	return h.advance(it)
}

func (h *HostObject) Next() (any, error) {
	it, err := h.iterator()
	if err != nil {
		return nil, err
	}
	h.iterMu.Lock()
	defer h.iterMu.Unlock()
	more, err := h.advance(it)
	if err != nil {
		return nil, err
	}
	if !more {
		return nil, ErrStopIteration
	}
	h.peeked = false
	v := h.peek
	h.peek = nil
	return h.e.Wrap(v), nil
}

func (h *HostObject) iterator() (HostIterator, error) {
	if h.static || !h.caps().Has(CapIterator) {
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "iterator protocol"}
	}
	return h.value.(HostIterator), nil
}

func (h *HostObject) advance(it HostIterator) (bool, error) {
	if h.peeked {
		return h.more, nil
	}
	h.more = it.Next()
	if !h.more {
		if err := it.Err(); err != nil {
			return false, err
		}
	}
	h.peeked = true
	if h.more {
		h.peek = it.Value()
	}
	return h.more, nil
}

// sliceIter walks a slice, fixed array or List.
type sliceIter struct {
	rv   reflect.Value
	list List
	n    int
	i    int
	cur  any
	err  error
}

func (s *sliceIter) Next() bool {
	if s.err != nil || s.i+1 >= s.n {
		return false
	}
	s.i++
	if s.list != nil {
		s.cur, s.err = s.list.Get(s.i)
		return s.err == nil
	}
	el := s.rv.Index(s.i)
	if el.CanInterface() {
		s.cur = el.Interface()
	}
	return true
}

func (s *sliceIter) Value() any { return s.cur }

func (s *sliceIter) Err() error { return s.err }
