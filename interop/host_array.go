package interop

import (
	"context"
	"reflect"
)

// Array protocol on host slices, fixed arrays and List values.

func (h *HostObject) arrayValue() (reflect.Value, List, bool) {
	if h.static || !h.caps().Has(CapArray) {
		return reflect.Value{}, nil, false
	}
	if l, ok := h.value.(List); ok {
		return reflect.Value{}, l, true
	}
	return reflect.ValueOf(h.value), nil, true
}

// ArraySize returns the element count, or 0 when h is not an array.
func (h *HostObject) ArraySize() int64 {
	rv, l, ok := h.arrayValue()
	switch {
	case !ok:
		return 0
	case l != nil:
		return int64(l.Len())
	}
	return int64(rv.Len())
}

func (h *HostObject) ReadElement(i int64) (any, error) {
	rv, l, ok := h.arrayValue()
	if !ok {
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "read element"}
	}
	if size := h.ArraySize(); i < 0 || i >= size {
		return nil, &InvalidIndexError{Index: i, Size: size}
	}
	if l != nil {
		v, err := l.Get(int(i))
		if err != nil {
			return nil, err
		}
		return h.e.Wrap(v), nil
	}
	return h.e.wrapValue(rv.Index(int(i))), nil
}

// WriteElement converts v to the element type and stores it. Fixed arrays
// held by value are read-only.
func (h *HostObject) WriteElement(i int64, v any) error {
	rv, l, ok := h.arrayValue()
	if !ok {
		return &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "write element"}
	}
	if size := h.ArraySize(); i < 0 || i >= size {
		return &InvalidIndexError{Index: i, Size: size}
	}
	ctx := context.Background()
	if l != nil {
		obj, err := h.e.toObject(ctx, v)
		if err != nil {
			return err
		}
		return l.Set(int(i), obj)
	}
	el := rv.Index(int(i))
	if !el.CanSet() {
		return &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "write element of array value"}
	}
	cv, err := h.e.convert(ctx, v, TypeOf(el.Type()), nil)
	if err != nil {
		return err
	}
	el.Set(cv)
	return nil
}
