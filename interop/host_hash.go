package interop

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
)

// Hash protocol on Go maps and Map values. Keys are reported in a stable
// order: ordered key kinds sort naturally, others by their printed form.

func (h *HostObject) hashValue() (reflect.Value, Map, bool) {
	if h.static || !h.caps().Has(CapHash) {
		return reflect.Value{}, nil, false
	}
	if m, ok := h.value.(Map); ok {
		return reflect.Value{}, m, true
	}
	return reflect.ValueOf(h.value), nil, true
}

func (h *HostObject) HashSize() int64 {
	rv, m, ok := h.hashValue()
	switch {
	case !ok:
		return 0
	case m != nil:
		return int64(m.Len())
	}
	return int64(rv.Len())
}

// ReadHashValue looks key up. A key that cannot be converted to the map's
// key type is reported as absent.
func (h *HostObject) ReadHashValue(key any) (any, bool, error) {
	rv, m, ok := h.hashValue()
	if !ok {
		return nil, false, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "read hash value"}
	}
	ctx := context.Background()
	if m != nil {
		k, err := h.e.toObject(ctx, key)
		if err != nil {
			return nil, false, err
		}
		v, found, err := m.Get(k)
		if err != nil || !found {
			return nil, false, err
		}
		return h.e.Wrap(v), true, nil
	}
	k, err := h.e.convert(ctx, key, TypeOf(rv.Type().Key()), nil)
	if err != nil {
		return nil, false, nil
	}
	v := rv.MapIndex(k)
	if !v.IsValid() {
		return nil, false, nil
	}
	return h.e.wrapValue(v), true, nil
}

func (h *HostObject) HashKeys() ([]any, error) {
	rv, m, ok := h.hashValue()
	if !ok {
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "hash keys"}
	}
	var keys []any
	if m != nil {
		ks, err := m.Keys()
		if err != nil {
			return nil, err
		}
		keys = ks
	} else {
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.Interface())
		}
	}
	slices.SortFunc(keys, compareKeys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = h.e.Wrap(k)
	}
	return out, nil
}

// WriteHashEntry converts key and value to the map's types and stores them.
func (h *HostObject) WriteHashEntry(key, v any) error {
	rv, m, ok := h.hashValue()
	if !ok {
		return &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "write hash entry"}
	}
	ctx := context.Background()
	if m != nil {
		k, err := h.e.toObject(ctx, key)
		if err != nil {
			return err
		}
		val, err := h.e.toObject(ctx, v)
		if err != nil {
			return err
		}
		return m.Put(k, val)
	}
	if rv.IsNil() {
		return &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "write to nil map"}
	}
	k, err := h.e.convert(ctx, key, TypeOf(rv.Type().Key()), nil)
	if err != nil {
		return err
	}
	val, err := h.e.convert(ctx, v, TypeOf(rv.Type().Elem()), nil)
	if err != nil {
		return err
	}
	rv.SetMapIndex(k, val)
	return nil
}

// RemoveHashEntry deletes key from a Go map and reports whether it was
// present.
func (h *HostObject) RemoveHashEntry(key any) (bool, error) {
	rv, m, ok := h.hashValue()
	if !ok || m != nil {
		return false, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "remove hash entry"}
	}
	k, err := h.e.convert(context.Background(), key, TypeOf(rv.Type().Key()), nil)
	if err != nil {
		return false, nil
	}
	if !rv.MapIndex(k).IsValid() {
		return false, nil
	}
	rv.SetMapIndex(k, reflect.Value{})
	return true, nil
}

func compareKeys(a, b any) int {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.IsValid() && rb.IsValid() && ra.Kind() == rb.Kind() {
		switch {
		case ra.CanInt():
			return cmp.Compare(ra.Int(), rb.Int())
		case ra.CanUint():
			return cmp.Compare(ra.Uint(), rb.Uint())
		case ra.CanFloat():
			return cmp.Compare(ra.Float(), rb.Float())
		case ra.Kind() == reflect.String:
			return cmp.Compare(ra.String(), rb.String())
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
