package guest_test

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/chazu/hostbridge/guest"
	"github.com/chazu/hostbridge/interop"
)

func TestArray(t *testing.T) {
	a := guest.NewArray(1, "two")
	a.Append(3.0)
	if a.ArraySize() != 3 {
		t.Fatalf("size %d", a.ArraySize())
	}
	if err := a.WriteElement(0, "one"); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.ReadElement(0); v != "one" {
		t.Errorf("element 0 = %v", v)
	}
	var idx *interop.InvalidIndexError
	if _, err := a.ReadElement(3); !errors.As(err, &idx) || idx.Size != 3 {
		t.Errorf("read past end: %v", err)
	}
	if err := a.WriteElement(-1, 0); !errors.As(err, &idx) {
		t.Errorf("write before start: %v", err)
	}

	it, _ := a.Iterator()
	a.Append("late")
	var got []any
	for {
		v, err := it.Next()
		if errors.Is(err, interop.ErrStopIteration) {
			break
		}
		got = append(got, v)
	}
	if !reflect.DeepEqual(got, []any{"one", "two", 3.0}) {
		t.Errorf("iterated %v", got)
	}
}

func TestSequenceRestarts(t *testing.T) {
	s := guest.NewSequence("a", "b")
	for range 2 {
		it, _ := s.Iterator()
		n := 0
		for {
			more, _ := it.HasNext()
			if !more {
				break
			}
			it.Next()
			n++
		}
		if n != 2 {
			t.Errorf("pass yielded %d elements", n)
		}
	}
	if interop.CapabilitiesOf(s).Has(interop.CapArray) {
		t.Error("sequence reports the array capability")
	}
}

func TestHashNumericKeys(t *testing.T) {
	h := guest.NewHash().
		Put(1, "int").
		Put(int32(1), "int32").
		Put(1.5, "float").
		Put(big.NewInt(2), "big").
		Put("1", "string")
	if h.HashSize() != 4 {
		t.Fatalf("size %d", h.HashSize())
	}
	if v, ok, _ := h.ReadHashValue(1.0); !ok || v != "int32" {
		t.Errorf("1.0 = %v %v", v, ok)
	}
	if v, ok, _ := h.ReadHashValue(uint8(2)); !ok || v != "big" {
		t.Errorf("uint8(2) = %v %v", v, ok)
	}
	if v, _, _ := h.ReadHashValue("1"); v != "string" {
		t.Errorf("\"1\" = %v", v)
	}

	if !h.Remove(1.5) || h.Remove(1.5) {
		t.Error("remove reported wrong presence")
	}
	keys, _ := h.HashKeys()
	if !reflect.DeepEqual(keys, []any{1, big.NewInt(2), "1"}) {
		t.Errorf("keys after remove = %v", keys)
	}
	if v, ok, _ := h.ReadHashValue("1"); !ok || v != "string" {
		t.Error("index not rebuilt after remove")
	}

	s1, s2 := []int{1}, []int{1}
	h.Put(s1, "first").Put(s2, "second")
	if v, _, _ := h.ReadHashValue(s1); v != "first" {
		t.Errorf("slice key by identity = %v", v)
	}
}

func TestObject(t *testing.T) {
	o := guest.NewObject("b", 1, "a", 2)
	o.Set("c", 3).Set("b", 4)
	if got := o.MemberKeys(); !slices.Equal(got, []string{"b", "a", "c"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := o.ReadMember("b"); v != 4 {
		t.Errorf("b = %v", v)
	}
	var unknown *interop.UnknownMemberError
	if _, err := o.ReadMember("z"); !errors.As(err, &unknown) {
		t.Errorf("read z: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("odd pairs did not panic")
		}
	}()
	guest.NewObject("lonely")
}

func TestMaskedCapabilities(t *testing.T) {
	m := &guest.Masked{Object: guest.NewObject("x", 1), Caps: interop.CapArray}
	if caps := interop.CapabilitiesOf(m); caps.Has(interop.CapMembers) || caps.Has(interop.CapArray) {
		t.Errorf("masked caps = %v", caps)
	}
	e := interop.MustEngine(nil)
	if _, err := interop.CoerceTo[map[string]any](e, m); err == nil {
		t.Error("masked object converted to a map")
	}
	full := &guest.Masked{Object: guest.NewObject("x", 1), Caps: interop.CapMembers}
	if got, err := interop.CoerceTo[map[string]int](e, full); err != nil || got["x"] != 1 {
		t.Errorf("unmasked copy = %v, %v", got, err)
	}
}

func TestTemporalStrings(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		v    *guest.Temporal
		want string
	}{
		{guest.Instant(at), "2024-03-01T12:30:00Z"},
		{guest.LocalDateTime(2024, 3, 1, 12, 30, 0), "2024-03-01 12:30:00"},
		{guest.Date(2024, 3, 1), "2024-03-01"},
		{guest.Zone(time.UTC), "UTC"},
		{guest.Duration(90 * time.Second), "1m30s"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if _, err := guest.Duration(time.Second).AsTime(); err == nil {
		t.Error("duration converted to a time")
	}
	if _, err := guest.Date(2024, 1, 1).AsDuration(); err == nil {
		t.Error("date converted to a duration")
	}
}

func TestTemporalCoercion(t *testing.T) {
	e := interop.MustEngine(nil)
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	if got, err := interop.CoerceTo[time.Time](e, guest.Instant(at)); err != nil || !got.Equal(at) {
		t.Errorf("instant = %v, %v", got, err)
	}
	if _, err := interop.CoerceTo[time.Time](e, guest.Date(2024, 3, 1)); err == nil {
		t.Error("bare date converted to an instant")
	}
	if got, err := interop.CoerceTo[time.Duration](e, guest.Duration(time.Minute)); err != nil || got != time.Minute {
		t.Errorf("duration = %v, %v", got, err)
	}
	if got, err := interop.CoerceTo[*time.Location](e, guest.Zone(time.UTC)); err != nil || got != time.UTC {
		t.Errorf("zone = %v, %v", got, err)
	}
}

func TestStructureCoercion(t *testing.T) {
	e := interop.MustEngine(nil)
	if got, err := interop.CoerceTo[[]int](e, guest.NewArray(1, int32(2), 3.0)); err != nil || !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("array copy = %v, %v", got, err)
	}
	if got, err := interop.CoerceTo[map[string]int](e, guest.NewHash().Put("a", 1)); err != nil || got["a"] != 1 {
		t.Errorf("hash copy = %v, %v", got, err)
	}

	it, err := interop.CoerceTo[interop.HostIterable](e, guest.NewSequence("x", "y"))
	if err != nil {
		t.Fatal(err)
	}
	var got []any
	for i := it.Iter(); i.Next(); {
		got = append(got, i.Value())
	}
	if !reflect.DeepEqual(got, []any{"x", "y"}) {
		t.Errorf("iterated %v", got)
	}

	list, err := interop.CoerceTo[interop.List](e, guest.NewArray("a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := list.Set(0, "b"); err != nil {
		t.Fatal(err)
	}
	if v, _ := list.Get(0); v != "b" {
		t.Errorf("list view read %v", v)
	}
}

func TestExceptionCrossesHostFrames(t *testing.T) {
	e := interop.MustEngine(nil)
	relay := e.Wrap(func(f func() error) error { return f() }).(*interop.HostObject)
	thrown := guest.Throw("bad value %d", 7)
	fn := guest.Func("thrower", func(context.Context, []any) (any, error) { return nil, thrown })

	_, err := relay.Execute(fn)
	var ex *guest.Exception
	if !errors.As(err, &ex) || ex != thrown {
		t.Fatalf("err = %v", err)
	}
	var hie *interop.HostInvocationError
	if errors.As(err, &hie) {
		t.Error("guest exception wrapped as a host failure")
	}
	if ex.Exception() != "bad value 7" {
		t.Errorf("payload = %v", ex.Exception())
	}
	ex.Payload = map[string]int{"code": 7}
	if _, ok := ex.Exception().(map[string]int); !ok {
		t.Error("payload not returned")
	}
}

func TestConstructorAndLambda(t *testing.T) {
	c := guest.NewConstructor("Pair", func(args []any) (any, error) {
		return guest.NewArray(args...), nil
	})
	v, err := c.Instantiate(1, 2)
	if err != nil || v.(*guest.Array).ArraySize() != 2 {
		t.Errorf("Instantiate = %v, %v", v, err)
	}
	if c.String() != "class Pair" {
		t.Errorf("String = %q", c.String())
	}

	double := guest.Lambda("double", func(args ...any) (any, error) { return args[0].(int) * 2, nil })
	if v, _ := double.Execute(4); v != 8 {
		t.Errorf("double(4) = %v", v)
	}
	e := interop.MustEngine(nil)
	f, err := interop.CoerceTo[func(int) int](e, double)
	if err != nil {
		t.Fatal(err)
	}
	if got := f(21); got != 42 {
		t.Errorf("proxied double = %d", got)
	}
}
