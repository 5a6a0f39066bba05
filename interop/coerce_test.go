package interop

import (
	"context"
	"errors"
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"
)

// earliest returns the first tier at which v converts to rt, or noTier.
func earliest(e *Engine, v any, rt reflect.Type) Tier {
	return e.tierOf(v, TypeOf(rt), TierLowest)
}

func TestConversionTiers(t *testing.T) {
	e := newEngine(t, nil)
	noop := gFunc(func(context.Context, []any) (any, error) { return nil, nil })
	instant := gTime{facets: FacetDate | FacetTime | FacetZone, t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	tests := []struct {
		name   string
		value  any
		target reflect.Type
		want   Tier
	}{
		{"int32 to int64", int32(5), reflect.TypeFor[int64](), TierStrict},
		{"small int32 to int8", int32(5), reflect.TypeFor[int8](), TierStrict},
		{"int32 overflowing int8", int32(300), reflect.TypeFor[int8](), noTier},
		{"integral float to int32", 2.0, reflect.TypeFor[int32](), TierStrict},
		{"fractional float to int32", 2.5, reflect.TypeFor[int32](), TierCoerce},
		{"NaN to int32", math.NaN(), reflect.TypeFor[int32](), noTier},
		{"int to float64", 7, reflect.TypeFor[float64](), TierStrict},
		{"negative to uint8", -1, reflect.TypeFor[uint8](), noTier},
		{"one-unit string to char", "a", reflect.TypeFor[uint16](), TierStrict},
		{"one-unit string to int32", "a", reflect.TypeFor[int32](), TierCoerce},
		{"long string to char", "ab", reflect.TypeFor[uint16](), noTier},
		{"string to string", "x", reflect.TypeFor[string](), TierStrict},
		{"bool to bool", true, reflect.TypeFor[bool](), TierStrict},
		{"bool to int", true, reflect.TypeFor[int](), noTier},
		{"int to boxed int64", int32(3), reflect.TypeFor[*int64](), TierStrict},
		{"null to pointer", Null, reflect.TypeFor[*Point](), TierStrict},
		{"null to int", Null, reflect.TypeFor[int](), noTier},
		{"null to string", Null, reflect.TypeFor[string](), noTier},
		{"null to time", Null, reflect.TypeFor[time.Time](), noTier},
		{"null to struct value", Null, reflect.TypeFor[Point](), noTier},
		{"null to boxed string", Null, reflect.TypeFor[*string](), TierStrict},
		{"undefined to slice", Undefined, reflect.TypeFor[[]int](), TierStrict},
		{"number to any", 1, reflect.TypeFor[any](), TierStrict},
		{"object to any", gObject{}, reflect.TypeFor[any](), TierLoose},
		{"array to List", gArray{1}, reflect.TypeFor[List](), TierLoose},
		{"array to slice", gArray{1}, reflect.TypeFor[[]int32](), TierCoerce},
		{"array to HostIterable", gArray{1}, reflect.TypeFor[HostIterable](), TierLoose},
		{"object to Map", gObject{}, reflect.TypeFor[Map](), TierLoose},
		{"object to Go map", gObject{}, reflect.TypeFor[map[string]int](), TierCoerce},
		{"object to int-keyed map", gObject{}, reflect.TypeFor[map[int]int](), noTier},
		{"function to func", noop, reflect.TypeFor[func(int) int](), TierFunctionProxy},
		{"object to func", gObject{}, reflect.TypeFor[func()](), noTier},
		{"instant to time.Time", instant, reflect.TypeFor[time.Time](), TierLoose},
		{"instant to duration", instant, reflect.TypeFor[time.Duration](), noTier},
		{"object as guest handle", gObject{}, reflect.TypeFor[MemberBearing](), TierStrict},
		{"array as wrong handle", gArray{}, reflect.TypeFor[Executable](), noTier},
		{"big.Int without number access", big.NewInt(3), reflect.TypeFor[int64](), noTier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := earliest(e, tt.value, tt.target); got != tt.want {
				t.Errorf("earliest tier = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConversionMonotone(t *testing.T) {
	e := newEngine(t, nil)
	values := []any{
		int8(1), int32(-7), uint64(math.MaxUint64), 2.5, float32(1.5), "a", "hello", true,
		Null, gArray{1, 2}, gObject{"a": 1}, gFunc(nil),
		gTime{facets: FacetDuration, d: time.Second},
	}
	targets := []reflect.Type{
		reflect.TypeFor[int8](), reflect.TypeFor[int64](), reflect.TypeFor[uint16](),
		reflect.TypeFor[float32](), reflect.TypeFor[string](), reflect.TypeFor[any](),
		reflect.TypeFor[[]int](), reflect.TypeFor[List](), reflect.TypeFor[Map](),
		reflect.TypeFor[func() int](), reflect.TypeFor[time.Duration](), reflect.TypeFor[*int32](),
	}
	for _, v := range values {
		for _, rt := range targets {
			seen := false
			for _, tier := range Tiers {
				ok := e.CanCoerce(v, rt, tier)
				if seen && !ok {
					t.Errorf("%v to %s: allowed before %s but not at it", v, rt, tier)
				}
				seen = seen || ok
			}
		}
	}
}

func TestCoerceValues(t *testing.T) {
	e := newEngine(t, nil)

	if got, err := CoerceTo[int32](e, 2.9); err != nil || got != 2 {
		t.Errorf("CoerceTo[int32](2.9) = %v, %v; want 2", got, err)
	}
	if got, err := CoerceTo[uint16](e, "a"); err != nil || got != 'a' {
		t.Errorf("CoerceTo[uint16](\"a\") = %v, %v; want 97", got, err)
	}
	if got, err := CoerceTo[[]int64](e, gArray{1, int8(2), 3.0}); err != nil || !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("CoerceTo[[]int64] = %v, %v", got, err)
	}
	if got, err := CoerceTo[map[string]int](e, gObject{"a": 1, "b": 2}); err != nil || got["b"] != 2 {
		t.Errorf("CoerceTo[map[string]int] = %v, %v", got, err)
	}
	if got, err := CoerceTo[*Point](e, Null); err != nil || got != nil {
		t.Errorf("CoerceTo[*Point](Null) = %v, %v; want nil", got, err)
	}
	p, err := CoerceTo[*int64](e, int32(7))
	if err != nil || p == nil || *p != 7 {
		t.Errorf("CoerceTo[*int64](7) = %v, %v", p, err)
	}
	d, err := CoerceTo[time.Duration](e, gTime{facets: FacetDuration, d: 3 * time.Second})
	if err != nil || d != 3*time.Second {
		t.Errorf("CoerceTo[time.Duration] = %v, %v", d, err)
	}
}

func TestCoerceFailures(t *testing.T) {
	e := newEngine(t, nil)

	_, err := CoerceTo[int8](e, int32(300))
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want *ConversionError", err)
	}
	if ce.Kind() != "conversion" {
		t.Errorf("Kind = %q", ce.Kind())
	}
	if _, ok := ce.Details()["target"]; !ok {
		t.Errorf("details missing target: %v", ce.Details())
	}

	_, err = CoerceTo[[]int8](e, gArray{1, 1000})
	if !errors.As(err, &ce) || !strings.Contains(err.Error(), "element 1") {
		t.Errorf("got %v, want element conversion error", err)
	}

	if _, err := CoerceTo[[2]int](e, gArray{1, 2, 3}); err == nil {
		t.Error("expected length mismatch for fixed array")
	}
}

func TestNullHandling(t *testing.T) {
	e := newEngine(t, nil)
	for _, v := range []any{nil, Null, Undefined, (*Point)(nil)} {
		if !IsNull(v) {
			t.Errorf("IsNull(%#v) = false", v)
		}
	}
	if e.Wrap(nil) != Null {
		t.Error("Wrap(nil) should be Null")
	}
	if e.Wrap((*Point)(nil)) != Null {
		t.Error("Wrap of a nil pointer should be Null")
	}
	if _, err := e.Coerce(Null, reflect.TypeFor[string]()); err == nil {
		t.Error("Null should not convert to string")
	}
	got, err := e.Coerce(Undefined, reflect.TypeFor[any]())
	if err != nil || got != nil {
		t.Errorf("Coerce(Undefined, any) = %v, %v; want nil", got, err)
	}
}

func TestBigIntegerAccess(t *testing.T) {
	p := DefaultPolicy()
	p.BigIntegerNumberAccess = true
	e := newEngine(t, p)

	big1 := new(big.Int).Lsh(big.NewInt(1), 70)
	if got := earliest(e, big.NewInt(3), reflect.TypeFor[int64]()); got != TierStrict {
		t.Errorf("small big.Int to int64: %s", got)
	}
	if got := earliest(e, big1, reflect.TypeFor[int64]()); got != noTier {
		t.Errorf("2^70 to int64: %s, want none", got)
	}
	if got := earliest(e, int64(5), reflect.TypeFor[*big.Int]()); got != TierStrict {
		t.Errorf("int64 to *big.Int: %s", got)
	}
	if got := earliest(e, 4.0, reflect.TypeFor[*big.Int]()); got != TierCoerce {
		t.Errorf("integral float to *big.Int: %s", got)
	}
	b, err := CoerceTo[*big.Int](e, uint64(math.MaxUint64))
	if err != nil || b.String() != "18446744073709551615" {
		t.Errorf("CoerceTo[*big.Int] = %v, %v", b, err)
	}
	if e.Wrap(big1) != any(big1) {
		t.Error("big.Int should cross as a number under big integer access")
	}
}

func TestMappingPriority(t *testing.T) {
	answer := func(any) (int64, error) { return 42, nil }
	isInt32 := func(v any) bool {
		_, ok := v.(int32)
		return ok
	}

	high := DefaultPolicy().AddMapping(NewMapping("answer", TierHighest, isInt32, answer))
	e := newEngine(t, high)
	if got, _ := CoerceTo[int64](e, int32(1)); got != 42 {
		t.Errorf("highest mapping: got %d, want 42", got)
	}

	low := DefaultPolicy().AddMapping(NewMapping("answer", TierLowest, isInt32, answer))
	e = newEngine(t, low)
	if got, _ := CoerceTo[int64](e, int32(1)); got != 1 {
		t.Errorf("lowest mapping should not override a strict rule: got %d", got)
	}
}

func TestCoerceMappingBeforeProxyRule(t *testing.T) {
	one := gFunc(func(context.Context, []any) (any, error) { return 1, nil })
	constant := func(any) (func() int, error) { return func() int { return 42 }, nil }
	target := reflect.TypeFor[func() int]()

	e := newEngine(t, DefaultPolicy().AddMapping(NewMapping("const", TierCoerce, nil, constant)))
	if got := earliest(e, one, target); got != TierCoerce {
		t.Fatalf("tier = %s, want coerce", got)
	}
	f, err := CoerceTo[func() int](e, one)
	if err != nil {
		t.Fatal(err)
	}
	if got := f(); got != 42 {
		t.Errorf("converted by the function proxy rule: got %d, want 42", got)
	}

	e = newEngine(t, DefaultPolicy().AddMapping(NewMapping("const", TierLowest, nil, constant)))
	if got := earliest(e, one, target); got != TierFunctionProxy {
		t.Fatalf("tier = %s, want function-proxy", got)
	}
	f, err = CoerceTo[func() int](e, one)
	if err != nil {
		t.Fatal(err)
	}
	if got := f(); got != 1 {
		t.Errorf("lowest mapping overrode the function proxy rule: got %d", got)
	}
}

func TestMappingExtendsConversions(t *testing.T) {
	e := newEngine(t, nil)
	target := reflect.TypeFor[time.Duration]()
	if e.CanCoerce("2s", target, TierLowest) {
		t.Fatal("string should not convert to a duration without a mapping")
	}
	gen := e.Generation()
	err := e.AddMapping(NewMapping("parse-duration", TierLoose,
		func(v any) bool {
			_, ok := v.(string)
			return ok
		},
		func(v any) (time.Duration, error) { return time.ParseDuration(v.(string)) }))
	if err != nil {
		t.Fatalf("AddMapping: %v", err)
	}
	if e.Generation() == gen {
		t.Error("AddMapping should bump the generation")
	}
	if got := earliest(e, "2s", target); got != TierLoose {
		t.Errorf("tier = %s, want loose", got)
	}
	d, err := CoerceTo[time.Duration](e, "2s")
	if err != nil || d != 2*time.Second {
		t.Errorf("CoerceTo = %v, %v", d, err)
	}

	_, err = CoerceTo[time.Duration](e, "soon")
	var ce *ConversionError
	if !errors.As(err, &ce) || !strings.Contains(ce.Reason, "parse-duration") {
		t.Errorf("got %v, want mapping conversion error", err)
	}
}

func TestMappingValidation(t *testing.T) {
	bad := DefaultPolicy().AddMapping(NewMapping("proxy", TierFunctionProxy, nil,
		func(any) (string, error) { return "", nil }))
	if _, err := NewEngine(bad); err == nil {
		t.Error("expected error for a mapping at a proxy tier")
	}
	e := newEngine(t, nil)
	if err := e.AddMapping(TargetMapping{Name: "empty", Target: reflect.TypeFor[int]()}); err == nil {
		t.Error("expected error for a mapping without converter")
	}
}

func TestMappingNull(t *testing.T) {
	p := DefaultPolicy().AddMapping(TargetMapping{
		Name:        "null-point",
		Target:      reflect.TypeFor[*Point](),
		Priority:    TierHighest,
		AcceptsNull: true,
		Convert:     func(any) (any, error) { return &Point{Label: "origin"}, nil },
	})
	e := newEngine(t, p)
	got, err := CoerceTo[*Point](e, Null)
	if err != nil || got == nil || got.Label != "origin" {
		t.Errorf("CoerceTo[*Point](Null) = %v, %v", got, err)
	}
}
