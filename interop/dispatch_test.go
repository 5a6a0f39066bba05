package interop

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type Recur struct{}

func (Recur) Call(f func(int32) int32, n int32) int32 { return f(n) }

func (Recur) Depth(f func() int) int { return f() }

func TestCallDepthExhausted(t *testing.T) {
	p := DefaultPolicy()
	p.MaxCallDepth = 10
	e := newEngine(t, p)
	h := hostOf(t, e, Recur{})

	var deepest int32
	var fn gFunc
	fn = func(ctx context.Context, args []any) (any, error) {
		n := args[0].(int32)
		deepest = max(deepest, n)
		return h.InvokeMember(ctx, "Call", fn, n+1)
	}
	_, err := h.InvokeMember(t.Context(), "Call", fn, int32(0))
	var rex *ResourceExhaustionError
	if !errors.As(err, &rex) {
		t.Fatalf("err = %v", err)
	}
	if rex.Limit != 10 {
		t.Errorf("limit = %d", rex.Limit)
	}
	if deepest == 0 || deepest > 10 {
		t.Errorf("recursed to %d", deepest)
	}
}

func TestCallDepthPropagates(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, Recur{})
	var seen int
	probe := gFunc(func(ctx context.Context, _ []any) (any, error) {
		seen = CallDepth(ctx)
		return seen, nil
	})
	if _, err := h.InvokeMember(t.Context(), "Depth", probe); err != nil {
		t.Fatal(err)
	}
	if seen != 2 {
		t.Errorf("guest callback at depth %d, want 2", seen)
	}
	if CallDepth(context.Background()) != 0 {
		t.Error("fresh context has depth")
	}
}

func TestVariadicCall(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, &Printer{})
	tests := []struct {
		args []any
		want string
	}{
		{[]any{"-", "a", "b", "c"}, "a-b-c"},
		{[]any{"-"}, ""},
		{[]any{"+", "solo"}, "solo"},
		{[]any{",", gArray{"x", "y"}}, "x,y"},
	}
	for _, tt := range tests {
		v, err := h.InvokeMember(t.Context(), "Join", tt.args...)
		if err != nil || v != tt.want {
			t.Errorf("Join%v = %v, %v", tt.args, v, err)
		}
	}
	var arity *ArityError
	if _, err := h.InvokeMember(t.Context(), "Join"); !errors.As(err, &arity) || arity.Min != 1 || arity.Max != UnboundedArity {
		t.Errorf("Join() = %v", err)
	}
	var cerr *ConversionError
	if _, err := h.InvokeMember(t.Context(), "Join", "-", "a", gArray{1}); !errors.As(err, &cerr) {
		t.Errorf("bad variadic element = %v", err)
	}
}

func TestArgumentConversionFailure(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, &Point{})
	_, err := h.InvokeMember(t.Context(), "Move", "left", int32(1))
	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v", err)
	}
	if cerr.Target != TypeFor[int32]() {
		t.Errorf("target = %s", cerr.Target)
	}
}

func TestUnknownMethod(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, &Point{})
	var unknown *UnknownMemberError
	if _, err := h.InvokeMember(t.Context(), "Teleport"); !errors.As(err, &unknown) {
		t.Errorf("err = %v", err)
	}
	var unsupported *UnsupportedMessageError
	if _, err := h.InvokeMember(t.Context(), "X"); !errors.As(err, &unsupported) {
		t.Errorf("invoking a plain field = %v", err)
	}
}

type Callbacks struct {
	Hook func(int32) int32
}

func TestInvokeFuncField(t *testing.T) {
	e := newEngine(t, nil)
	cb := &Callbacks{Hook: func(n int32) int32 { return n * 2 }}
	h := hostOf(t, e, cb)
	if !h.IsMemberInvocable("Hook") {
		t.Fatal("func field is not invocable")
	}
	if v, err := h.InvokeMember(t.Context(), "Hook", int32(21)); err != nil || v != int32(42) {
		t.Errorf("Hook = %v, %v", v, err)
	}
}

func TestMultipleResults(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, func() (int, string) { return 7, "seven" })
	v, err := h.Execute()
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := v.(*HostObject)
	if !ok || arr.ArraySize() != 2 {
		t.Fatalf("results = %v", v)
	}
	first, _ := arr.ReadElement(0)
	second, _ := arr.ReadElement(1)
	if first != 7 || second != "seven" {
		t.Errorf("results = %v, %v", first, second)
	}

	none := hostOf(t, e, func() {})
	if v, err := none.Execute(); err != nil || !IsNull(v) {
		t.Errorf("no results = %v, %v", v, err)
	}
}

func TestThunkMethod(t *testing.T) {
	e := newEngine(t, nil)
	err := e.Register(ClassOf[*Printer]().
		Thunk("Repeat", false, []reflect.Type{reflect.TypeFor[string](), reflect.TypeFor[int]()}, false,
			func(recv any, args []any) (any, error) {
				out := ""
				for range args[1].(int) {
					out += args[0].(string)
				}
				recv.(*Printer).Out = append(recv.(*Printer).Out, out)
				return out, nil
			}).
		Thunk("Count", true, []reflect.Type{reflect.TypeFor[[]any]()}, true,
			func(_ any, args []any) (any, error) { return len(args), nil }))
	if err != nil {
		t.Fatal(err)
	}
	p := &Printer{}
	if v, err := hostOf(t, e, p).InvokeMember(t.Context(), "Repeat", "ab", int32(3)); err != nil || v != "ababab" {
		t.Errorf("Repeat = %v, %v", v, err)
	}
	if len(p.Out) != 1 {
		t.Errorf("receiver not passed: %v", p.Out)
	}
	s, err := e.StaticView(reflect.TypeFor[*Printer]())
	if err != nil {
		t.Fatal(err)
	}
	if v, err := s.InvokeMember(t.Context(), "Count", 1, "two", 3.0); err != nil || v != 3 {
		t.Errorf("Count = %v, %v", v, err)
	}

	bad := ClassOf[*Printer]().Thunk("Bad", false, []reflect.Type{reflect.TypeFor[int]()}, true, nil)
	if err := e.Register(bad); err == nil {
		t.Error("variadic thunk without a slice parameter registered")
	}
}
