package interop

import (
	"encoding/binary"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestHostMembers(t *testing.T) {
	e := newEngine(t, nil)
	p := &Point{X: 1, Y: 2, Label: "p"}
	h := hostOf(t, e, p)

	if got, want := h.MemberKeys(), []string{"Label", "Move", "Norm1", "X", "Y"}; !slices.Equal(got, want) {
		t.Errorf("MemberKeys = %v, want %v", got, want)
	}
	if h.HasMember("hidden") {
		t.Error("unexported field is visible")
	}
	if v, err := h.ReadMember("X"); err != nil || v != int32(1) {
		t.Errorf("X = %v, %v", v, err)
	}
	if v, err := h.ReadMember("Label"); err != nil || v != "p" {
		t.Errorf("Label = %v, %v", v, err)
	}

	if !h.IsMemberModifiable("X") {
		t.Error("X is not modifiable")
	}
	if err := h.WriteMember("X", int64(7)); err != nil {
		t.Fatalf("write X: %v", err)
	}
	if p.X != 7 {
		t.Errorf("X = %d after write", p.X)
	}

	if h.IsMemberModifiable("Label") {
		t.Error("readonly Label is modifiable")
	}
	var unsupported *UnsupportedMessageError
	if err := h.WriteMember("Label", "q"); !errors.As(err, &unsupported) {
		t.Errorf("write Label: %v", err)
	}
	if err := h.WriteMember("Move", 1); !errors.As(err, &unsupported) {
		t.Errorf("write method: %v", err)
	}

	var unknown *UnknownMemberError
	if _, err := h.ReadMember("Z"); !errors.As(err, &unknown) || unknown.Name != "Z" {
		t.Errorf("read Z: %v", err)
	}
	if err := h.RemoveMember("X"); !errors.As(err, &unsupported) {
		t.Errorf("RemoveMember: %v", err)
	}
}

func TestBoundMethod(t *testing.T) {
	e := newEngine(t, nil)
	p := &Point{X: 1, Y: 1}
	h := hostOf(t, e, p)

	if !h.IsMemberInvocable("Move") || h.IsMemberInvocable("X") {
		t.Error("invocability mismatch")
	}
	v, err := h.ReadMember("Move")
	if err != nil {
		t.Fatal(err)
	}
	bm, ok := v.(*BoundMethod)
	if !ok {
		t.Fatalf("Move read as %T", v)
	}
	if _, err := bm.Execute(int32(2), int32(-4)); err != nil {
		t.Fatal(err)
	}
	if p.X != 3 || p.Y != -3 {
		t.Errorf("point = %+v", p)
	}
	if n, err := h.InvokeMember(t.Context(), "Norm1"); err != nil || n != int64(6) {
		t.Errorf("Norm1 = %v, %v", n, err)
	}
	if sigs := bm.Signatures(); len(sigs) != 1 {
		t.Errorf("signatures = %v", sigs)
	}
}

func TestValueReceiverFieldsReadOnly(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, Point{X: 4})
	if h.IsMemberModifiable("X") {
		t.Error("field of a struct value is modifiable")
	}
	if h.HasMember("Move") {
		t.Error("pointer method visible on struct value")
	}
	if v, _ := h.ReadMember("X"); v != int32(4) {
		t.Errorf("X = %v", v)
	}
}

func TestStaticView(t *testing.T) {
	e := newEngine(t, nil)
	count := 0
	err := e.Register(ClassOf[*Point]().
		Named("Point").
		Constructor(func(x, y int32) *Point { return &Point{X: x, Y: y} }).
		Const("Origin", "0,0").
		StaticField("Count", &count).
		Nested(reflect.TypeFor[Printer]()))
	if err != nil {
		t.Fatal(err)
	}
	s, err := e.StaticView(reflect.TypeFor[*Point]())
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsStatic() || !s.IsInstantiable() {
		t.Fatal("static view not instantiable")
	}
	if got, want := s.MemberKeys(), []string{"Count", "Origin", "Printer"}; !slices.Equal(got, want) {
		t.Errorf("static keys = %v, want %v", got, want)
	}

	v, err := s.Instantiate(int32(3), int32(4))
	if err != nil {
		t.Fatal(err)
	}
	pt, ok := Unwrap(v)
	if !ok || pt.(*Point).X != 3 || pt.(*Point).Y != 4 {
		t.Errorf("instance = %v", v)
	}

	if v, _ := s.ReadMember("Origin"); v != "0,0" {
		t.Errorf("Origin = %v", v)
	}
	if s.IsMemberModifiable("Origin") {
		t.Error("constant is modifiable")
	}
	if err := s.WriteMember("Count", int32(5)); err != nil || count != 5 {
		t.Errorf("write Count: %v (count %d)", err, count)
	}

	nested, err := s.ReadMember("Printer")
	if err != nil {
		t.Fatal(err)
	}
	if nh, ok := nested.(*HostObject); !ok || !nh.IsStatic() || nh.Class().Type.Go != reflect.TypeFor[Printer]() {
		t.Errorf("nested = %v", nested)
	}

	cls, err := s.ReadMember("class")
	if err != nil {
		t.Fatal(err)
	}
	ch := cls.(*HostObject)
	if c, ok := ch.Value().(*ClassDesc); !ok || c.Name != "Point" {
		t.Fatalf("class = %v", ch.Value())
	}
	back, err := ch.ReadMember("static")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Identical(back) {
		t.Error("class.static is not the static view")
	}

	inst := hostOf(t, e, &Point{})
	if _, err := inst.Instantiate(); err == nil {
		t.Error("instance view instantiated")
	}
}

func TestHostArrays(t *testing.T) {
	e := newEngine(t, nil)
	s := []int{1, 2, 3}
	h := hostOf(t, e, s)

	if !h.Capabilities().Has(CapArray) || h.ArraySize() != 3 {
		t.Fatalf("caps %v size %d", h.Capabilities(), h.ArraySize())
	}
	if v, err := h.ReadElement(1); err != nil || v != 2 {
		t.Errorf("element 1 = %v, %v", v, err)
	}
	if err := h.WriteElement(0, int32(9)); err != nil || s[0] != 9 {
		t.Errorf("write: %v (%v)", err, s)
	}
	if v, err := h.ReadMember("length"); err != nil || v != 3 {
		t.Errorf("length = %v, %v", v, err)
	}

	var idx *InvalidIndexError
	if _, err := h.ReadElement(3); !errors.As(err, &idx) || idx.Size != 3 {
		t.Errorf("read out of range: %v", err)
	}
	if err := h.WriteElement(-1, 0); !errors.As(err, &idx) {
		t.Errorf("write out of range: %v", err)
	}
	var cerr *ConversionError
	if err := h.WriteElement(0, "xy"); !errors.As(err, &cerr) {
		t.Errorf("write string into []int: %v", err)
	}

	fixed := hostOf(t, e, [2]string{"a", "b"})
	if v, _ := fixed.ReadElement(1); v != "b" {
		t.Errorf("fixed[1] = %v", v)
	}
	var unsupported *UnsupportedMessageError
	if err := fixed.WriteElement(0, "z"); !errors.As(err, &unsupported) {
		t.Errorf("write into array value: %v", err)
	}

	p := DefaultPolicy()
	p.ArrayAccess = false
	off := hostOf(t, newEngine(t, p), []int{1})
	if off.Capabilities().Has(CapArray) || off.HasMember("length") {
		t.Error("array access off but array protocol exposed")
	}
}

func TestHostHashes(t *testing.T) {
	e := newEngine(t, nil)
	m := map[string]int{"b": 2, "a": 1}
	h := hostOf(t, e, m)

	if h.HashSize() != 2 {
		t.Fatalf("size %d", h.HashSize())
	}
	keys, err := h.HashKeys()
	if err != nil || !reflect.DeepEqual(keys, []any{"a", "b"}) {
		t.Errorf("keys = %v, %v", keys, err)
	}
	if v, ok, err := h.ReadHashValue("b"); err != nil || !ok || v != 2 {
		t.Errorf("b = %v %v %v", v, ok, err)
	}
	if _, ok, err := h.ReadHashValue(true); ok || err != nil {
		t.Errorf("unconvertible key found=%v err=%v", ok, err)
	}
	if err := h.WriteHashEntry("c", int64(3)); err != nil || m["c"] != 3 {
		t.Errorf("write: %v (%v)", err, m)
	}
	if removed, err := h.RemoveHashEntry("a"); err != nil || !removed {
		t.Errorf("remove: %v %v", removed, err)
	}
	if _, present := m["a"]; present {
		t.Error("a still present")
	}

	nums := hostOf(t, e, map[int]string{10: "x", 2: "y", 33: "z"})
	keys, _ = nums.HashKeys()
	if !reflect.DeepEqual(keys, []any{2, 10, 33}) {
		t.Errorf("int keys = %v", keys)
	}
}

func TestHostIterator(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, []string{"a", "b"})
	it, err := h.Iterator()
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if more, err := it.HasNext(); err != nil || !more {
			t.Fatalf("HasNext = %v, %v", more, err)
		}
	}
	var got []any
	for {
		v, err := it.Next()
		if errors.Is(err, ErrStopIteration) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	if !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("iterated %v", got)
	}
	if more, _ := it.HasNext(); more {
		t.Error("HasNext after end")
	}

	var unsupported *UnsupportedMessageError
	if _, err := hostOf(t, e, &Point{}).Iterator(); !errors.As(err, &unsupported) {
		t.Errorf("iterator on struct: %v", err)
	}
}

func TestHostBuffer(t *testing.T) {
	e := newEngine(t, nil)
	b := make([]byte, 8)
	h := hostOf(t, e, b)
	if !h.HasBuffer() || h.BufferSize() != 8 {
		t.Fatalf("buffer %v size %d", h.HasBuffer(), h.BufferSize())
	}

	if err := h.WriteBufferInt(binary.BigEndian, 0, 0x01020304); err != nil {
		t.Fatal(err)
	}
	if b[0] != 1 || b[3] != 4 {
		t.Errorf("big endian bytes % x", b[:4])
	}
	if v, _ := h.ReadBufferInt(binary.LittleEndian, 0); v != 0x04030201 {
		t.Errorf("little endian read %#x", v)
	}
	if err := h.WriteBufferShort(binary.LittleEndian, 4, -2); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.ReadBufferShort(binary.LittleEndian, 4); v != -2 {
		t.Errorf("short = %d", v)
	}
	if err := h.WriteBufferDouble(binary.BigEndian, 0, 1.5); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.ReadBufferDouble(binary.BigEndian, 0); v != 1.5 {
		t.Errorf("double = %v", v)
	}
	if err := h.WriteBufferByte(7, -1); err != nil || b[7] != 0xff {
		t.Errorf("byte write: %v (%x)", err, b[7])
	}

	var idx *InvalidIndexError
	if _, err := h.ReadBufferLong(binary.BigEndian, 1); !errors.As(err, &idx) {
		t.Errorf("long past end: %v", err)
	}

	p := DefaultPolicy()
	p.BufferAccess = false
	if hostOf(t, newEngine(t, p), []byte{1}).HasBuffer() {
		t.Error("buffer access off but buffer exposed")
	}
}

func TestHostExceptions(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, &Printer{})

	_, err := h.InvokeMember(t.Context(), "Fail", "bad input")
	var hie *HostInvocationError
	if !errors.As(err, &hie) || hie.Panic != nil {
		t.Fatalf("Fail: %v", err)
	}
	if hie.Cause.Error() != "bad input" {
		t.Errorf("cause = %v", hie.Cause)
	}

	x := hostOf(t, e, err)
	if !x.IsException() {
		t.Fatal("wrapped error is not an exception")
	}
	if msg, _ := x.ExceptionMessage(); msg != err.Error() {
		t.Errorf("message = %q", msg)
	}
	cause, _ := x.ExceptionCause()
	ch, ok := cause.(*HostObject)
	if !ok {
		t.Fatalf("cause = %v", cause)
	}
	if msg, _ := ch.ExceptionMessage(); msg != "bad input" {
		t.Errorf("cause message = %q", msg)
	}
	if end, _ := ch.ExceptionCause(); !IsNull(end) {
		t.Errorf("end of chain = %v", end)
	}
	if d, _ := x.ExceptionDetails(); d["cause"] != "bad input" {
		t.Errorf("details = %v", d)
	}
	if x.Throw() != err {
		t.Error("Throw does not return the wrapped error")
	}

	var unsupported *UnsupportedMessageError
	if _, err := h.ExceptionMessage(); !errors.As(err, &unsupported) {
		t.Errorf("message of non-error: %v", err)
	}
}

func TestHostPanicRecovered(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, &Printer{})
	_, err := h.InvokeMember(t.Context(), "Boom")
	var hie *HostInvocationError
	if !errors.As(err, &hie) {
		t.Fatalf("Boom: %v", err)
	}
	if hie.Panic != "boom" {
		t.Errorf("panic = %v", hie.Panic)
	}
	trace, _ := hostOf(t, e, err).ExceptionStackTrace()
	if !slices.ContainsFunc(trace, func(f string) bool { return strings.Contains(f, "Boom") }) {
		t.Errorf("stack lacks the panicking method: %v", trace)
	}
	for _, f := range trace {
		if strings.HasPrefix(f, "runtime.") || strings.HasPrefix(f, "reflect.") {
			t.Errorf("stack keeps %s", f)
		}
	}
}

func TestHostTemporal(t *testing.T) {
	e := newEngine(t, nil)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h := hostOf(t, e, now)
	if !h.Capabilities().Has(CapTemporal) || h.Facets() != FacetDate|FacetTime|FacetZone {
		t.Fatalf("facets = %v", h.Facets())
	}
	if got, _ := h.AsTime(); !got.Equal(now) {
		t.Errorf("AsTime = %v", got)
	}
	var unsupported *UnsupportedMessageError
	if _, err := h.AsDuration(); !errors.As(err, &unsupported) {
		t.Errorf("AsDuration on time: %v", err)
	}

	d := hostOf(t, e, 90*time.Second)
	if got, _ := d.AsDuration(); got != 90*time.Second {
		t.Errorf("AsDuration = %v", got)
	}
	z := hostOf(t, e, time.UTC)
	if z.Facets() != FacetZone {
		t.Errorf("zone facets = %v", z.Facets())
	}
}

func TestIdentical(t *testing.T) {
	e := newEngine(t, nil)
	p := &Point{}
	a, b := hostOf(t, e, p), hostOf(t, e, p)
	if !a.Identical(b) {
		t.Error("same pointer not identical")
	}
	if a.Identical(hostOf(t, e, &Point{})) {
		t.Error("distinct pointers identical")
	}
	if !hostOf(t, e, Point{X: 1}).Identical(hostOf(t, e, Point{X: 1})) {
		t.Error("equal struct values not identical")
	}
	if a.Identical(p) {
		t.Error("host object identical to a bare value")
	}
}

func TestExecuteHostFunc(t *testing.T) {
	e := newEngine(t, nil)
	h := hostOf(t, e, func(a, b int32) int32 { return a + b })
	if !h.IsExecutable() || !h.Capabilities().Has(CapExecutable) {
		t.Fatal("func is not executable")
	}
	if v, err := h.Execute(int32(2), int64(3)); err != nil || v != int32(5) {
		t.Errorf("Execute = %v, %v", v, err)
	}
	var arity *ArityError
	if _, err := h.Execute(int32(1)); !errors.As(err, &arity) {
		t.Errorf("short call: %v", err)
	}
}

type Node struct {
	Name string
	Next *Node
}

func TestDisplay(t *testing.T) {
	n := &Node{Name: "a"}
	n.Next = n
	if got, want := displayShort(n), `&interop.Node{Name: "a", Next: <cycle>}`; got != want {
		t.Errorf("cycle = %s, want %s", got, want)
	}
	deep := [][][][]int{{{{1}}}}
	if got := displayShort(deep); got != "[[[...]]]" {
		t.Errorf("deep = %s", got)
	}
	if got := displayShort([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}); got != "[0, 1, 2, 3, 4, 5, 6, 7, ...]" {
		t.Errorf("wide = %s", got)
	}
	if got := displayShort(nil); got != "null" {
		t.Errorf("nil = %s", got)
	}
	if got := displayShort(map[string]int{"b": 2, "a": 1}); got != `{"a": 1, "b": 2}` {
		t.Errorf("map = %s", got)
	}
}

type Account struct {
	ID      string `host:"export"`
	Balance int64  `host:"export,readonly"`
	Owner   string
}

func (a *Account) Deposit(n int64) { a.Balance += n }
func (a *Account) Close()          {}

func TestAnnotatedVisibility(t *testing.T) {
	p := DefaultPolicy()
	p.Visibility = Annotated
	p.ExportMethods(reflect.TypeFor[*Account](), "Deposit")
	e := newEngine(t, p)
	acct := &Account{ID: "a1", Owner: "ann"}
	h := hostOf(t, e, acct)

	if got, want := h.MemberKeys(), []string{"Balance", "Deposit", "ID"}; !slices.Equal(got, want) {
		t.Errorf("MemberKeys = %v, want %v", got, want)
	}
	var unknown *UnknownMemberError
	if _, err := h.ReadMember("Owner"); !errors.As(err, &unknown) {
		t.Errorf("read unannotated field: %v", err)
	}
	if _, err := h.InvokeMember(t.Context(), "Close"); !errors.As(err, &unknown) {
		t.Errorf("invoke unexported method: %v", err)
	}
	if _, err := h.InvokeMember(t.Context(), "Deposit", int32(5)); err != nil || acct.Balance != 5 {
		t.Errorf("Deposit: %v (balance %d)", err, acct.Balance)
	}

	open := hostOf(t, newEngine(t, nil), acct)
	if got, want := open.MemberKeys(), []string{"Balance", "Close", "Deposit", "ID", "Owner"}; !slices.Equal(got, want) {
		t.Errorf("public MemberKeys = %v, want %v", got, want)
	}
}
