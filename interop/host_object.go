package interop

import (
	"context"
	"reflect"
	"sync"
)

// ---------------------------------------------------------------------------
// Host objects
// ---------------------------------------------------------------------------

// HostObject is a host value as seen by the guest. The instance view
// exposes a value's methods and fields; the static view exposes a class's
// constructors, static members and nested types.
type HostObject struct {
	e      *Engine
	value  any
	class  *ClassDesc // static views only
	static bool

	iterMu sync.Mutex
	peeked bool
	peek   any
	more   bool
}

// Value returns the wrapped host value, or the *ClassDesc of a static view.
func (h *HostObject) Value() any { return h.hostValue() }

// IsStatic reports whether h is a static view.
func (h *HostObject) IsStatic() bool { return h.static }

func (h *HostObject) hostValue() any {
	if h.static {
		return h.class
	}
	return h.value
}

// Class returns the descriptor of the viewed type.
func (h *HostObject) Class() *ClassDesc {
	if h.static {
		return h.class
	}
	c, err := h.e.Class(reflect.TypeOf(h.value))
	if err != nil {
		h.e.log.Warningf("describe %T: %v", h.value, err)
		return emptyClass(reflect.TypeOf(h.value))
	}
	return c
}

func emptyClass(rt reflect.Type) *ClassDesc {
	b := newTableBuilder()
	return &ClassDesc{Name: rt.String(), Type: TypeOf(rt), instance: b.finish(), static: newTableBuilder().finish()}
}

func (h *HostObject) recv() reflect.Value {
	return reflect.ValueOf(h.hostValue())
}

func (h *HostObject) caps() Caps {
	c := CapMembers
	if h.static {
		if h.class.constructors != nil {
			c |= CapInstantiable
		}
		return c
	}
	p := h.e.policy
	switch reflect.ValueOf(h.value).Kind() {
	case reflect.Slice, reflect.Array:
		if p.ArrayAccess {
			c |= CapArray
		}
		if p.IterableAccess {
			c |= CapIterable
		}
	case reflect.Map:
		if p.MapAccess {
			c |= CapHash
		}
	case reflect.Func:
		c |= CapExecutable
	}
	if _, ok := h.value.(List); ok {
		if p.ListAccess {
			c |= CapArray
		}
		if p.IterableAccess {
			c |= CapIterable
		}
	}
	if _, ok := h.value.(Map); ok && p.MapAccess {
		c |= CapHash
	}
	if _, ok := h.value.(HostIterable); ok && p.IterableAccess {
		c |= CapIterable
	}
	if _, ok := h.value.(HostIterator); ok && p.IteratorAccess {
		c |= CapIterator
	}
	if temporalFacets(h.value) != 0 {
		c |= CapTemporal
	}
	return c
}

// Capabilities reports the guest protocols h supports.
func (h *HostObject) Capabilities() Caps { return CapHost | h.caps() }

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// MemberKeys lists the enumerable member names.
func (h *HostObject) MemberKeys() []string {
	return h.Class().MemberKeys(h.static)
}

// HasMember reports whether name resolves to a field, method or nested type.
func (h *HostObject) HasMember(name string) bool {
	return h.IsMemberReadable(name)
}

// ReadMember reads a field, or returns a method bound to h, or the static
// view of a nested type.
func (h *HostObject) ReadMember(name string) (any, error) {
	c := h.Class()
	if f := c.LookupField(name, h.static); f != nil {
		rv, err := f.read(h.e, h.recv())
		if err != nil {
			return nil, err
		}
		return h.e.wrapValue(rv), nil
	}
	if m, _ := c.LookupMethod(name, h.static); m != nil {
		return &BoundMethod{h: h, m: m}, nil
	}
	if h.static {
		if nt, ok := c.NestedType(name); ok {
			return h.e.StaticView(nt)
		}
	}
	return nil, &UnknownMemberError{Type: c.Name, Name: name}
}

// WriteMember assigns a field.
func (h *HostObject) WriteMember(name string, v any) error {
	return h.WriteMemberContext(context.Background(), name, v)
}

// WriteMemberContext is WriteMember with the caller's context.
func (h *HostObject) WriteMemberContext(ctx context.Context, name string, v any) error {
	c := h.Class()
	f := c.LookupField(name, h.static)
	if f == nil {
		if m, _ := c.LookupMethod(name, h.static); m != nil {
			return &UnsupportedMessageError{Receiver: c.Name, Message: "write to method " + name}
		}
		return &UnknownMemberError{Type: c.Name, Name: name}
	}
	return f.write(ctx, h.e, h.recv(), v)
}

// RemoveMember always fails: host members cannot be removed.
func (h *HostObject) RemoveMember(name string) error {
	return &UnsupportedMessageError{Receiver: h.Class().Name, Message: "remove member " + name}
}

func (h *HostObject) IsMemberReadable(name string) bool {
	c := h.Class()
	if c.LookupField(name, h.static) != nil {
		return true
	}
	if m, _ := c.LookupMethod(name, h.static); m != nil {
		return true
	}
	if h.static {
		_, ok := c.NestedType(name)
		return ok
	}
	return false
}

func (h *HostObject) IsMemberModifiable(name string) bool {
	f := h.Class().LookupField(name, h.static)
	return f != nil && !f.Final
}

func (h *HostObject) IsMemberInvocable(name string) bool {
	c := h.Class()
	if m, _ := c.LookupMethod(name, h.static); m != nil {
		return true
	}
	f := c.LookupField(name, h.static)
	return f != nil && f.Type.Kind == KindFunction
}

// IsMemberInternal reports whether name reaches a member only through its
// signature or mangled name.
func (h *HostObject) IsMemberInternal(name string) bool {
	_, internal := h.Class().LookupMethod(name, h.static)
	return internal
}

// MemberSignature lists the signatures name resolves to.
func (h *HostObject) MemberSignature(name string) ([]string, error) {
	c := h.Class()
	m, _ := c.LookupMethod(name, h.static)
	if m == nil {
		return nil, &UnknownMemberError{Type: c.Name, Name: name}
	}
	return signatureList(candidatesOf(m)), nil
}

// InvokeMember calls a method with guest arguments, resolving overloads
// without a call-site cache.
func (h *HostObject) InvokeMember(ctx context.Context, name string, args ...any) (any, error) {
	return h.InvokeMemberAt(ctx, nil, name, args...)
}

// InvokeMemberAt calls a method through site's overload cache.
func (h *HostObject) InvokeMemberAt(ctx context.Context, site *CallSite, name string, args ...any) (any, error) {
	c := h.Class()
	if m, _ := c.LookupMethod(name, h.static); m != nil {
		return h.e.invoke(ctx, site, m, h.recvFor(), args)
	}
	if f := c.LookupField(name, h.static); f != nil {
		v, err := h.ReadMember(name)
		if err != nil {
			return nil, err
		}
		fn, ok := v.(Executable)
		if !ok {
			return nil, &UnsupportedMessageError{Receiver: c.Name, Message: "invoke non-executable field " + name}
		}
		return h.e.callGuest(ctx, fn, args)
	}
	return nil, &UnknownMemberError{Type: c.Name, Name: name}
}

// recvFor is the receiver handed to methods: none for static members.
func (h *HostObject) recvFor() reflect.Value {
	if h.static {
		return reflect.Value{}
	}
	return reflect.ValueOf(h.value)
}

// ---------------------------------------------------------------------------
// Instantiation and execution
// ---------------------------------------------------------------------------

func (h *HostObject) IsInstantiable() bool {
	return h.static && h.class.constructors != nil
}

func (h *HostObject) Instantiate(args ...any) (any, error) {
	return h.InstantiateContext(context.Background(), args...)
}

// InstantiateContext calls the class's constructors with overload
// resolution.
func (h *HostObject) InstantiateContext(ctx context.Context, args ...any) (any, error) {
	if !h.IsInstantiable() {
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "instantiate"}
	}
	return h.e.invoke(ctx, nil, h.class.constructors, reflect.Value{}, args)
}

func (h *HostObject) IsExecutable() bool {
	return !h.static && reflect.ValueOf(h.value).Kind() == reflect.Func
}

func (h *HostObject) Execute(args ...any) (any, error) {
	return h.ExecuteContext(context.Background(), args...)
}

// ExecuteContext calls a wrapped host func with guest arguments.
func (h *HostObject) ExecuteContext(ctx context.Context, args ...any) (any, error) {
	if !h.IsExecutable() {
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "execute"}
	}
	rv := reflect.ValueOf(h.value)
	d, err := newReflectDescriptor("call", rv.Type().String(), rv, false)
	if err != nil {
		return nil, err
	}
	return h.e.invoke(ctx, nil, d, reflect.Value{}, args)
}

// BoundMethod is a host method read as a member value. Executing it calls
// the method on the object it was read from.
type BoundMethod struct {
	h *HostObject
	m Member
}

// Signatures lists the overloads the method resolves among.
func (b *BoundMethod) Signatures() []string { return signatureList(candidatesOf(b.m)) }

func (b *BoundMethod) Execute(args ...any) (any, error) {
	return b.ExecuteContext(context.Background(), args...)
}

func (b *BoundMethod) ExecuteContext(ctx context.Context, args ...any) (any, error) {
	return b.h.e.invoke(ctx, nil, b.m, b.h.recvFor(), args)
}

func (b *BoundMethod) String() string {
	return "method " + b.h.Class().Name + "." + b.m.MemberName()
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// Identical reports whether other views the same host value: the same
// pointer, map, slice or func, or an equal comparable value.
func (h *HostObject) Identical(other any) bool {
	o, ok := other.(*HostObject)
	if !ok {
		return false
	}
	if h.static || o.static {
		return h.static == o.static && h.class.Type == o.class.Type
	}
	return sameValue(h.value, o.value)
}

func sameValue(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	}
	return ra.Comparable() && ra.Equal(rb)
}

func (h *HostObject) String() string {
	if h.static {
		return h.class.String()
	}
	return display(h.value, 0, nil)
}
