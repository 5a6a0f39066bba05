package interop

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Guest implementations of host types
// ---------------------------------------------------------------------------
//
// Go cannot mint method sets at run time, so a guest object implements a Go
// interface through an AdapterFactory registered for that interface, and
// implements a hook struct by having its exported func fields filled with
// calls into the guest. Func types are synthesized with reflect.MakeFunc.

// maxAdapterTypes bounds the number of types one adapter may implement.
const maxAdapterTypes = 65535

// AdapterFactory builds a host value implementing an interface on top of a
// guest object. A typical factory returns a small struct whose methods
// forward to p.Call or CallAs.
type AdapterFactory func(p *GuestProxy) (any, error)

// GuestProxy gives adapter code access to the guest object it stands for.
type GuestProxy struct {
	e      *Engine
	ctx    context.Context
	target any
}

// Target returns the guest object.
func (p *GuestProxy) Target() any { return p.target }

// Has reports whether the guest can answer a call to name.
func (p *GuestProxy) Has(name string) bool {
	_, err := p.method(name)
	return err == nil
}

// Call invokes the guest member name, or the guest itself when it is a
// bare executable, and returns the result as a plain host value.
func (p *GuestProxy) Call(name string, args ...any) (any, error) {
	res, err := p.invoke(name, args)
	if err != nil {
		return nil, err
	}
	return p.e.toObject(p.ctx, res)
}

// CallAs is Call with the result converted to T.
func CallAs[T any](p *GuestProxy, name string, args ...any) (T, error) {
	var zero T
	res, err := p.invoke(name, args)
	if err != nil {
		return zero, err
	}
	rt := reflect.TypeFor[T]()
	rv, err := p.e.convert(p.ctx, res, TypeOf(rt), nil)
	if err != nil {
		return zero, err
	}
	out := reflect.New(rt)
	out.Elem().Set(rv)
	return *(out.Interface().(*T)), nil
}

func (p *GuestProxy) invoke(name string, args []any) (any, error) {
	fn, err := p.method(name)
	if err != nil {
		return nil, err
	}
	wrapped := make([]any, len(args))
	for i, a := range args {
		wrapped[i] = p.e.Wrap(a)
	}
	return p.e.callGuest(p.ctx, fn, wrapped)
}

// read returns the guest member backing a host name.
func (p *GuestProxy) read(name string) (any, bool, error) {
	mb, ok := p.target.(MemberBearing)
	if !ok || !CapabilitiesOf(p.target).Has(CapMembers) {
		return nil, false, nil
	}
	for _, n := range guestNames(name) {
		if mb.HasMember(n) {
			v, err := mb.ReadMember(n)
			return v, true, err
		}
	}
	return nil, false, nil
}

func (p *GuestProxy) method(name string) (Executable, error) {
	v, found, err := p.read(name)
	if err != nil {
		return nil, err
	}
	if found {
		if fn, ok := v.(Executable); ok && CapabilitiesOf(v).Has(CapExecutable) {
			return fn, nil
		}
		return nil, &UnsupportedMessageError{Receiver: typeNameOf(v), Message: "execute " + name}
	}
	if fn, ok := p.target.(Executable); ok && CapabilitiesOf(p.target).Has(CapExecutable) {
		return fn, nil
	}
	return nil, &UnknownMemberError{Type: typeNameOf(p.target), Name: name}
}

// guestNames lists the spellings a Go member name may have on the guest
// side: as written, then with a lower-case first letter.
func guestNames(name string) []string {
	r, size := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(r) {
		return []string{name}
	}
	return []string{name, string(unicode.ToLower(r)) + name[size:]}
}

// ---------------------------------------------------------------------------
// Adapter classes
// ---------------------------------------------------------------------------

// hookField is one exported field of a hook struct.
type hookField struct {
	index []int
	name  string
	typ   reflect.Type
}

// adapterClass is the validated, cached recipe for implementing a set of
// host types. It is immutable once built.
type adapterClass struct {
	key     string
	types   []reflect.Type
	base    reflect.Type // hook struct (not pointer), nil for interfaces
	factory AdapterFactory
	hooks   []hookField
}

type adapterCache struct {
	mu      sync.RWMutex
	classes map[string]*adapterClass
}

func newAdapterCache() *adapterCache {
	return &adapterCache{classes: make(map[string]*adapterClass)}
}

func (e *Engine) adapterFor(types []reflect.Type) (*adapterClass, error) {
	key := e.types.key(types)
	e.adapters.mu.RLock()
	c := e.adapters.classes[key]
	e.adapters.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	v, err, _ := e.group.Do("adapter:"+key, func() (any, error) {
		e.adapters.mu.RLock()
		c := e.adapters.classes[key]
		e.adapters.mu.RUnlock()
		if c != nil {
			return c, nil
		}
		c, err := e.buildAdapter(key, types)
		if err != nil {
			return nil, err
		}
		e.adapters.mu.Lock()
		e.adapters.classes[key] = c
		e.adapters.mu.Unlock()
		e.log.Debugf("generated adapter for %s", typeList(types))
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*adapterClass), nil
}

func (e *Engine) buildAdapter(key string, types []reflect.Type) (*adapterClass, error) {
	fail := func(format string, args ...any) error {
		return &AdapterError{Types: typeNames(types), Reason: fmt.Sprintf(format, args...)}
	}
	if len(types) == 0 {
		return nil, fail("no types given")
	}
	if len(types) > maxAdapterTypes {
		return nil, fail("%d types exceed the limit of %d", len(types), maxAdapterTypes)
	}
	c := &adapterClass{key: key, types: types}
	var ifaces []reflect.Type
	for _, rt := range types {
		if !TypeOf(rt).Exported() {
			return nil, fail("%s is not exported", rt)
		}
		st := rt
		if st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		switch {
		case rt.Kind() == reflect.Interface:
			if rt.NumMethod() == 0 {
				return nil, fail("%s has no methods to implement", rt)
			}
			for i := 0; i < rt.NumMethod(); i++ {
				if !rt.Method(i).IsExported() {
					return nil, fail("%s has unexported method %s", rt, rt.Method(i).Name)
				}
			}
			ifaces = append(ifaces, rt)
		case st.Kind() == reflect.Struct:
			if c.base != nil {
				return nil, fail("at most one struct type may be implemented, got %s and %s", c.base, st)
			}
			if hookCount(st) == 0 {
				return nil, fail("%s is final: it has no func fields", st)
			}
			if !e.policy.implementable[rt] && !e.policy.implementable[st] {
				return nil, fail("%s is not implementable under the access policy", st)
			}
			c.base = st
		default:
			return nil, fail("%s cannot be implemented", rt)
		}
	}
	if c.base != nil {
		for _, iface := range ifaces {
			if !reflect.PointerTo(c.base).Implements(iface) {
				return nil, fail("%s does not implement %s", c.base, iface)
			}
		}
		for _, f := range reflect.VisibleFields(c.base) {
			if f.IsExported() && !f.Anonymous {
				c.hooks = append(c.hooks, hookField{index: f.Index, name: f.Name, typ: f.Type})
			}
		}
		return c, nil
	}
	c.factory = e.policy.factories[ifaces[0]]
	if c.factory == nil {
		return nil, fail("no adapter factory registered for %s", ifaces[0])
	}
	return c, nil
}

// hookCount counts the exported func fields of a struct type.
func hookCount(st reflect.Type) int {
	if st.Kind() != reflect.Struct {
		return 0
	}
	n := 0
	for _, f := range reflect.VisibleFields(st) {
		if f.IsExported() && f.Type.Kind() == reflect.Func {
			n++
		}
	}
	return n
}

// instantiate builds a host value of type target backed by guest.
func (e *Engine) instantiate(ctx context.Context, c *adapterClass, guest any, target reflect.Type) (reflect.Value, error) {
	p := &GuestProxy{e: e, ctx: detach(ctx), target: guest}
	if c.base == nil {
		inst, err := c.factory(p)
		if err != nil {
			return reflect.Value{}, &AdapterError{Types: typeNames(c.types), Reason: err.Error()}
		}
		if inst == nil {
			return reflect.Value{}, &AdapterError{Types: typeNames(c.types), Reason: "factory returned nil"}
		}
		it := reflect.TypeOf(inst)
		for _, rt := range c.types {
			if !it.Implements(rt) {
				return reflect.Value{}, &AdapterError{Types: typeNames(c.types),
					Reason: fmt.Sprintf("factory result %s does not implement %s", it, rt)}
			}
		}
		return assignTo(reflect.ValueOf(inst), target), nil
	}

	ptr := reflect.New(c.base)
	for _, h := range c.hooks {
		field := ptr.Elem().FieldByIndex(h.index)
		if h.typ.Kind() == reflect.Func {
			if !p.Has(h.name) {
				continue
			}
			name := h.name
			field.Set(e.makeFunc(p.ctx, h.typ, func(args []any) (any, error) {
				return p.invoke(name, args)
			}))
			continue
		}
		v, found, err := p.read(h.name)
		if err != nil {
			return reflect.Value{}, err
		}
		if !found {
			continue
		}
		fv, err := e.convert(p.ctx, v, TypeOf(h.typ), nil)
		if err != nil {
			return reflect.Value{}, &ConversionError{Value: guest, Target: TypeOf(c.base), Reason: "field " + h.name, Cause: err}
		}
		field.Set(fv)
	}
	if target.Kind() == reflect.Pointer || target.Kind() == reflect.Interface {
		return assignTo(ptr, target), nil
	}
	return ptr.Elem(), nil
}

// implement converts a guest object to a single implementable host type.
func (e *Engine) implement(ctx context.Context, guest any, t *Type) (reflect.Value, error) {
	c, err := e.adapterFor([]reflect.Type{t.Go})
	if err != nil {
		return reflect.Value{}, err
	}
	return e.instantiate(ctx, c, guest, t.Go)
}

// Implement builds one host value implementing all of types on top of a
// guest object: at most one hook struct plus any number of interfaces.
// The result is a pointer to the struct, or the factory's value.
func (e *Engine) Implement(ctx context.Context, guest any, types ...reflect.Type) (any, error) {
	c, err := e.adapterFor(types)
	if err != nil {
		return nil, err
	}
	target := anyType
	if c.base != nil {
		target = reflect.PointerTo(c.base)
	}
	rv, err := e.instantiate(ctx, c, guest, target)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// ---------------------------------------------------------------------------
// Function proxies
// ---------------------------------------------------------------------------

func (e *Engine) funcProxy(ctx context.Context, fn Executable, ft reflect.Type) reflect.Value {
	ctx = detach(ctx)
	return e.makeFunc(ctx, ft, func(args []any) (any, error) {
		return e.callGuest(ctx, fn, args)
	})
}

// makeFunc synthesizes a Go func of type ft whose arguments are wrapped
// for the guest and whose guest result is converted to ft's results.
func (e *Engine) makeFunc(ctx context.Context, ft reflect.Type, call func(args []any) (any, error)) reflect.Value {
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		args := make([]any, 0, len(in))
		for i, a := range in {
			if ft.IsVariadic() && i == len(in)-1 {
				for j := 0; j < a.Len(); j++ {
					args = append(args, e.wrapValue(a.Index(j)))
				}
				continue
			}
			args = append(args, e.wrapValue(a))
		}
		res, err := call(args)
		return e.funcResults(ctx, ft, res, err)
	})
}

// funcResults maps a guest result onto the results of ft. Without a
// trailing error result, failures panic in the host caller.
func (e *Engine) funcResults(ctx context.Context, ft reflect.Type, res any, err error) []reflect.Value {
	n := ft.NumOut()
	out := make([]reflect.Value, n)
	hasErr := n > 0 && ft.Out(n-1) == errorType
	vals := n
	if hasErr {
		vals--
	}
	fail := func(err error) []reflect.Value {
		if !hasErr {
			panic(err)
		}
		for i := 0; i < vals; i++ {
			out[i] = reflect.Zero(ft.Out(i))
		}
		out[n-1] = reflect.ValueOf(&err).Elem()
		return out
	}
	if err != nil {
		return fail(err)
	}
	switch vals {
	case 0:
	case 1:
		rv, err := e.convert(ctx, res, TypeOf(ft.Out(0)), nil)
		if err != nil {
			return fail(err)
		}
		out[0] = rv
	default:
		arr, ok := res.(ArrayLike)
		if !ok || arr.ArraySize() < int64(vals) {
			return fail(&ConversionError{Value: res, Target: TypeOf(ft), Reason: fmt.Sprintf("expected %d results", vals)})
		}
		for i := 0; i < vals; i++ {
			el, err := arr.ReadElement(int64(i))
			if err != nil {
				return fail(err)
			}
			rv, err := e.convert(ctx, el, TypeOf(ft.Out(i)), nil)
			if err != nil {
				return fail(err)
			}
			out[i] = rv
		}
	}
	if hasErr {
		out[n-1] = reflect.Zero(errorType)
	}
	return out
}

func typeNames(types []reflect.Type) []string {
	out := make([]string, len(types))
	for i, rt := range types {
		out[i] = rt.String()
	}
	return out
}

func typeList(types []reflect.Type) string {
	return fmt.Sprint(typeNames(types))
}
