package interop

import (
	"math/big"
	"reflect"
	"time"
)

// ---------------------------------------------------------------------------
// Guest/host boundary
// ---------------------------------------------------------------------------

// Wrap prepares a host value for the guest. Nil becomes Null, primitives
// and strings pass as themselves, values already speaking the guest
// protocol pass unchanged, views over guest values yield the guest value
// back, proxies get a proxy wrapper, and anything else becomes a
// *HostObject.
func (e *Engine) Wrap(v any) any {
	if v == nil {
		return Null
	}
	return e.wrapValue(reflect.ValueOf(v))
}

func (e *Engine) wrapValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return Null
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return Null
		}
	}
	if !rv.CanInterface() {
		return Null
	}
	v := rv.Interface()
	switch x := v.(type) {
	case NullValue, *HostObject, *proxyValue, *ScopedValue:
		return v
	case guestBacked:
		return x.guestValue()
	case *big.Int:
		if e.policy.BigIntegerNumberAccess {
			return x
		}
		return e.hostObject(v)
	case time.Duration:
		return e.hostObject(v)
	}
	switch k := rv.Kind(); {
	case k == reflect.Bool:
		return rv.Bool()
	case k == reflect.String:
		return rv.String()
	case isNumberKind(k):
		return v
	}
	if isProxy(v) {
		return &proxyValue{e: e, proxy: v}
	}
	if speaksGuest(v) {
		return v
	}
	return e.hostObject(v)
}

// speaksGuest reports whether v implements part of the guest protocol and
// so already is a guest value.
func speaksGuest(v any) bool {
	switch v.(type) {
	case ArrayLike, MemberBearing, Executable, Instantiable, Iterable, Iterator, HashLike, Temporal, ErrorLike:
		return true
	}
	return false
}

func (e *Engine) hostObject(v any) *HostObject {
	return &HostObject{e: e, value: v}
}

// Unwrap returns the host value behind a *HostObject or proxy wrapper. The
// boolean is false for values that did not come from the host.
func Unwrap(v any) (any, bool) {
	switch x := v.(type) {
	case *HostObject:
		return x.hostValue(), true
	case *proxyValue:
		return x.proxy, true
	}
	return nil, false
}

// IsHostValue reports whether v is a host value seen from the guest.
func IsHostValue(v any) bool {
	_, ok := Unwrap(v)
	return ok
}

// StaticView returns the static view of rt: constructors, static members
// and nested types.
func (e *Engine) StaticView(rt reflect.Type) (*HostObject, error) {
	c, err := e.Class(rt)
	if err != nil {
		return nil, err
	}
	return e.staticView(c), nil
}

func (e *Engine) staticView(c *ClassDesc) *HostObject {
	return &HostObject{e: e, class: c, static: true}
}
