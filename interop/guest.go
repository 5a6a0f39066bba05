package interop

import (
	"context"
	"math/big"
	"reflect"
	"time"
)

// ---------------------------------------------------------------------------
// Guest protocol
// ---------------------------------------------------------------------------
//
// Guest values are plain Go values: nil, Null, Undefined, bool, any numeric
// kind, string, *big.Int, or objects implementing one or more of the
// capability interfaces below. Host values handed to the guest come back as
// *HostObject or as a host-implemented proxy.

// NullValue is the guest null. Undefined is a distinct NullValue that
// converts exactly like Null.
type NullValue struct {
	undefined bool
}

var (
	Null      = NullValue{}
	Undefined = NullValue{undefined: true}
)

func (n NullValue) String() string {
	if n.undefined {
		return "undefined"
	}
	return "null"
}

// ArrayLike is a guest value with indexed elements.
type ArrayLike interface {
	ArraySize() int64
	ReadElement(index int64) (any, error)
}

// WritableArray is an ArrayLike whose elements can be replaced.
type WritableArray interface {
	ArrayLike
	WriteElement(index int64, v any) error
}

// MemberBearing is a guest value with named members.
type MemberBearing interface {
	MemberKeys() []string
	HasMember(name string) bool
	ReadMember(name string) (any, error)
}

// WritableMembers is a MemberBearing whose members can be assigned.
type WritableMembers interface {
	MemberBearing
	WriteMember(name string, v any) error
}

// Executable is a guest value that can be called.
type Executable interface {
	Execute(args ...any) (any, error)
}

// ContextExecutable is implemented by executables that accept the caller's
// context, which carries the nested call depth.
type ContextExecutable interface {
	ExecuteContext(ctx context.Context, args ...any) (any, error)
}

// Instantiable is a guest value that can construct new instances.
type Instantiable interface {
	Instantiate(args ...any) (any, error)
}

// Iterable is a guest value that can produce an Iterator.
type Iterable interface {
	Iterator() (Iterator, error)
}

// Iterator is a guest iterator. Next returns ErrStopIteration when the
// sequence is exhausted.
type Iterator interface {
	HasNext() (bool, error)
	Next() (any, error)
}

// HashLike is a guest value holding key/value entries with arbitrary keys.
type HashLike interface {
	HashSize() int64
	ReadHashValue(key any) (any, bool, error)
	HashKeys() ([]any, error)
}

// Facets says which temporal components a Temporal value carries.
type Facets uint8

const (
	FacetDate Facets = 1 << iota
	FacetTime
	FacetZone
	FacetDuration
)

// Instant reports whether the facets pin down a point on the time line.
func (f Facets) Instant() bool {
	return f&(FacetDate|FacetTime|FacetZone) == FacetDate|FacetTime|FacetZone
}

// Temporal is a guest date, time, zone or duration.
type Temporal interface {
	Facets() Facets
	// AsTime returns the date and time-of-day in the value's zone, or UTC
	// when the value has none.
	AsTime() (time.Time, error)
	AsDuration() (time.Duration, error)
}

// ErrorLike is a guest exception. Guest executables report failures by
// returning one; it crosses host frames unchanged.
type ErrorLike interface {
	error
	Exception() any
}

// DynamicCapabilities narrows the statically implemented capabilities of a
// guest value at run time.
type DynamicCapabilities interface {
	Capabilities() Caps
}

// ---------------------------------------------------------------------------
// Capabilities
// ---------------------------------------------------------------------------

// Caps is a bit set of guest capabilities.
type Caps uint16

const (
	CapNull Caps = 1 << iota
	CapBoolean
	CapNumber
	CapString
	CapArray
	CapMembers
	CapExecutable
	CapInstantiable
	CapIterable
	CapIterator
	CapHash
	CapTemporal
	CapHost
	CapProxy
)

// Has reports whether all of want are present.
func (c Caps) Has(want Caps) bool {
	return c&want == want
}

// CapabilitiesOf computes the guest capabilities of v.
func CapabilitiesOf(v any) Caps {
	if IsNull(v) {
		return CapNull
	}
	switch x := v.(type) {
	case *HostObject:
		return CapHost | x.caps()
	case *proxyValue:
		return CapProxy | x.caps()
	case bool:
		return CapBoolean
	case string:
		return CapString
	case *big.Int:
		return CapNumber
	}
	if isNumberKind(reflect.TypeOf(v).Kind()) {
		return CapNumber
	}
	var c Caps
	if _, ok := v.(ArrayLike); ok {
		c |= CapArray
	}
	if _, ok := v.(MemberBearing); ok {
		c |= CapMembers
	}
	if _, ok := v.(Executable); ok {
		c |= CapExecutable
	}
	if _, ok := v.(Instantiable); ok {
		c |= CapInstantiable
	}
	if _, ok := v.(Iterable); ok {
		c |= CapIterable
	}
	if _, ok := v.(Iterator); ok {
		c |= CapIterator
	}
	if _, ok := v.(HashLike); ok {
		c |= CapHash
	}
	if _, ok := v.(Temporal); ok {
		c |= CapTemporal
	}
	if d, ok := v.(DynamicCapabilities); ok {
		c &= d.Capabilities()
	}
	return c
}

// IsNull reports whether v is a guest null: nil, Null, Undefined, or a nil
// pointer, map, slice, func or interface.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(NullValue); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// executeGuest calls an executable, handing it ctx when it accepts one.
func executeGuest(ctx context.Context, fn Executable, args []any) (any, error) {
	if ce, ok := fn.(ContextExecutable); ok {
		return ce.ExecuteContext(ctx, args...)
	}
	return fn.Execute(args...)
}
