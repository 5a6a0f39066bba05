package interop

import (
	"math/big"
	"reflect"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Semantic host types
// ---------------------------------------------------------------------------

// Kind classifies a host type by the role it plays in conversion, which is
// coarser than reflect.Kind: named and unnamed types of the same shape share
// a Kind, and a handful of well-known library types get a Kind of their own.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBoolean
	KindByte   // int8
	KindShort  // int16
	KindChar   // uint16, an unsigned 16-bit code unit
	KindInt    // int32
	KindLong   // int64, int
	KindUByte  // uint8
	KindUInt   // uint32
	KindULong  // uint64, uint, uintptr
	KindFloat  // float32
	KindDouble // float64
	KindBoxed  // pointer to a primitive
	KindString
	KindBigInteger
	KindObject      // empty interface
	KindGuestHandle // one of the guest capability interfaces
	KindArray       // slice or fixed array
	KindList
	KindMap
	KindGoMap
	KindIterable
	KindIterator
	KindFunction
	KindInterface
	KindStruct
	KindInstant
	KindDuration
	KindZone
	KindOther
)

var kindNames = [...]string{
	KindInvalid:     "invalid",
	KindBoolean:     "boolean",
	KindByte:        "byte",
	KindShort:       "short",
	KindChar:        "char",
	KindInt:         "int",
	KindLong:        "long",
	KindUByte:       "ubyte",
	KindUInt:        "uint",
	KindULong:       "ulong",
	KindFloat:       "float",
	KindDouble:      "double",
	KindBoxed:       "boxed",
	KindString:      "string",
	KindBigInteger:  "biginteger",
	KindObject:      "object",
	KindGuestHandle: "guest",
	KindArray:       "array",
	KindList:        "list",
	KindMap:         "map",
	KindGoMap:       "gomap",
	KindIterable:    "iterable",
	KindIterator:    "iterator",
	KindFunction:    "function",
	KindInterface:   "interface",
	KindStruct:      "struct",
	KindInstant:     "instant",
	KindDuration:    "duration",
	KindZone:        "zone",
	KindOther:       "other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k is one of the numeric, boolean or char kinds.
func (k Kind) IsPrimitive() bool {
	return k >= KindBoolean && k <= KindDouble
}

// IsNumeric reports whether k is a primitive number kind (char included).
func (k Kind) IsNumeric() bool {
	return k >= KindByte && k <= KindDouble
}

// Type is the semantic view of a host type. Descriptors hold Types, never
// raw reflect handles; the reflect.Type is kept for building values.
type Type struct {
	Name string // as written in signatures, e.g. "int32", "[]string", "*bank.Account"
	Kind Kind
	Go   reflect.Type
	Elem *Type // boxed primitive, array element, map value, pointer-to-struct target
	Key  *Type // map key
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// Primitive returns the primitive kind behind t: t's own kind for
// primitives, the element kind for boxed types, KindInvalid otherwise.
func (t *Type) Primitive() Kind {
	switch {
	case t == nil:
		return KindInvalid
	case t.Kind.IsPrimitive():
		return t.Kind
	case t.Kind == KindBoxed && t.Elem != nil:
		return t.Elem.Kind
	}
	return KindInvalid
}

// IsPrimitiveLike reports whether conversions to t depend on the value
// rather than only on the value's type.
func (t *Type) IsPrimitiveLike() bool {
	switch t.Kind {
	case KindBoxed, KindString, KindBigInteger:
		return true
	}
	return t.Kind.IsPrimitive()
}

// Nullable reports whether the host null (zero value) is acceptable.
func (t *Type) Nullable() bool {
	return !t.Kind.IsPrimitive() && t.Kind != KindString && t.Kind != KindInstant &&
		t.Kind != KindDuration && !(t.Kind == KindStruct && t.Go.Kind() == reflect.Struct) &&
		t.Go.Kind() != reflect.Array
}

// Exported reports whether the type is visible outside its package. Unnamed
// composite types are exported when their parts are.
func (t *Type) Exported() bool {
	if t.Go.Name() != "" {
		if t.Go.PkgPath() == "" {
			return true
		}
		r := t.Go.Name()[0]
		return r >= 'A' && r <= 'Z'
	}
	if t.Elem != nil && t.Elem != t {
		return t.Elem.Exported()
	}
	return true
}

// ---------------------------------------------------------------------------
// Type table
// ---------------------------------------------------------------------------

var (
	bigIntType   = reflect.TypeFor[*big.Int]()
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	locationType = reflect.TypeFor[*time.Location]()
	anyType      = reflect.TypeFor[any]()
	errorType    = reflect.TypeFor[error]()

	listType         = reflect.TypeFor[List]()
	mapType          = reflect.TypeFor[Map]()
	hostIterableType = reflect.TypeFor[HostIterable]()
	hostIteratorType = reflect.TypeFor[HostIterator]()
)

// guestHandleTypes are the parameter types through which host code receives
// guest values directly rather than a converted copy.
var guestHandleTypes = map[reflect.Type]bool{
	reflect.TypeFor[ArrayLike]():       true,
	reflect.TypeFor[WritableArray]():   true,
	reflect.TypeFor[MemberBearing]():   true,
	reflect.TypeFor[WritableMembers](): true,
	reflect.TypeFor[Executable]():      true,
	reflect.TypeFor[Instantiable]():    true,
	reflect.TypeFor[Iterable]():        true,
	reflect.TypeFor[Iterator]():        true,
	reflect.TypeFor[HashLike]():        true,
	reflect.TypeFor[Temporal]():        true,
}

var (
	typeTable sync.Map // reflect.Type -> *Type
	typeMu    sync.Mutex
)

// TypeOf returns the semantic type for rt. Types are interned, so pointer
// equality on *Type is type identity.
func TypeOf(rt reflect.Type) *Type {
	if rt == nil {
		rt = anyType
	}
	if t, ok := typeTable.Load(rt); ok {
		return t.(*Type)
	}
	typeMu.Lock()
	defer typeMu.Unlock()
	if t, ok := typeTable.Load(rt); ok {
		return t.(*Type)
	}
	pending := make(map[reflect.Type]*Type)
	t := buildType(rt, pending)
	for k, v := range pending {
		typeTable.Store(k, v)
	}
	return t
}

// TypeFor is TypeOf for a static type parameter.
func TypeFor[T any]() *Type {
	return TypeOf(reflect.TypeFor[T]())
}

func buildType(rt reflect.Type, pending map[reflect.Type]*Type) *Type {
	if t, ok := typeTable.Load(rt); ok {
		return t.(*Type)
	}
	if t, ok := pending[rt]; ok {
		return t
	}
	t := &Type{Name: rt.String(), Go: rt}
	pending[rt] = t
	t.Kind = classify(rt)
	switch t.Kind {
	case KindBoxed, KindArray:
		t.Elem = buildType(rt.Elem(), pending)
	case KindGoMap:
		t.Key = buildType(rt.Key(), pending)
		t.Elem = buildType(rt.Elem(), pending)
	case KindStruct:
		if rt.Kind() == reflect.Pointer {
			t.Elem = buildType(rt.Elem(), pending)
		}
	}
	return t
}

func classify(rt reflect.Type) Kind {
	switch rt {
	case bigIntType:
		return KindBigInteger
	case timeType:
		return KindInstant
	case durationType:
		return KindDuration
	case locationType:
		return KindZone
	case listType:
		return KindList
	case mapType:
		return KindMap
	case hostIterableType:
		return KindIterable
	case hostIteratorType:
		return KindIterator
	}
	if k := primitiveKind(rt.Kind()); k != KindInvalid {
		return k
	}
	switch rt.Kind() {
	case reflect.String:
		return KindString
	case reflect.Interface:
		if guestHandleTypes[rt] {
			return KindGuestHandle
		}
		if rt.NumMethod() == 0 {
			return KindObject
		}
		return KindInterface
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Map:
		return KindGoMap
	case reflect.Func:
		return KindFunction
	case reflect.Struct:
		return KindStruct
	case reflect.Pointer:
		if primitiveKind(rt.Elem().Kind()) != KindInvalid {
			return KindBoxed
		}
		if rt.Elem().Kind() == reflect.Struct {
			return KindStruct
		}
	}
	return KindOther
}

func primitiveKind(k reflect.Kind) Kind {
	switch k {
	case reflect.Bool:
		return KindBoolean
	case reflect.Int8:
		return KindByte
	case reflect.Int16:
		return KindShort
	case reflect.Uint16:
		return KindChar
	case reflect.Int32:
		return KindInt
	case reflect.Int64, reflect.Int:
		return KindLong
	case reflect.Uint8:
		return KindUByte
	case reflect.Uint32:
		return KindUInt
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return KindULong
	case reflect.Float32:
		return KindFloat
	case reflect.Float64:
		return KindDouble
	}
	return KindInvalid
}

// ---------------------------------------------------------------------------
// Assignability
// ---------------------------------------------------------------------------

// widens reports whether from widens to to without an explicit conversion.
// The lattice is byte→short→int→long→float→double with char as an unsigned
// 16-bit integer, extended with the unsigned kinds.
func widens(from, to Kind) bool {
	switch from {
	case KindByte:
		return to == KindShort || to == KindInt || to == KindLong || to == KindFloat || to == KindDouble
	case KindUByte:
		return to == KindShort || to == KindChar || to == KindInt || to == KindUInt ||
			to == KindLong || to == KindULong || to == KindFloat || to == KindDouble
	case KindShort:
		return to == KindInt || to == KindLong || to == KindFloat || to == KindDouble
	case KindChar:
		return to == KindInt || to == KindUInt || to == KindLong || to == KindULong ||
			to == KindFloat || to == KindDouble
	case KindInt:
		return to == KindLong || to == KindFloat || to == KindDouble
	case KindUInt:
		return to == KindLong || to == KindULong || to == KindFloat || to == KindDouble
	case KindLong, KindULong:
		return to == KindFloat || to == KindDouble
	case KindFloat:
		return to == KindDouble
	}
	return false
}

// IsAssignableFrom reports whether a value of type from can stand where to
// is declared, counting primitive widening and treating a primitive and its
// boxed form as assignable both ways. It is the specificity relation used
// to rank overloads.
func IsAssignableFrom(to, from *Type) bool {
	if to == from {
		return true
	}
	if from.Go.AssignableTo(to.Go) {
		return true
	}
	fromP, toP := from.Primitive(), to.Primitive()
	switch {
	case fromP != KindInvalid && toP != KindInvalid:
		if fromP == toP {
			// a primitive and its boxed form are interchangeable
			return true
		}
		return widens(fromP, toP)
	case fromP == KindChar && to.Kind == KindString:
		return true
	case fromP != KindInvalid && to.Kind == KindBigInteger:
		return fromP != KindFloat && fromP != KindDouble && fromP != KindBoolean
	}
	return false
}
