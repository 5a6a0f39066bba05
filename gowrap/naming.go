package gowrap

import (
	"go/types"
	"regexp"
	"strings"

	"github.com/chazu/hostbridge/interop"
)

const interopPath = "github.com/chazu/hostbridge/interop"

var guestHandles = map[string]bool{
	"ArrayLike": true, "WritableArray": true, "MemberBearing": true, "WritableMembers": true,
	"Executable": true, "Instantiable": true, "Iterable": true, "Iterator": true,
	"HashLike": true, "Temporal": true,
}

var aliasSpelling = regexp.MustCompile(`\b(byte|rune|any)\b|interface\{\}`)

// TypeSpelling renders t the way reflect does at run time, so static
// listings and run-time signature lookups agree: package-name qualifiers,
// byte as uint8, rune as int32 and any as "interface {}".
func TypeSpelling(t types.Type) string {
	s := types.TypeString(t, func(p *types.Package) string { return p.Name() })
	return aliasSpelling.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case "byte":
			return "uint8"
		case "rune":
			return "int32"
		}
		return "interface {}"
	})
}

// KindOf classifies a static type into its interop conversion kind.
func KindOf(t types.Type) interop.Kind {
	if k, ok := namedKind(t); ok {
		return k
	}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		if k := basicKind(u.Kind()); k != interop.KindInvalid {
			return k
		}
		if u.Info()&types.IsString != 0 {
			return interop.KindString
		}
	case *types.Interface:
		if named, ok := t.(*types.Named); ok && named.Obj().Pkg() != nil &&
			named.Obj().Pkg().Path() == interopPath && guestHandles[named.Obj().Name()] {
			return interop.KindGuestHandle
		}
		if u.NumMethods() == 0 {
			return interop.KindObject
		}
		return interop.KindInterface
	case *types.Slice, *types.Array:
		return interop.KindArray
	case *types.Map:
		return interop.KindGoMap
	case *types.Signature:
		return interop.KindFunction
	case *types.Struct:
		return interop.KindStruct
	case *types.Pointer:
		if b, ok := u.Elem().Underlying().(*types.Basic); ok && basicKind(b.Kind()) != interop.KindInvalid {
			return interop.KindBoxed
		}
		if _, ok := u.Elem().Underlying().(*types.Struct); ok {
			return interop.KindStruct
		}
	}
	return interop.KindOther
}

func namedKind(t types.Type) (interop.Kind, bool) {
	switch TypeSpelling(t) {
	case "*big.Int":
		return interop.KindBigInteger, isPkg(t, "math/big")
	case "time.Time":
		return interop.KindInstant, isPkg(t, "time")
	case "time.Duration":
		return interop.KindDuration, isPkg(t, "time")
	case "*time.Location":
		return interop.KindZone, isPkg(t, "time")
	case "interop.List":
		return interop.KindList, isPkg(t, interopPath)
	case "interop.Map":
		return interop.KindMap, isPkg(t, interopPath)
	case "interop.HostIterable":
		return interop.KindIterable, isPkg(t, interopPath)
	case "interop.HostIterator":
		return interop.KindIterator, isPkg(t, interopPath)
	}
	return interop.KindInvalid, false
}

func isPkg(t types.Type, path string) bool {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	named, ok := t.(*types.Named)
	return ok && named.Obj().Pkg() != nil && named.Obj().Pkg().Path() == path
}

func basicKind(k types.BasicKind) interop.Kind {
	switch k {
	case types.Bool, types.UntypedBool:
		return interop.KindBoolean
	case types.Int8:
		return interop.KindByte
	case types.Int16:
		return interop.KindShort
	case types.Uint16:
		return interop.KindChar
	case types.Int32:
		return interop.KindInt
	case types.Int, types.Int64:
		return interop.KindLong
	case types.Uint8:
		return interop.KindUByte
	case types.Uint32:
		return interop.KindUInt
	case types.Uint, types.Uint64, types.Uintptr:
		return interop.KindULong
	case types.Float32:
		return interop.KindFloat
	case types.Float64:
		return interop.KindDouble
	}
	return interop.KindInvalid
}

// ParamSpellings returns the signature spelling of each parameter, the
// variadic slot written "...T".
func (c Callable) ParamSpellings() []string {
	out := make([]string, len(c.Params))
	for i, p := range c.Params {
		out[i] = p.Spelling
		if c.Variadic && i == len(c.Params)-1 {
			out[i] = "..." + strings.TrimPrefix(p.Spelling, "[]")
		}
	}
	return out
}

// Signature renders the lookup name `Name(T1,T2)`.
func (c Callable) Signature() string {
	return c.Name + "(" + strings.Join(c.ParamSpellings(), ",") + ")"
}

// MangledName renders the alternate lookup name.
func (c Callable) MangledName() string {
	return interop.Mangle(c.Name, c.ParamSpellings())
}

// Arity returns the minimum and maximum argument counts, max being
// interop.UnboundedArity for variadic callables.
func (c Callable) Arity() (min, max int) {
	if c.Variadic {
		return len(c.Params) - 1, interop.UnboundedArity
	}
	return len(c.Params), len(c.Params)
}

// ScopedParams lists parameter positions whose guest arguments are released
// when the call returns.
func (c Callable) ScopedParams() []int {
	var out []int
	for i, p := range c.Params {
		if scoped(p) {
			out = append(out, i)
		}
	}
	return out
}

func scoped(p Param) bool {
	switch p.Kind {
	case interop.KindObject, interop.KindGuestHandle, interop.KindList, interop.KindMap,
		interop.KindIterable, interop.KindIterator, interop.KindFunction:
		return true
	case interop.KindInterface:
		return !isError(p.Type)
	}
	return false
}
