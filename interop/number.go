package interop

import (
	"math"
	"math/big"
	"reflect"
	"unicode/utf16"
)

// numeric is a guest number normalized to one of four representations.
type numeric struct {
	form numForm
	i    int64
	u    uint64
	f    float64
	b    *big.Int
	src  reflect.Kind // the Go kind the number arrived as
}

type numForm uint8

const (
	formInt numForm = iota
	formUint
	formFloat
	formBig
)

// numberOf extracts a guest number. Host-wrapped primitives count as
// numbers too.
func numberOf(v any) (numeric, bool) {
	if h, ok := v.(*HostObject); ok && !h.static {
		v = h.value
	}
	if b, ok := v.(*big.Int); ok {
		if b == nil {
			return numeric{}, false
		}
		return numeric{form: formBig, b: b, src: reflect.Pointer}, true
	}
	if v == nil {
		return numeric{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numeric{form: formInt, i: rv.Int(), src: rv.Kind()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return numeric{form: formUint, u: rv.Uint(), src: rv.Kind()}, true
	case reflect.Float32, reflect.Float64:
		return numeric{form: formFloat, f: rv.Float(), src: rv.Kind()}, true
	}
	return numeric{}, false
}

// asBig returns the exact integer value, or nil for non-integral numbers.
func (n numeric) asBig() *big.Int {
	switch n.form {
	case formInt:
		return big.NewInt(n.i)
	case formUint:
		return new(big.Int).SetUint64(n.u)
	case formBig:
		return n.b
	case formFloat:
		if math.IsNaN(n.f) || math.IsInf(n.f, 0) || n.f != math.Trunc(n.f) || isNegZero(n.f) {
			return nil
		}
		b, _ := big.NewFloat(n.f).Int(nil)
		return b
	}
	return nil
}

func isNegZero(f float64) bool {
	return f == 0 && math.Signbit(f)
}

var kindBounds = map[Kind][2]*big.Int{
	KindByte:  {big.NewInt(math.MinInt8), big.NewInt(math.MaxInt8)},
	KindShort: {big.NewInt(math.MinInt16), big.NewInt(math.MaxInt16)},
	KindChar:  {big.NewInt(0), big.NewInt(math.MaxUint16)},
	KindInt:   {big.NewInt(math.MinInt32), big.NewInt(math.MaxInt32)},
	KindLong:  {big.NewInt(math.MinInt64), big.NewInt(math.MaxInt64)},
	KindUByte: {big.NewInt(0), big.NewInt(math.MaxUint8)},
	KindUInt:  {big.NewInt(0), big.NewInt(math.MaxUint32)},
	KindULong: {big.NewInt(0), new(big.Int).SetUint64(math.MaxUint64)},
}

func inBounds(b *big.Int, k Kind) bool {
	r, ok := kindBounds[k]
	return ok && b.Cmp(r[0]) >= 0 && b.Cmp(r[1]) <= 0
}

// fitsExactly reports whether n is representable in k without any loss.
func (n numeric) fitsExactly(k Kind) bool {
	switch k {
	case KindFloat:
		switch n.form {
		case formFloat:
			return math.IsNaN(n.f) || float64(float32(n.f)) == n.f
		default:
			b := n.asBig()
			f, acc := new(big.Float).SetInt(b).Float32()
			return acc == big.Exact && !math.IsInf(float64(f), 0)
		}
	case KindDouble:
		switch n.form {
		case formFloat:
			return true
		default:
			b := n.asBig()
			f, acc := new(big.Float).SetInt(b).Float64()
			return acc == big.Exact && !math.IsInf(f, 0)
		}
	case KindChar:
		// numbers only become chars exactly when they already were one
		return n.src == reflect.Uint16
	}
	if !k.IsNumeric() {
		return false
	}
	b := n.asBig()
	return b != nil && inBounds(b, k)
}

// narrowed converts n to k allowing truncation of fractions and rounding of
// floats, but never overflow. The result is an int64, uint64 or float64
// ready for reflect conversion.
func (n numeric) narrowed(k Kind) (any, bool) {
	switch k {
	case KindFloat:
		var f float64
		if n.form == formFloat {
			f = n.f
		} else {
			f, _ = new(big.Float).SetInt(n.asBig()).Float64()
		}
		if !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, false
		}
		return float64(float32(f)), true
	case KindDouble:
		if n.form == formFloat {
			return n.f, true
		}
		f, _ := new(big.Float).SetInt(n.asBig()).Float64()
		return f, !math.IsInf(f, 0)
	}
	if !k.IsNumeric() {
		return nil, false
	}
	var b *big.Int
	if n.form == formFloat {
		if math.IsNaN(n.f) || math.IsInf(n.f, 0) {
			return nil, false
		}
		b, _ = big.NewFloat(math.Trunc(n.f)).Int(nil)
	} else {
		b = n.asBig()
	}
	if !inBounds(b, k) {
		return nil, false
	}
	switch k {
	case KindUByte, KindUInt, KindULong, KindChar:
		return b.Uint64(), true
	}
	return b.Int64(), true
}

// exact returns the exact value of n for a kind it fits.
func (n numeric) exact(k Kind) any {
	switch k {
	case KindFloat, KindDouble:
		if n.form == formFloat {
			return n.f
		}
		f, _ := new(big.Float).SetInt(n.asBig()).Float64()
		return f
	case KindUByte, KindUInt, KindULong, KindChar:
		return n.asBig().Uint64()
	}
	return n.asBig().Int64()
}

// singleCodeUnit returns the UTF-16 code unit of a one-unit string.
func singleCodeUnit(s string) (uint16, bool) {
	units := utf16.Encode([]rune(s))
	if len(units) != 1 {
		return 0, false
	}
	return units[0], true
}

// primitiveValue builds a reflect.Value of type rt from an int64, uint64,
// float64 or bool.
func primitiveValue(raw any, rt reflect.Type) reflect.Value {
	v := reflect.New(rt).Elem()
	switch x := raw.(type) {
	case bool:
		v.SetBool(x)
	case int64:
		switch rt.Kind() {
		case reflect.Float32, reflect.Float64:
			v.SetFloat(float64(x))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			v.SetUint(uint64(x))
		default:
			v.SetInt(x)
		}
	case uint64:
		switch rt.Kind() {
		case reflect.Float32, reflect.Float64:
			v.SetFloat(float64(x))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			v.SetInt(int64(x))
		default:
			v.SetUint(x)
		}
	case float64:
		switch rt.Kind() {
		case reflect.Float32, reflect.Float64:
			v.SetFloat(x)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			v.SetInt(int64(x))
		default:
			v.SetUint(uint64(x))
		}
	}
	return v
}
