package interop

import (
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Values are rendered for error messages and diagnostics. Nesting past
// displayDepth prints as an ellipsis; reference cycles print as "<cycle>".
const (
	displayDepth = 2
	displayWidth = 8
)

func displayShort(v any) string {
	return display(v, 0, nil)
}

func display(v any, depth int, seen map[uintptr]bool) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case NullValue:
		return x.String()
	case string:
		return strconv.Quote(x)
	case *big.Int:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	case *HostObject:
		if x.static {
			return x.class.String()
		}
		return display(x.value, depth, seen)
	case *proxyValue, *ScopedValue, *ClassDesc:
		return x.(fmt.Stringer).String()
	case error:
		return x.Error()
	case ArrayLike:
		return displayArray(x, depth, seen)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return fmt.Sprint(v)
	case reflect.String:
		return strconv.Quote(rv.String())
	case reflect.Func:
		return "func " + rv.Type().String()
	case reflect.Chan:
		return rv.Type().String()
	}
	if ptr, ok := refOf(rv); ok {
		if seen[ptr] {
			return "<cycle>"
		}
		if seen == nil {
			seen = make(map[uintptr]bool)
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}
	if depth > displayDepth {
		return "..."
	}
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "null"
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
		return "&" + displayReflect(rv.Elem(), depth, seen)
	case reflect.Interface:
		if rv.IsNil() {
			return "null"
		}
		return displayReflect(rv.Elem(), depth, seen)
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return displayReflect(rv, depth, seen)
}

func displayReflect(rv reflect.Value, depth int, seen map[uintptr]bool) string {
	if !rv.CanInterface() {
		return rv.Type().String()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "null"
		}
		parts := make([]string, 0, min(rv.Len(), displayWidth))
		for i := 0; i < rv.Len() && i < displayWidth; i++ {
			parts = append(parts, display(rv.Index(i).Interface(), depth+1, seen))
		}
		return joinParts("[", parts, rv.Len(), "]")
	case reflect.Map:
		if rv.IsNil() {
			return "null"
		}
		keys := rv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return compareKeys(a.Interface(), b.Interface())
		})
		parts := make([]string, 0, min(len(keys), displayWidth))
		for i, k := range keys {
			if i == displayWidth {
				break
			}
			parts = append(parts, display(k.Interface(), depth+1, seen)+": "+display(rv.MapIndex(k).Interface(), depth+1, seen))
		}
		return joinParts("{", parts, len(keys), "}")
	case reflect.Struct:
		rt := rv.Type()
		var parts []string
		for i := 0; i < rt.NumField() && len(parts) < displayWidth; i++ {
			if !rt.Field(i).IsExported() {
				continue
			}
			parts = append(parts, rt.Field(i).Name+": "+display(rv.Field(i).Interface(), depth+1, seen))
		}
		return rt.String() + "{" + strings.Join(parts, ", ") + "}"
	}
	return display(rv.Interface(), depth, seen)
}

func displayArray(a ArrayLike, depth int, seen map[uintptr]bool) string {
	if depth > displayDepth {
		return "..."
	}
	n := a.ArraySize()
	parts := make([]string, 0, min(n, displayWidth))
	for i := int64(0); i < n && i < displayWidth; i++ {
		el, err := a.ReadElement(i)
		if err != nil {
			parts = append(parts, "<error>")
			continue
		}
		parts = append(parts, display(el, depth+1, seen))
	}
	return joinParts("[", parts, int(n), "]")
}

func joinParts(open string, parts []string, total int, close string) string {
	s := strings.Join(parts, ", ")
	if total > len(parts) {
		s += ", ..."
	}
	return open + s + close
}

func refOf(rv reflect.Value) (uintptr, bool) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if !rv.IsNil() {
			return rv.Pointer(), true
		}
	case reflect.Slice:
		if !rv.IsNil() && rv.Len() > 0 {
			return rv.Pointer(), true
		}
	}
	return 0, false
}
