package interop

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// TargetMapping is an embedder-supplied conversion from guest values to one
// host type, consulted at its Priority tier.
type TargetMapping struct {
	Name     string
	Target   reflect.Type
	Priority Tier
	// AcceptsNull lets the mapping see guest null; otherwise null never
	// reaches Accepts or Convert.
	AcceptsNull bool
	// Accepts is the applicability predicate. Nil accepts every value.
	Accepts func(v any) bool
	Convert func(v any) (any, error)
}

// NewMapping builds a TargetMapping with a typed converter.
func NewMapping[T any](name string, priority Tier, accepts func(any) bool, convert func(any) (T, error)) TargetMapping {
	return TargetMapping{
		Name:     name,
		Target:   reflect.TypeFor[T](),
		Priority: priority,
		Accepts:  accepts,
		Convert: func(v any) (any, error) {
			return convert(v)
		},
	}
}

func (m *TargetMapping) applies(v any) bool {
	if IsNull(v) && !m.AcceptsNull {
		return false
	}
	return m.Accepts == nil || m.Accepts(v)
}

// mappingTable indexes mappings by target type, each list in ascending
// priority with registration order kept among equal priorities.
type mappingTable struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]TargetMapping
}

func newMappingTable(ms []TargetMapping) *mappingTable {
	t := &mappingTable{byType: make(map[reflect.Type][]TargetMapping)}
	for _, m := range ms {
		t.add(m)
	}
	return t
}

func (t *mappingTable) add(m TargetMapping) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := append(t.byType[m.Target], m)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
	t.byType[m.Target] = list
}

func (t *mappingTable) has(rt reflect.Type) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byType[rt]) > 0
}

func (t *mappingTable) forType(rt reflect.Type) []TargetMapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byType[rt]
}

// canMap reports whether a mapping with priority in [lo, hi] accepts v.
func (t *mappingTable) canMap(v any, target *Type, lo, hi Tier) bool {
	if lo > hi {
		return false
	}
	list := t.forType(target.Go)
	for i := range list {
		m := &list[i]
		if m.Priority < lo {
			continue
		}
		if m.Priority > hi {
			break
		}
		if m.applies(v) {
			return true
		}
	}
	return false
}

// convert runs the first applicable mapping with priority in [lo, hi].
// ok is false when no mapping applied.
func (t *mappingTable) convert(v any, target *Type, lo, hi Tier) (reflect.Value, bool, error) {
	if lo > hi {
		return reflect.Value{}, false, nil
	}
	list := t.forType(target.Go)
	for i := range list {
		m := &list[i]
		if m.Priority < lo {
			continue
		}
		if m.Priority > hi {
			break
		}
		if !m.applies(v) {
			continue
		}
		out, err := m.Convert(v)
		if err != nil {
			return reflect.Value{}, true, &ConversionError{Value: v, Target: target, Reason: "mapping " + m.Name, Cause: err}
		}
		rv, err := fitResult(out, target)
		if err != nil {
			return reflect.Value{}, true, &ConversionError{Value: v, Target: target, Reason: "mapping " + m.Name, Cause: err}
		}
		return rv, true, nil
	}
	return reflect.Value{}, false, nil
}

// fitResult turns a converter's output into a value of the target type.
func fitResult(out any, target *Type) (reflect.Value, error) {
	if out == nil {
		if target.Nullable() {
			return reflect.Zero(target.Go), nil
		}
		return reflect.Value{}, fmt.Errorf("nil result for non-nullable %s", target)
	}
	rv := reflect.ValueOf(out)
	if rv.Type().AssignableTo(target.Go) {
		if rv.Type() != target.Go {
			c := reflect.New(target.Go).Elem()
			c.Set(rv)
			return c, nil
		}
		return rv, nil
	}
	if rv.Type().ConvertibleTo(target.Go) && rv.Kind() == target.Go.Kind() {
		return rv.Convert(target.Go), nil
	}
	return reflect.Value{}, fmt.Errorf("result of type %s is not a %s", rv.Type(), target)
}
