package interop

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
)

// ---------------------------------------------------------------------------
// Conversion ladder
// ---------------------------------------------------------------------------
//
// canConvert and convert consult the same rules in the same order: target
// mappings in [HIGHEST, STRICT], the built-in strict rules, mappings at
// LOOSE, then the remaining built-in rules and the mappings in
// [COERCE, LOWEST] ordered by tier, a built-in rule winning a tie.
// canConvert(v, t, tier) is monotone in tier.

var objectType = TypeOf(anyType)

// canConvert reports whether v converts to t at tier or any earlier tier.
// For arrays and Go maps only the container is checked, not its elements.
func (e *Engine) canConvert(v any, t *Type, tier Tier) bool {
	if e.mappings.canMap(v, t, TierHighest, minTier(TierStrict, tier)) {
		return true
	}
	if tier < TierStrict {
		return false
	}
	bt, ok := e.builtinTier(v, t)
	if ok && bt == TierStrict {
		return true
	}
	if tier < TierLoose {
		return false
	}
	if e.mappings.canMap(v, t, TierLoose, TierLoose) {
		return true
	}
	if ok && bt <= tier {
		return true
	}
	return e.mappings.canMap(v, t, TierCoerce, tier)
}

// convert converts v to t at the earliest tier that applies. When scope is
// non-nil, guest objects handed to host code as views or proxies are
// registered with it.
func (e *Engine) convert(ctx context.Context, v any, t *Type, scope *CallScope) (reflect.Value, error) {
	if rv, ok, err := e.mappings.convert(v, t, TierHighest, TierStrict); ok {
		return rv, err
	}
	bt, found := e.builtinTier(v, t)
	if found && bt == TierStrict {
		return e.convertBuiltin(ctx, v, t, bt, scope)
	}
	if rv, ok, err := e.mappings.convert(v, t, TierLoose, TierLoose); ok {
		return rv, err
	}
	if found {
		// Mappings at an earlier tier than the built-in rule take precedence.
		if bt > TierCoerce {
			if rv, ok, err := e.mappings.convert(v, t, TierCoerce, bt-1); ok {
				return rv, err
			}
		}
		return e.convertBuiltin(ctx, v, t, bt, scope)
	}
	if rv, ok, err := e.mappings.convert(v, t, TierCoerce, TierLowest); ok {
		return rv, err
	}
	return reflect.Value{}, &ConversionError{Value: v, Target: t, Reason: "no conversion applies"}
}

// Coerce converts a guest value to the host type target exactly as argument
// conversion does, returning the host value.
func (e *Engine) Coerce(v any, target reflect.Type) (any, error) {
	rv, err := e.convert(context.Background(), v, TypeOf(target), nil)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// CanCoerce reports whether v converts to target at tier or earlier.
func (e *Engine) CanCoerce(v any, target reflect.Type, tier Tier) bool {
	return e.canConvert(v, TypeOf(target), tier)
}

// CoerceTo is Coerce with a static target type.
func CoerceTo[T any](e *Engine, v any) (T, error) {
	var zero T
	rt := reflect.TypeFor[T]()
	rv, err := e.convert(context.Background(), v, TypeOf(rt), nil)
	if err != nil {
		return zero, err
	}
	out := reflect.New(rt)
	out.Elem().Set(rv)
	return *(out.Interface().(*T)), nil
}

// ---------------------------------------------------------------------------
// Built-in rules
// ---------------------------------------------------------------------------

var guestHandleCaps = map[reflect.Type]Caps{
	reflect.TypeFor[ArrayLike]():       CapArray,
	reflect.TypeFor[WritableArray]():   CapArray,
	reflect.TypeFor[MemberBearing]():   CapMembers,
	reflect.TypeFor[WritableMembers](): CapMembers,
	reflect.TypeFor[Executable]():      CapExecutable,
	reflect.TypeFor[Instantiable]():    CapInstantiable,
	reflect.TypeFor[Iterable]():        CapIterable,
	reflect.TypeFor[Iterator]():        CapIterator,
	reflect.TypeFor[HashLike]():        CapHash,
	reflect.TypeFor[Temporal]():        CapTemporal,
}

// builtinTier returns the earliest tier at which a built-in rule converts
// v to t.
func (e *Engine) builtinTier(v any, t *Type) (Tier, bool) {
	if IsNull(v) {
		return TierStrict, t.Nullable()
	}
	if h, ok := v.(*HostObject); ok {
		if hv := h.hostValue(); hv != nil && reflect.TypeOf(hv).AssignableTo(t.Go) {
			return TierStrict, true
		}
	}
	if tier, ok := e.kindTier(v, t); ok {
		return tier, true
	}
	if p, ok := v.(*proxyValue); ok && reflect.TypeOf(p.proxy).AssignableTo(t.Go) {
		return TierHostProxy, true
	}
	return 0, false
}

func (e *Engine) kindTier(v any, t *Type) (Tier, bool) {
	x := unwrapHost(v)
	if k := t.Primitive(); k != KindInvalid {
		return e.primitiveTier(x, k)
	}
	_, isHost := v.(*HostObject)
	_, isProxy := v.(*proxyValue)
	if !isHost && !isProxy && t.Kind != KindObject && t.Kind != KindGuestHandle &&
		reflect.TypeOf(v).AssignableTo(t.Go) {
		return TierStrict, true
	}
	caps := CapabilitiesOf(v)
	switch t.Kind {
	case KindString:
		if _, ok := stringOf(x); ok {
			return TierStrict, true
		}
	case KindBigInteger:
		if !e.policy.BigIntegerNumberAccess {
			break
		}
		if n, ok := e.numberOf(x); ok {
			if n.form != formFloat {
				return TierStrict, true
			}
			if n.asBig() != nil {
				return TierCoerce, true
			}
		}
	case KindObject:
		if isProxy {
			return TierLoose, true
		}
		if isGuestPrimitive(x) {
			return TierStrict, true
		}
		return TierLoose, true
	case KindGuestHandle:
		if !isHost && !isProxy && reflect.TypeOf(v).Implements(t.Go) && caps.Has(guestHandleCaps[t.Go]) {
			return TierStrict, true
		}
	case KindArray:
		if caps.Has(CapArray) {
			return TierCoerce, true
		}
	case KindList:
		if e.policy.ListAccess && caps.Has(CapArray) {
			return TierLoose, true
		}
	case KindMap:
		if e.policy.MapAccess && (caps.Has(CapHash) || caps.Has(CapMembers) && !isHost) {
			return TierLoose, true
		}
	case KindGoMap:
		if caps.Has(CapHash) {
			return TierCoerce, true
		}
		if caps.Has(CapMembers) && !isHost && (t.Key.Kind == KindString || t.Key.Kind == KindObject) {
			return TierCoerce, true
		}
	case KindIterable:
		if e.policy.IterableAccess && (caps.Has(CapIterable) || caps.Has(CapArray)) {
			return TierLoose, true
		}
	case KindIterator:
		if e.policy.IteratorAccess && caps.Has(CapIterator) {
			return TierLoose, true
		}
	case KindFunction:
		if caps.Has(CapExecutable) {
			return TierFunctionProxy, true
		}
	case KindInterface:
		if _, ok := e.policy.factories[t.Go]; !ok || isHost || isProxy {
			break
		}
		if caps.Has(CapExecutable) && t.Go.NumMethod() == 1 {
			return TierFunctionProxy, true
		}
		if caps.Has(CapMembers) {
			return TierObjectProxyIface, true
		}
	case KindStruct:
		if !isHost && !isProxy && caps.Has(CapMembers) && e.implementable(t) {
			return TierObjectProxyClass, true
		}
	case KindInstant:
		if tv, ok := v.(Temporal); ok && caps.Has(CapTemporal) && tv.Facets().Instant() {
			return TierLoose, true
		}
	case KindDuration:
		if tv, ok := v.(Temporal); ok && caps.Has(CapTemporal) && tv.Facets()&FacetDuration != 0 {
			return TierLoose, true
		}
	case KindZone:
		if tv, ok := v.(Temporal); ok && caps.Has(CapTemporal) && tv.Facets()&FacetZone != 0 {
			return TierLoose, true
		}
	}
	return 0, false
}

func (e *Engine) primitiveTier(x any, k Kind) (Tier, bool) {
	if x == nil {
		return 0, false
	}
	if k == KindBoolean {
		return TierStrict, reflect.TypeOf(x).Kind() == reflect.Bool
	}
	if n, ok := e.numberOf(x); ok {
		if n.fitsExactly(k) {
			return TierStrict, true
		}
		if _, ok := n.narrowed(k); ok {
			return TierCoerce, true
		}
		return 0, false
	}
	if s, ok := stringOf(x); ok {
		u, ok := singleCodeUnit(s)
		if !ok {
			return 0, false
		}
		if k == KindChar {
			return TierStrict, true
		}
		if _, ok := charNumber(u).narrowed(k); ok {
			return TierCoerce, true
		}
	}
	return 0, false
}

// numberOf is numberOf restricted by policy: *big.Int is an ordinary object
// unless big integer number access is on.
func (e *Engine) numberOf(x any) (numeric, bool) {
	if _, ok := x.(*big.Int); ok && !e.policy.BigIntegerNumberAccess {
		return numeric{}, false
	}
	return numberOf(x)
}

func charNumber(u uint16) numeric {
	return numeric{form: formUint, u: uint64(u), src: reflect.Uint16}
}

func (e *Engine) implementable(t *Type) bool {
	st := t.Go
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	return (e.policy.implementable[t.Go] || e.policy.implementable[st]) && hookCount(st) > 0
}

// ---------------------------------------------------------------------------
// Built-in conversions
// ---------------------------------------------------------------------------

// convertBuiltin performs the built-in conversion of v to t at tier, which
// builtinTier reported as the earliest applicable one.
func (e *Engine) convertBuiltin(ctx context.Context, v any, t *Type, tier Tier, scope *CallScope) (reflect.Value, error) {
	if IsNull(v) {
		return reflect.Zero(t.Go), nil
	}
	if h, ok := v.(*HostObject); ok && tier == TierStrict {
		if hv := h.hostValue(); hv != nil && reflect.TypeOf(hv).AssignableTo(t.Go) {
			return assignTo(reflect.ValueOf(hv), t.Go), nil
		}
	}
	if p, ok := v.(*proxyValue); ok && (tier == TierHostProxy || t.Kind == KindObject) {
		return assignTo(reflect.ValueOf(p.proxy), t.Go), nil
	}
	x := unwrapHost(v)
	if k := t.Primitive(); k != KindInvalid {
		return e.convertPrimitive(x, t, k)
	}
	if tier == TierStrict && t.Kind != KindObject && t.Kind != KindGuestHandle && reflect.TypeOf(v).AssignableTo(t.Go) {
		return assignTo(reflect.ValueOf(v), t.Go), nil
	}

	fail := func(reason string, cause error) (reflect.Value, error) {
		return reflect.Value{}, &ConversionError{Value: v, Target: t, Reason: reason, Cause: cause}
	}
	switch t.Kind {
	case KindString:
		s, _ := stringOf(x)
		return reflect.ValueOf(s).Convert(t.Go), nil
	case KindBigInteger:
		n, _ := e.numberOf(x)
		if n.form == formBig {
			return reflect.ValueOf(n.b), nil
		}
		return reflect.ValueOf(new(big.Int).Set(n.asBig())), nil
	case KindObject:
		if tier == TierStrict {
			return assignTo(reflect.ValueOf(x), t.Go), nil
		}
		return assignTo(reflect.ValueOf(e.materialize(ctx, v, scope)), t.Go), nil
	case KindGuestHandle:
		return assignTo(reflect.ValueOf(e.scoped(v, scope)), t.Go), nil
	case KindArray:
		return e.copyArray(ctx, v.(ArrayLike), t)
	case KindList:
		return assignTo(reflect.ValueOf(&listView{e: e, ctx: detach(ctx), arr: e.scoped(v, scope).(ArrayLike)}), t.Go), nil
	case KindMap:
		return assignTo(reflect.ValueOf(newMapView(e, ctx, e.scoped(v, scope))), t.Go), nil
	case KindGoMap:
		return e.copyMap(ctx, v, t)
	case KindIterable:
		return assignTo(reflect.ValueOf(&iterableView{e: e, ctx: detach(ctx), src: e.scoped(v, scope)}), t.Go), nil
	case KindIterator:
		it := &iteratorView{e: e, ctx: detach(ctx), it: e.scoped(v, scope).(Iterator)}
		return assignTo(reflect.ValueOf(it), t.Go), nil
	case KindFunction:
		return e.funcProxy(ctx, e.scoped(v, scope).(Executable), t.Go), nil
	case KindInterface:
		return e.implement(ctx, e.scoped(v, scope), t)
	case KindStruct:
		return e.implement(ctx, v, t)
	case KindInstant:
		tm, err := v.(Temporal).AsTime()
		if err != nil {
			return fail("temporal value", err)
		}
		return reflect.ValueOf(tm), nil
	case KindDuration:
		d, err := v.(Temporal).AsDuration()
		if err != nil {
			return fail("temporal value", err)
		}
		return reflect.ValueOf(d), nil
	case KindZone:
		tm, err := v.(Temporal).AsTime()
		if err != nil {
			return fail("temporal value", err)
		}
		return reflect.ValueOf(tm.Location()), nil
	}
	return fail(fmt.Sprintf("no %s conversion", tier), nil)
}

func (e *Engine) convertPrimitive(x any, t *Type, k Kind) (reflect.Value, error) {
	rt := t.Go
	if t.Kind == KindBoxed {
		rt = t.Go.Elem()
	}
	var raw any
	if k == KindBoolean {
		raw = reflect.ValueOf(x).Bool()
	} else {
		n, ok := e.numberOf(x)
		if !ok {
			s, _ := stringOf(x)
			u, _ := singleCodeUnit(s)
			n = charNumber(u)
		}
		if n.fitsExactly(k) {
			raw = n.exact(k)
		} else if raw, ok = n.narrowed(k); !ok {
			return reflect.Value{}, &ConversionError{Value: x, Target: t, Reason: "out of range"}
		}
	}
	pv := primitiveValue(raw, rt)
	if t.Kind != KindBoxed {
		return pv, nil
	}
	ptr := reflect.New(rt)
	ptr.Elem().Set(pv)
	return ptr, nil
}

func (e *Engine) copyArray(ctx context.Context, arr ArrayLike, t *Type) (reflect.Value, error) {
	n := arr.ArraySize()
	var out reflect.Value
	if t.Go.Kind() == reflect.Array {
		if int64(t.Go.Len()) != n {
			return reflect.Value{}, &ConversionError{Value: arr, Target: t,
				Reason: fmt.Sprintf("length %d does not match %d", n, t.Go.Len())}
		}
		out = reflect.New(t.Go).Elem()
	} else {
		out = reflect.MakeSlice(t.Go, int(n), int(n))
	}
	for i := int64(0); i < n; i++ {
		el, err := arr.ReadElement(i)
		if err != nil {
			return reflect.Value{}, err
		}
		ev, err := e.convert(ctx, el, t.Elem, nil)
		if err != nil {
			return reflect.Value{}, &ConversionError{Value: arr, Target: t, Reason: fmt.Sprintf("element %d", i), Cause: err}
		}
		out.Index(int(i)).Set(ev)
	}
	return out, nil
}

func (e *Engine) copyMap(ctx context.Context, v any, t *Type) (reflect.Value, error) {
	out := reflect.MakeMap(t.Go)
	put := func(k, val any) error {
		kv, err := e.convert(ctx, k, t.Key, nil)
		if err != nil {
			return &ConversionError{Value: v, Target: t, Reason: "key", Cause: err}
		}
		vv, err := e.convert(ctx, val, t.Elem, nil)
		if err != nil {
			return &ConversionError{Value: v, Target: t, Reason: fmt.Sprintf("entry %s", displayShort(k)), Cause: err}
		}
		out.SetMapIndex(kv, vv)
		return nil
	}
	if h, ok := v.(HashLike); ok && CapabilitiesOf(v).Has(CapHash) {
		keys, err := h.HashKeys()
		if err != nil {
			return reflect.Value{}, err
		}
		for _, k := range keys {
			val, _, err := h.ReadHashValue(k)
			if err != nil {
				return reflect.Value{}, err
			}
			if err := put(k, val); err != nil {
				return reflect.Value{}, err
			}
		}
		return out, nil
	}
	mb := v.(MemberBearing)
	for _, name := range mb.MemberKeys() {
		val, err := mb.ReadMember(name)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := put(name, val); err != nil {
			return reflect.Value{}, err
		}
	}
	return out, nil
}

// materialize is the LOOSE conversion to a plain object: host values come
// back unwrapped, guest structures become live views, anything else is
// passed through.
func (e *Engine) materialize(ctx context.Context, v any, scope *CallScope) any {
	switch x := v.(type) {
	case *proxyValue:
		return x.proxy
	case *HostObject:
		return x.hostValue()
	}
	if IsNull(v) {
		return nil
	}
	if !isGuestObject(v) {
		return v
	}
	v = e.scoped(v, scope)
	caps := CapabilitiesOf(v)
	p := e.policy
	switch {
	case caps.Has(CapArray) && p.ListAccess:
		return &listView{e: e, ctx: detach(ctx), arr: v.(ArrayLike)}
	case caps.Has(CapExecutable):
		return &GuestFunction{e: e, ctx: detach(ctx), fn: v.(Executable)}
	case (caps.Has(CapHash) || caps.Has(CapMembers)) && p.MapAccess:
		return newMapView(e, ctx, v)
	case caps.Has(CapIterable) && p.IterableAccess:
		return &iterableView{e: e, ctx: detach(ctx), src: v}
	case caps.Has(CapIterator) && p.IteratorAccess:
		return &iteratorView{e: e, ctx: detach(ctx), it: v.(Iterator)}
	case caps.Has(CapTemporal):
		if tv := v.(Temporal); tv.Facets().Instant() {
			if tm, err := tv.AsTime(); err == nil {
				return tm
			}
		}
	}
	return v
}

// toObject converts a guest value read through a view for host code.
func (e *Engine) toObject(ctx context.Context, v any) (any, error) {
	return e.materialize(ctx, v, nil), nil
}

// scoped registers a guest object with scope, returning the scoped handle.
func (e *Engine) scoped(v any, scope *CallScope) any {
	if scope == nil || !isGuestObject(v) {
		return v
	}
	if _, ok := v.(*ScopedValue); ok {
		return v
	}
	return scope.add(v)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func unwrapHost(v any) any {
	if h, ok := v.(*HostObject); ok && !h.static {
		return h.value
	}
	return v
}

func stringOf(x any) (string, bool) {
	if x == nil {
		return "", false
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

func isGuestPrimitive(x any) bool {
	if x == nil {
		return false
	}
	if _, ok := x.(*big.Int); ok {
		return true
	}
	k := reflect.TypeOf(x).Kind()
	return k == reflect.Bool || k == reflect.String || isNumberKind(k)
}

// isGuestObject reports whether v is a guest object rather than a
// primitive, null, or a value that originated on the host side.
func isGuestObject(v any) bool {
	if IsNull(v) || isGuestPrimitive(v) {
		return false
	}
	switch v.(type) {
	case *HostObject, *proxyValue:
		return false
	}
	return true
}

func assignTo(rv reflect.Value, rt reflect.Type) reflect.Value {
	if rv.Type() == rt {
		return rv
	}
	out := reflect.New(rt).Elem()
	out.Set(rv)
	return out
}
