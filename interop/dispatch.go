package interop

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// ---------------------------------------------------------------------------
// Call depth
// ---------------------------------------------------------------------------

type depthKey struct{}

// CallDepth returns the number of nested host and guest calls recorded in
// ctx.
func CallDepth(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// enter records one more level of nesting, failing once the limit is hit.
func (e *Engine) enter(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	d := CallDepth(ctx)
	if d >= e.policy.MaxCallDepth {
		return ctx, e.exhausted
	}
	return context.WithValue(ctx, depthKey{}, d+1), nil
}

// callGuest calls back into the guest.
func (e *Engine) callGuest(ctx context.Context, fn Executable, args []any) (any, error) {
	ctx, err := e.enter(ctx)
	if err != nil {
		return nil, err
	}
	return executeGuest(ctx, fn, args)
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// invoke resolves and calls a callable member with guest arguments. recv
// is the host receiver, or the zero Value for static members.
func (e *Engine) invoke(ctx context.Context, site *CallSite, m Member, recv reflect.Value, args []any) (any, error) {
	ctx, err := e.enter(ctx)
	if err != nil {
		return nil, err
	}
	sel, err := e.selectFor(site, m, args)
	if err != nil {
		return nil, err
	}
	return e.call(ctx, sel, recv, args)
}

// selectFor picks the overload to call, through site when caching is on.
func (e *Engine) selectFor(site *CallSite, m Member, args []any) (selection, error) {
	cands := candidatesOf(m)
	if len(cands) == 1 {
		return e.single(cands[0], args)
	}
	if site == nil || e.policy.DisableCallSiteCache {
		res, err := e.resolve(m.MemberName(), cands, args)
		return res.selection, err
	}
	gen := e.generation.Load()
	if sel, ok := site.lookup(e, gen, m, args); ok {
		if e.policy.VerifyCallSites {
			e.verify(site, m, cands, args, sel)
		}
		return sel, nil
	}
	res, err := e.resolve(m.MemberName(), cands, args)
	if err != nil {
		return selection{}, err
	}
	site.update(e, gen, m, args, res.selection, e.guardsFor(args, res.competing, res.tier))
	return res.selection, nil
}

// verify recomputes a cached selection and panics when the uncached path
// disagrees.
func (e *Engine) verify(site *CallSite, m Member, cands []*MethodDescriptor, args []any, cached selection) {
	res, err := e.resolve(m.MemberName(), cands, args)
	if err != nil {
		panic(fmt.Sprintf("call site %s: cached %s but uncached resolution failed: %v", site.name, cached.method, err))
	}
	if res.selection != cached {
		panic(fmt.Sprintf("call site %s: cached %s (varargs=%t, %s) but uncached %s (varargs=%t, %s)",
			site.name, cached.method, cached.varArgs, cached.tier, res.method, res.varArgs, res.tier))
	}
}

// single handles a member with one descriptor: there is nothing to rank,
// only the arity to check and, for a variadic method, whether the last
// argument is the variadic slice itself.
func (e *Engine) single(m *MethodDescriptor, args []any) (selection, error) {
	n := len(args)
	if !m.Variadic {
		if n != m.ParamCount() {
			return selection{}, &ArityError{Name: m.Name, Min: m.ParamCount(), Max: m.ParamCount(), Actual: n}
		}
		return selection{method: m, tier: TierLowest}, nil
	}
	if n < m.FixedArity() {
		return selection{}, &ArityError{Name: m.Name, Min: m.FixedArity(), Max: UnboundedArity, Actual: n}
	}
	direct := n == m.ParamCount() && e.canConvert(args[n-1], m.Params[n-1], TierLowest)
	return selection{method: m, varArgs: !direct, tier: TierLowest}, nil
}

// call converts the arguments, invokes the host callable and wraps the
// result. Arguments bound to scoped parameters are released on return.
func (e *Engine) call(ctx context.Context, sel selection, recv reflect.Value, args []any) (any, error) {
	m := sel.method
	var scope *CallScope
	if e.policy.MethodScoping && len(m.scoped) > 0 {
		scope = newCallScope()
		defer scope.Close()
	}
	in, spread, err := e.convertArgs(ctx, sel, args, scope)
	if err != nil {
		return nil, err
	}
	outs, err := e.invokeHost(m, recv, in, spread)
	if err != nil {
		return nil, err
	}
	return e.wrapResults(outs), nil
}

func (e *Engine) convertArgs(ctx context.Context, sel selection, args []any, scope *CallScope) ([]reflect.Value, bool, error) {
	m := sel.method
	conv := func(i int, a any, t *Type) (reflect.Value, error) {
		var sc *CallScope
		if scope != nil && m.scopedAt(i) {
			sc = scope
		}
		v, err := e.convert(ctx, a, t, sc)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%s argument %d: %w", m.Signature(), i+1, err)
		}
		return v, nil
	}
	if !sel.varArgs {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			v, err := conv(i, a, m.Params[i])
			if err != nil {
				return nil, false, err
			}
			in[i] = v
		}
		return in, m.Variadic, nil
	}
	fixed := m.FixedArity()
	in := make([]reflect.Value, fixed+1)
	for i := 0; i < fixed; i++ {
		v, err := conv(i, args[i], m.Params[i])
		if err != nil {
			return nil, false, err
		}
		in[i] = v
	}
	rest := len(args) - fixed
	packed := reflect.MakeSlice(m.Params[fixed].Go, rest, rest)
	elem := m.VariadicElem()
	for j := 0; j < rest; j++ {
		v, err := conv(fixed, args[fixed+j], elem)
		if err != nil {
			return nil, false, err
		}
		packed.Index(j).Set(v)
	}
	in[fixed] = packed
	return in, true, nil
}

func (m *MethodDescriptor) scopedAt(i int) bool {
	for _, s := range m.scoped {
		if s == i {
			return true
		}
	}
	return false
}

// invokeHost calls the host callable, turning a returned error or a panic
// into a *HostInvocationError.
func (e *Engine) invokeHost(m *MethodDescriptor, recv reflect.Value, in []reflect.Value, spread bool) (outs []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			outs, err = nil, hostPanic(m, r)
		}
	}()
	outs, err = m.call(recv, in, spread)
	if err != nil {
		return nil, hostError(m, err)
	}
	return outs, nil
}

// hostError wraps an error returned by a host callable. Errors that already
// describe a host or guest failure cross unchanged.
func hostError(m *MethodDescriptor, err error) error {
	var hie *HostInvocationError
	var rex *ResourceExhaustionError
	var guest ErrorLike
	if errors.As(err, &hie) || errors.As(err, &rex) || errors.As(err, &guest) {
		return err
	}
	return &HostInvocationError{Method: m.String(), Cause: err}
}

func hostPanic(m *MethodDescriptor, r any) error {
	err, _ := r.(error)
	if err != nil {
		var hie *HostInvocationError
		var rex *ResourceExhaustionError
		if errors.As(err, &hie) || errors.As(err, &rex) {
			return err
		}
	}
	return &HostInvocationError{Method: m.String(), Cause: err, Panic: r, Stack: hostFrames(4)}
}

var interopPkg = reflect.TypeFor[Engine]().PkgPath()

// hostFrames captures the stack, dropping runtime and reflection frames and
// the bridge's own dispatch frames.
func hostFrames(skip int) []runtime.Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var out []runtime.Frame
	for {
		f, more := frames.Next()
		if !elidedFrame(f.Function) {
			out = append(out, f)
		}
		if !more {
			break
		}
	}
	return out
}

func elidedFrame(fn string) bool {
	if strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "reflect.") {
		return true
	}
	rest, ok := strings.CutPrefix(fn, interopPkg+".")
	if !ok {
		return false
	}
	for _, p := range []string{"(*Engine).", "(*MethodDescriptor).", "(*HostObject).", "hostPanic"} {
		if strings.HasPrefix(rest, p) {
			return true
		}
	}
	return false
}

// wrapResults maps host results to one guest value: Null for none, the
// value for one, a guest-visible array for several.
func (e *Engine) wrapResults(outs []reflect.Value) any {
	switch len(outs) {
	case 0:
		return Null
	case 1:
		return e.wrapValue(outs[0])
	}
	vals := make([]any, len(outs))
	for i, o := range outs {
		vals[i] = o.Interface()
	}
	return e.wrapValue(reflect.ValueOf(vals))
}
