package interop

import (
	"fmt"
	"reflect"
	"strings"
)

// ---------------------------------------------------------------------------
// Method descriptors
// ---------------------------------------------------------------------------

// Member is anything a name can resolve to on a class: a single
// *MethodDescriptor, an *OverloadGroup, or a *FieldDescriptor.
type Member interface {
	MemberName() string
}

// Thunk is a precompiled calling stub. It receives the receiver (nil for
// static members) and arguments already converted to the declared types.
type Thunk func(receiver any, args []any) (any, error)

type invokerKind uint8

const (
	invokeReflect invokerKind = iota
	invokeThunk
)

// invoker is the one dispatch point between descriptors and the host:
// either reflect.Value.Call on a func value, or a Thunk.
type invoker struct {
	kind    invokerKind
	fn      reflect.Value // first parameter is the receiver when hasRecv
	hasRecv bool
	thunk   Thunk
}

// MethodDescriptor is one overload of a host callable. Descriptors are
// built once per class and never modified afterwards.
type MethodDescriptor struct {
	Name          string
	DeclaringType string
	Params        []*Type
	// Generic carries the element-level view of each parameter; it equals
	// Params except that the variadic slot holds the element type.
	Generic     []*Type
	Results     []*Type // excluding a trailing error
	ReturnsErr  bool
	Variadic    bool
	Constructor bool
	Static      bool
	// AltNameOnly hides the descriptor from plain-name lookup; it is reached
	// only by signature or mangled name.
	AltNameOnly bool

	scoped []int
	inv    invoker
}

func (m *MethodDescriptor) MemberName() string { return m.Name }

// ParamCount is the declared parameter count, the variadic slot included.
func (m *MethodDescriptor) ParamCount() int { return len(m.Params) }

// FixedArity is the number of arguments that must always be supplied.
func (m *MethodDescriptor) FixedArity() int {
	if m.Variadic {
		return len(m.Params) - 1
	}
	return len(m.Params)
}

// ScopedParams lists the parameter positions whose guest arguments are
// released when the call returns.
func (m *MethodDescriptor) ScopedParams() []int { return m.scoped }

// VariadicElem is the element type of the variadic slot.
func (m *MethodDescriptor) VariadicElem() *Type {
	if !m.Variadic {
		return nil
	}
	return m.Params[len(m.Params)-1].Elem
}

// paramTypeAt returns the type argument i is checked against; in a variadic
// expansion every trailing argument uses the element type.
func (m *MethodDescriptor) paramTypeAt(i int, varArgs bool) *Type {
	if varArgs && i >= len(m.Params)-1 {
		return m.VariadicElem()
	}
	return m.Params[i]
}

// ParamNames returns the signature spelling of each parameter.
func (m *MethodDescriptor) ParamNames() []string {
	out := make([]string, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.Name
		if m.Variadic && i == len(m.Params)-1 {
			out[i] = "..." + p.Elem.Name
		}
	}
	return out
}

// Signature renders the lookup name `Name(T1,T2)`.
func (m *MethodDescriptor) Signature() string {
	return m.Name + "(" + strings.Join(m.ParamNames(), ",") + ")"
}

// MangledName renders the alternate lookup name `Name__T1__T2`.
func (m *MethodDescriptor) MangledName() string {
	return Mangle(m.Name, m.ParamNames())
}

func (m *MethodDescriptor) String() string {
	var b strings.Builder
	if m.Static {
		b.WriteString("static ")
	}
	b.WriteString(m.DeclaringType)
	b.WriteByte('.')
	b.WriteString(m.Signature())
	switch len(m.Results) {
	case 0:
	case 1:
		b.WriteString(" " + m.Results[0].Name)
	default:
		names := make([]string, len(m.Results))
		for i, r := range m.Results {
			names[i] = r.Name
		}
		b.WriteString(" (" + strings.Join(names, ", ") + ")")
	}
	return b.String()
}

// OverloadGroup is a name resolving to two or more descriptors.
type OverloadGroup struct {
	Name      string
	Overloads []*MethodDescriptor
}

func (g *OverloadGroup) MemberName() string { return g.Name }

// candidatesOf flattens a callable member into its overload list.
func candidatesOf(m Member) []*MethodDescriptor {
	switch x := m.(type) {
	case *MethodDescriptor:
		return []*MethodDescriptor{x}
	case *OverloadGroup:
		return x.Overloads
	}
	return nil
}

// groupOf builds the member for a name: nil, a bare descriptor, or a group.
func groupOf(name string, ms []*MethodDescriptor) Member {
	switch len(ms) {
	case 0:
		return nil
	case 1:
		return ms[0]
	}
	return &OverloadGroup{Name: name, Overloads: ms}
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// newReflectDescriptor describes fn. When hasRecv is set the first
// parameter of fn is the receiver and is not part of Params.
func newReflectDescriptor(name, declaring string, fn reflect.Value, hasRecv bool) (*MethodDescriptor, error) {
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s.%s: %s is not a function", declaring, name, ft)
	}
	skip := 0
	if hasRecv {
		if ft.NumIn() == 0 {
			return nil, fmt.Errorf("%s.%s: method function has no receiver parameter", declaring, name)
		}
		skip = 1
	}
	in := make([]reflect.Type, 0, ft.NumIn()-skip)
	for i := skip; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i))
	}
	out := make([]reflect.Type, ft.NumOut())
	for i := range out {
		out[i] = ft.Out(i)
	}
	m := describe(name, declaring, in, out, ft.IsVariadic())
	m.inv = invoker{kind: invokeReflect, fn: fn, hasRecv: hasRecv}
	return m, nil
}

// newThunkDescriptor describes a precompiled stub with declared parameter
// types. Thunks always return a single untyped result and an error.
func newThunkDescriptor(name, declaring string, params []reflect.Type, variadic bool, fn Thunk) *MethodDescriptor {
	m := describe(name, declaring, params, []reflect.Type{anyType, errorType}, variadic)
	m.inv = invoker{kind: invokeThunk, thunk: fn}
	return m
}

func describe(name, declaring string, in, out []reflect.Type, variadic bool) *MethodDescriptor {
	m := &MethodDescriptor{
		Name:          name,
		DeclaringType: declaring,
		Variadic:      variadic,
		Params:        make([]*Type, len(in)),
		Generic:       make([]*Type, len(in)),
	}
	for i, rt := range in {
		m.Params[i] = TypeOf(rt)
		m.Generic[i] = m.Params[i]
		if variadic && i == len(in)-1 {
			m.Generic[i] = m.Params[i].Elem
		}
		if scopedKind(m.Generic[i]) {
			m.scoped = append(m.scoped, i)
		}
	}
	if n := len(out); n > 0 && out[n-1] == errorType {
		m.ReturnsErr = true
		out = out[:n-1]
	}
	for _, rt := range out {
		m.Results = append(m.Results, TypeOf(rt))
	}
	return m
}

// scopedKind reports whether a parameter of type t receives guest objects
// as live views or proxies, which must not outlive the call.
func scopedKind(t *Type) bool {
	switch t.Kind {
	case KindObject, KindGuestHandle, KindList, KindMap, KindIterable, KindIterator, KindFunction:
		return true
	case KindInterface:
		return t.Go != errorType
	}
	return false
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// call runs the host callable. spread passes the final argument as the
// variadic slice itself.
func (m *MethodDescriptor) call(recv reflect.Value, in []reflect.Value, spread bool) ([]reflect.Value, error) {
	switch m.inv.kind {
	case invokeThunk:
		var r any
		if recv.IsValid() {
			r = recv.Interface()
		}
		args := make([]any, 0, len(in))
		for i, a := range in {
			if spread && i == len(in)-1 {
				for j := 0; j < a.Len(); j++ {
					args = append(args, a.Index(j).Interface())
				}
				continue
			}
			args = append(args, a.Interface())
		}
		res, err := m.inv.thunk(r, args)
		out := reflect.New(anyType).Elem()
		if res != nil {
			out.Set(reflect.ValueOf(res))
		}
		return []reflect.Value{out}, err
	}

	args := in
	if m.inv.hasRecv {
		args = make([]reflect.Value, 0, len(in)+1)
		args = append(args, recv)
		args = append(args, in...)
	}
	var outs []reflect.Value
	if spread {
		outs = m.inv.fn.CallSlice(args)
	} else {
		outs = m.inv.fn.Call(args)
	}
	if m.ReturnsErr {
		last := outs[len(outs)-1]
		outs = outs[:len(outs)-1]
		if !last.IsNil() {
			return outs, last.Interface().(error)
		}
	}
	return outs, nil
}
