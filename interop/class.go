package interop

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Class descriptors
// ---------------------------------------------------------------------------

var classDescType = reflect.TypeFor[*ClassDesc]()

// ClassDesc is the immutable member model of one host type. It has an
// instance side (methods and fields on values) and a static side
// (constructors, functions, variables, nested types).
type ClassDesc struct {
	Name string
	Type *Type

	instance     memberTable
	static       memberTable
	constructors Member
	nested       map[string]reflect.Type
}

type memberTable struct {
	methods map[string]Member              // plain-name resolution, hidden overloads excluded
	all     map[string][]*MethodDescriptor // every overload by name
	order   []string                       // method names in declaration order
	fields  map[string]*FieldDescriptor
	keys    []string // enumerable member names, sorted
}

func (c *ClassDesc) table(static bool) *memberTable {
	if static {
		return &c.static
	}
	return &c.instance
}

// Constructors returns the class's constructor member, nil if it has none.
func (c *ClassDesc) Constructors() Member { return c.constructors }

// Methods lists every method descriptor of one side, hidden overloads
// included, in declaration order.
func (c *ClassDesc) Methods(static bool) []*MethodDescriptor {
	t := c.table(static)
	var out []*MethodDescriptor
	for _, name := range t.order {
		out = append(out, t.all[name]...)
	}
	return out
}

// Fields lists the declared fields of one side, sorted by name.
func (c *ClassDesc) Fields(static bool) []*FieldDescriptor {
	t := c.table(static)
	out := make([]*FieldDescriptor, 0, len(t.fields))
	for _, f := range t.fields {
		if !f.Pseudo() {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MemberKeys lists the non-internal member names of one side.
func (c *ClassDesc) MemberKeys(static bool) []string {
	return append([]string(nil), c.table(static).keys...)
}

// NestedType returns a nested type registered on the static side.
func (c *ClassDesc) NestedType(name string) (reflect.Type, bool) {
	rt, ok := c.nested[name]
	return rt, ok
}

func (c *ClassDesc) String() string { return "class " + c.Name }

// ---------------------------------------------------------------------------
// Class specs
// ---------------------------------------------------------------------------

// ClassSpec describes what reflection cannot see about a host type:
// constructors, static functions and variables, extra overloads and nested
// types. Specs are registered with Engine.Register.
type ClassSpec struct {
	typ  reflect.Type
	name string

	constructors []any
	statics      []namedFuncs
	overloads    []namedFuncs
	thunks       []thunkEntry
	fields       []staticEntry
	nested       []reflect.Type

	errs []error
}

type namedFuncs struct {
	name   string
	fns    []any
	hidden bool
}

type thunkEntry struct {
	name     string
	static   bool
	params   []reflect.Type
	variadic bool
	fn       Thunk
}

type staticEntry struct {
	name  string
	value reflect.Value
	final bool
}

// NewClass starts a spec for rt.
func NewClass(rt reflect.Type) *ClassSpec {
	return &ClassSpec{typ: rt}
}

// ClassOf starts a spec for T.
func ClassOf[T any]() *ClassSpec {
	return NewClass(reflect.TypeFor[T]())
}

// Named overrides the class name shown to the guest.
func (s *ClassSpec) Named(name string) *ClassSpec {
	s.name = name
	return s
}

// Constructor adds constructor overloads: functions whose first result is
// the new instance.
func (s *ClassSpec) Constructor(fns ...any) *ClassSpec {
	s.constructors = append(s.constructors, fns...)
	return s
}

// Static adds static function overloads under name.
func (s *ClassSpec) Static(name string, fns ...any) *ClassSpec {
	s.statics = append(s.statics, namedFuncs{name: name, fns: fns})
	return s
}

// Overload adds instance method overloads under name. Each function takes
// the receiver as its first parameter.
func (s *ClassSpec) Overload(name string, fns ...any) *ClassSpec {
	s.overloads = append(s.overloads, namedFuncs{name: name, fns: fns})
	return s
}

// Hidden adds instance overloads reachable only through their signature or
// mangled name.
func (s *ClassSpec) Hidden(name string, fns ...any) *ClassSpec {
	s.overloads = append(s.overloads, namedFuncs{name: name, fns: fns, hidden: true})
	return s
}

// Thunk adds a precompiled method with declared parameter types.
func (s *ClassSpec) Thunk(name string, static bool, params []reflect.Type, variadic bool, fn Thunk) *ClassSpec {
	if variadic && (len(params) == 0 || params[len(params)-1].Kind() != reflect.Slice) {
		s.errs = append(s.errs, fmt.Errorf("thunk %s: variadic parameter must be a slice", name))
		return s
	}
	s.thunks = append(s.thunks, thunkEntry{name: name, static: static, params: params, variadic: variadic, fn: fn})
	return s
}

// StaticField exposes the variable ptr points to as a writable static field.
func (s *ClassSpec) StaticField(name string, ptr any) *ClassSpec {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		s.errs = append(s.errs, fmt.Errorf("static field %s: need a non-nil pointer, got %T", name, ptr))
		return s
	}
	s.fields = append(s.fields, staticEntry{name: name, value: rv.Elem()})
	return s
}

// Const exposes value as a read-only static field.
func (s *ClassSpec) Const(name string, value any) *ClassSpec {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		rv = reflect.Zero(anyType)
	}
	s.fields = append(s.fields, staticEntry{name: name, value: rv, final: true})
	return s
}

// Nested registers types reachable from the static side by their names.
func (s *ClassSpec) Nested(types ...reflect.Type) *ClassSpec {
	s.nested = append(s.nested, types...)
	return s
}

func (s *ClassSpec) validate() error {
	if s.typ == nil {
		return errors.New("class spec without a type")
	}
	return errors.Join(s.errs...)
}

// ---------------------------------------------------------------------------
// Building
// ---------------------------------------------------------------------------

type tableBuilder struct {
	order  []string
	byName map[string][]*MethodDescriptor
	fields map[string]*FieldDescriptor
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{byName: make(map[string][]*MethodDescriptor), fields: make(map[string]*FieldDescriptor)}
}

func (b *tableBuilder) add(d *MethodDescriptor) {
	if _, ok := b.byName[d.Name]; !ok {
		b.order = append(b.order, d.Name)
	}
	b.byName[d.Name] = append(b.byName[d.Name], d)
}

func (b *tableBuilder) finish() memberTable {
	t := memberTable{
		methods: make(map[string]Member, len(b.order)),
		all:     b.byName,
		order:   b.order,
		fields:  b.fields,
	}
	for _, name := range b.order {
		var visible []*MethodDescriptor
		for _, d := range b.byName[name] {
			if !d.AltNameOnly {
				visible = append(visible, d)
			}
		}
		if m := groupOf(name, visible); m != nil {
			t.methods[name] = m
			t.keys = append(t.keys, name)
		}
	}
	for name, f := range b.fields {
		if !f.Pseudo() {
			t.keys = append(t.keys, name)
		}
	}
	sort.Strings(t.keys)
	return t
}

func (e *Engine) buildClass(rt reflect.Type, spec *ClassSpec) (*ClassDesc, error) {
	c := &ClassDesc{Name: rt.String(), Type: TypeOf(rt), nested: make(map[string]reflect.Type)}
	if spec != nil && spec.name != "" {
		c.Name = spec.name
	}
	inst, stat := newTableBuilder(), newTableBuilder()

	if rt.Kind() != reflect.Interface {
		for i := 0; i < rt.NumMethod(); i++ {
			m := rt.Method(i)
			if !m.IsExported() || !e.policy.methodVisible(rt, m.Name) {
				continue
			}
			d, err := newReflectDescriptor(m.Name, c.Name, m.Func, true)
			if err != nil {
				return nil, err
			}
			inst.add(d)
		}
	}

	st := rt
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(st) {
			if !f.IsExported() || f.Anonymous || !e.policy.fieldVisible(f) {
				continue
			}
			if _, clash := inst.byName[f.Name]; clash {
				continue
			}
			inst.fields[f.Name] = &FieldDescriptor{
				Name:          f.Name,
				DeclaringType: c.Name,
				Type:          TypeOf(f.Type),
				Final:         rt.Kind() != reflect.Pointer || hasTagOption(f.Tag.Get("host"), "readonly"),
				index:         f.Index,
			}
		}
	}

	if spec != nil {
		if err := e.applySpec(c, spec, inst, stat); err != nil {
			return nil, err
		}
	}

	if (rt.Kind() == reflect.Slice || rt.Kind() == reflect.Array) && e.policy.ArrayAccess {
		inst.fields[lengthField] = lengthPseudo(c.Name)
	}
	if rt == classDescType {
		inst.fields[staticField] = staticPseudo()
	}
	stat.fields[classField] = classPseudo(c.Name)

	c.instance = inst.finish()
	c.static = stat.finish()
	for name := range c.nested {
		c.static.keys = append(c.static.keys, name)
	}
	sort.Strings(c.static.keys)
	return c, nil
}

func (e *Engine) applySpec(c *ClassDesc, spec *ClassSpec, inst, stat *tableBuilder) error {
	rt := spec.typ
	var ctors []*MethodDescriptor
	for _, fn := range spec.constructors {
		d, err := newReflectDescriptor("new", c.Name, reflect.ValueOf(fn), false)
		if err != nil {
			return err
		}
		if len(d.Results) == 0 {
			return fmt.Errorf("%s constructor %s returns nothing", c.Name, d.Signature())
		}
		d.Constructor, d.Static = true, true
		ctors = append(ctors, d)
	}
	c.constructors = groupOf("new", ctors)

	for _, nf := range spec.statics {
		for _, fn := range nf.fns {
			d, err := newReflectDescriptor(nf.name, c.Name, reflect.ValueOf(fn), false)
			if err != nil {
				return err
			}
			d.Static = true
			stat.add(d)
		}
	}
	for _, nf := range spec.overloads {
		for _, fn := range nf.fns {
			fv := reflect.ValueOf(fn)
			d, err := newReflectDescriptor(nf.name, c.Name, fv, true)
			if err != nil {
				return err
			}
			if recv := fv.Type().In(0); !rt.AssignableTo(recv) {
				return fmt.Errorf("%s.%s: receiver parameter %s does not accept %s", c.Name, nf.name, recv, rt)
			}
			d.AltNameOnly = nf.hidden
			inst.add(d)
		}
	}
	for _, th := range spec.thunks {
		d := newThunkDescriptor(th.name, c.Name, th.params, th.variadic, th.fn)
		d.Static = th.static
		if th.static {
			stat.add(d)
		} else {
			inst.add(d)
		}
	}
	for _, sf := range spec.fields {
		stat.fields[sf.name] = &FieldDescriptor{
			Name:          sf.name,
			DeclaringType: c.Name,
			Type:          TypeOf(sf.value.Type()),
			Static:        true,
			Final:         sf.final,
			kind:          fieldStatic,
			value:         sf.value,
		}
	}
	for _, nt := range spec.nested {
		name := nt.Name()
		if name == "" {
			name = nt.String()
		}
		c.nested[name] = nt
	}
	return nil
}

// hasTagOption reports whether a comma-separated struct tag value lists opt.
func hasTagOption(tag, opt string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == opt {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Engine entry points
// ---------------------------------------------------------------------------

// Register attaches class specs. Descriptors built from earlier specs are
// dropped and every call site revalidates.
func (e *Engine) Register(specs ...*ClassSpec) error {
	for _, s := range specs {
		if err := s.validate(); err != nil {
			return fmt.Errorf("register %v: %w", s.typ, err)
		}
	}
	for _, s := range specs {
		e.types.setSpec(s)
		e.log.Debugf("registered class %s", s.typ)
	}
	e.generation.Add(1)
	return nil
}

// Class returns the descriptor for rt, building it on first use. Concurrent
// first uses share one build.
func (e *Engine) Class(rt reflect.Type) (*ClassDesc, error) {
	info := e.types.register(rt)
	if c, _ := e.types.cached(info); c != nil {
		return c, nil
	}
	v, err, _ := e.group.Do("class:"+strconv.FormatUint(uint64(info.ID), 10), func() (any, error) {
		c, spec := e.types.cached(info)
		if c != nil {
			return c, nil
		}
		c, err := e.buildClass(rt, spec)
		if err != nil {
			return nil, err
		}
		e.types.store(info, spec, c)
		e.log.Debugf("described %s: %d instance, %d static members", c.Name, len(c.instance.keys), len(c.static.keys))
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ClassDesc), nil
}

// Evict drops the cached descriptor for rt; it is rebuilt on next use.
func (e *Engine) Evict(rt reflect.Type) {
	if e.types.evict(rt) {
		e.generation.Add(1)
	}
}
