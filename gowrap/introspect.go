package gowrap

import (
	"fmt"
	"go/constant"
	"go/types"
	"reflect"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
)

var errorType = types.Universe.Lookup("error").Type()

// Load describes the package at importPath. When only is non-empty, just
// the named top-level objects are described.
func Load(importPath string, only ...string) (*Package, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes}
	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("%s: expected one package, found %d", importPath, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("%s: %v", importPath, pkg.Errors[0])
	}
	if pkg.Types == nil {
		return nil, fmt.Errorf("%s: no type information", importPath)
	}
	return describe(pkg.Types, only), nil
}

func describe(tp *types.Package, only []string) *Package {
	out := &Package{Path: tp.Path(), Name: tp.Name()}
	scope := tp.Scope()
	for _, name := range scope.Names() {
		if len(only) > 0 && !slices.Contains(only, name) {
			continue
		}
		switch obj := scope.Lookup(name).(type) {
		case *types.Func:
			if obj.Exported() {
				out.Statics = append(out.Statics, callable(obj.Name(), "", obj.Type().(*types.Signature)))
			}
		case *types.TypeName:
			if c, ok := class(obj); ok {
				out.Classes = append(out.Classes, c)
			}
		case *types.Const:
			if obj.Exported() {
				out.Consts = append(out.Consts, constOf(obj))
			}
		}
	}
	for i := range out.Classes {
		out.Classes[i].Constructors = constructorsOf(out.Classes[i], out.Statics)
	}
	return out
}

func class(tn *types.TypeName) (Class, bool) {
	named, ok := tn.Type().(*types.Named)
	if !ok || !tn.Exported() || tn.IsAlias() || named.TypeParams().Len() > 0 {
		return Class{}, false
	}
	c := Class{Name: tn.Name(), Type: named, Kind: ClassValue}
	recv := types.Type(named)
	switch u := named.Underlying().(type) {
	case *types.Interface:
		c.Kind = ClassInterface
	case *types.Struct:
		c.Kind = ClassStruct
		recv = types.NewPointer(named)
		c.Fields, c.Hooks = fieldsOf(u)
	}

	mset := types.NewMethodSet(recv)
	for i := range mset.Len() {
		sel := mset.At(i)
		fn, ok := sel.Obj().(*types.Func)
		// Promoted methods belong to the embedded type's listing.
		if !ok || !fn.Exported() || len(sel.Index()) > 1 {
			continue
		}
		c.Methods = append(c.Methods, callable(fn.Name(), receiverOf(fn, c), fn.Type().(*types.Signature)))
	}
	return c, true
}

func receiverOf(fn *types.Func, c Class) string {
	if c.Kind == ClassInterface {
		return c.Name
	}
	if _, ptr := fn.Type().(*types.Signature).Recv().Type().(*types.Pointer); ptr {
		return "*" + c.Name
	}
	return c.Name
}

func fieldsOf(st *types.Struct) (fields []Field, hooks []string) {
	for i := range st.NumFields() {
		f := st.Field(i)
		if !f.Exported() || f.Embedded() {
			continue
		}
		opts := strings.Split(reflect.StructTag(st.Tag(i)).Get("host"), ",")
		fields = append(fields, Field{
			Name:     f.Name(),
			Type:     f.Type(),
			Spelling: TypeSpelling(f.Type()),
			Kind:     KindOf(f.Type()),
			ReadOnly: slices.Contains(opts, "readonly"),
			Export:   slices.Contains(opts, "export"),
		})
		if _, ok := f.Type().Underlying().(*types.Signature); ok {
			hooks = append(hooks, f.Name())
		}
	}
	return fields, hooks
}

func constructorsOf(c Class, statics []Callable) []Callable {
	var out []Callable
	for _, fn := range statics {
		if !strings.HasPrefix(fn.Name, "New"+c.Name) || len(fn.Results) == 0 {
			continue
		}
		rt := fn.Results[0].Type
		if p, ok := rt.(*types.Pointer); ok {
			rt = p.Elem()
		}
		if types.Identical(rt, c.Type) {
			out = append(out, fn)
		}
	}
	return out
}

func constOf(c *types.Const) Const {
	v := c.Val().ExactString()
	if c.Val().Kind() == constant.String {
		v = constant.StringVal(c.Val())
	}
	return Const{Name: c.Name(), Spelling: TypeSpelling(c.Type()), Value: v}
}

func callable(name, recv string, sig *types.Signature) Callable {
	c := Callable{Name: name, Receiver: recv, Variadic: sig.Variadic()}
	for v := range sig.Params().Variables() {
		c.Params = append(c.Params, paramOf(v))
	}
	for v := range sig.Results().Variables() {
		c.Results = append(c.Results, paramOf(v))
	}
	if n := len(c.Results); n > 0 && isError(c.Results[n-1].Type) {
		c.Throws = true
	}
	return c
}

func paramOf(v *types.Var) Param {
	return Param{
		Name:     v.Name(),
		Type:     v.Type(),
		Spelling: TypeSpelling(v.Type()),
		Kind:     KindOf(v.Type()),
	}
}

func isError(t types.Type) bool {
	return types.Identical(t, errorType)
}
