package gowrap

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"slices"
	"strings"
	"testing"

	"github.com/chazu/hostbridge/interop"
)

const shapesSrc = `package shapes

const Sides = 4
const Label = "shape"

type Shape interface{ Area() float64 }

type Square struct {
	Side   float64
	Name   string ` + "`host:\"readonly,export\"`" + `
	OnGrow func(float64) error
	secret int
}

func NewSquare(side float64) *Square { return &Square{Side: side} }

func NewSquareNamed(name string, side float64) (*Square, error) {
	return &Square{Side: side, Name: name}, nil
}

func (s *Square) Area() float64                      { return s.Side * s.Side }
func (s Square) Scale(by ...int) Square              { return s }
func (s *Square) Visit(fn func(float64), tag any) error { return nil }

type Unit int

func (u Unit) Twice() Unit { return u * 2 }

type Point struct{ X, Y int }

func Describe(s Shape) string { return "" }
`

func shapes(t *testing.T, only ...string) *Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "shapes.go", shapesSrc, 0)
	if err != nil {
		t.Fatal(err)
	}
	tp, err := (&types.Config{}).Check("example.com/shapes", fset, []*ast.File{f}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return describe(tp, only)
}

func classNamed(pkg *Package, name string) *Class {
	for i := range pkg.Classes {
		if pkg.Classes[i].Name == name {
			return &pkg.Classes[i]
		}
	}
	return nil
}

func names[T any](xs []T, name func(T) string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = name(x)
	}
	return out
}

func callableName(c Callable) string { return c.Name }

func TestDescribeClasses(t *testing.T) {
	pkg := shapes(t)
	if pkg.Name != "shapes" || pkg.Path != "example.com/shapes" {
		t.Errorf("package %s (%s)", pkg.Name, pkg.Path)
	}
	if got := names(pkg.Classes, func(c Class) string { return c.Name }); !slices.Equal(got, []string{"Point", "Shape", "Square", "Unit"}) {
		t.Fatalf("classes = %v", got)
	}

	tests := []struct {
		name  string
		kind  ClassKind
		final bool
	}{
		{"Point", ClassStruct, true},
		{"Shape", ClassInterface, false},
		{"Square", ClassStruct, false},
		{"Unit", ClassValue, true},
	}
	for _, tt := range tests {
		c := classNamed(pkg, tt.name)
		if c.Kind != tt.kind || c.Final() != tt.final {
			t.Errorf("%s: kind %s final %v", tt.name, c.Kind, c.Final())
		}
	}

	sq := classNamed(pkg, "Square")
	if got := names(sq.Fields, func(f Field) string { return f.Name }); !slices.Equal(got, []string{"Side", "Name", "OnGrow"}) {
		t.Errorf("fields = %v", got)
	}
	if f := sq.Fields[1]; !f.ReadOnly || !f.Export || f.Kind != interop.KindString {
		t.Errorf("Name field = %+v", f)
	}
	if !slices.Equal(sq.Hooks, []string{"OnGrow"}) || sq.Fields[2].Kind != interop.KindFunction {
		t.Errorf("hooks = %v", sq.Hooks)
	}
	if got := names(sq.Constructors, callableName); !slices.Equal(got, []string{"NewSquare", "NewSquareNamed"}) {
		t.Errorf("constructors = %v", got)
	}
	if got := names(sq.Methods, callableName); !slices.Equal(got, []string{"Area", "Scale", "Visit"}) {
		t.Errorf("methods = %v", got)
	}
	if sq.Methods[0].Receiver != "*Square" || sq.Methods[1].Receiver != "Square" {
		t.Errorf("receivers %q %q", sq.Methods[0].Receiver, sq.Methods[1].Receiver)
	}
	if u := classNamed(pkg, "Unit"); len(u.Methods) != 1 || u.Methods[0].Receiver != "Unit" {
		t.Errorf("Unit methods = %+v", u.Methods)
	}
}

func TestDescribeCallables(t *testing.T) {
	pkg := shapes(t)
	if got := names(pkg.Statics, callableName); !slices.Equal(got, []string{"Describe", "NewSquare", "NewSquareNamed"}) {
		t.Fatalf("statics = %v", got)
	}
	if d := pkg.Statics[0]; d.Params[0].Kind != interop.KindInterface || !slices.Equal(d.ScopedParams(), []int{0}) {
		t.Errorf("Describe params %+v", d.Params)
	}
	if named := pkg.Statics[2]; !named.Throws || len(named.Results) != 2 {
		t.Errorf("NewSquareNamed throws=%v results=%d", named.Throws, len(named.Results))
	}

	sq := classNamed(pkg, "Square")
	scale := sq.Methods[1]
	if scale.Signature() != "Scale(...int)" || scale.MangledName() != "Scale___3_4int" {
		t.Errorf("Scale names %s %s", scale.Signature(), scale.MangledName())
	}
	if lo, hi := scale.Arity(); lo != 0 || hi != interop.UnboundedArity {
		t.Errorf("Scale arity %d..%d", lo, hi)
	}
	if scale.Results[0].Spelling != "shapes.Square" || scale.Results[0].Kind != interop.KindStruct {
		t.Errorf("Scale result %+v", scale.Results[0])
	}
	visit := sq.Methods[2]
	if visit.Signature() != "Visit(func(float64),interface {})" || !visit.Throws {
		t.Errorf("Visit %s throws=%v", visit.Signature(), visit.Throws)
	}
	if !slices.Equal(visit.ScopedParams(), []int{0, 1}) {
		t.Errorf("Visit scoped %v", visit.ScopedParams())
	}
}

func TestDescribeConstsAndFilter(t *testing.T) {
	pkg := shapes(t)
	if got := names(pkg.Consts, func(c Const) string { return c.Name + "=" + c.Value }); !slices.Equal(got, []string{"Label=shape", "Sides=4"}) {
		t.Errorf("consts = %v", got)
	}

	only := shapes(t, "Square", "NewSquare")
	if len(only.Classes) != 1 || len(only.Statics) != 1 || len(only.Consts) != 0 {
		t.Fatalf("filtered to %d classes %d statics %d consts", len(only.Classes), len(only.Statics), len(only.Consts))
	}
	if got := names(only.Classes[0].Constructors, callableName); !slices.Equal(got, []string{"NewSquare"}) {
		t.Errorf("filtered constructors = %v", got)
	}
}

func TestWriteListing(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteListing(&buf, shapes(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"package shapes (example.com/shapes)",
		"static shapes",
		"const Label",
		"final class shapes.Point",
		"interface shapes.Shape",
		"\nclass shapes.Square",
		"new NewSquare(float64)",
		"Scale___3_4int",
		"0+",
		"readonly,export",
		"hook",
		"scoped[0 1]",
		"final value shapes.Unit",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestLoadStrings(t *testing.T) {
	pkg, err := Load("strings", "Repeat", "NewReplacer", "Replacer")
	if err != nil {
		t.Fatalf("Load(strings): %v", err)
	}
	if pkg.Name != "strings" || pkg.Path != "strings" {
		t.Errorf("package %s (%s)", pkg.Name, pkg.Path)
	}
	if got := names(pkg.Statics, callableName); !slices.Equal(got, []string{"NewReplacer", "Repeat"}) {
		t.Fatalf("statics = %v", got)
	}
	if r := pkg.Statics[1]; r.Signature() != "Repeat(string,int)" || r.Params[1].Kind != interop.KindLong {
		t.Errorf("Repeat = %s %s", r.Signature(), r.Params[1].Kind)
	}
	if len(pkg.Classes) != 1 || len(pkg.Classes[0].Constructors) != 1 {
		t.Fatalf("Replacer class = %+v", pkg.Classes)
	}
}

func TestLoadThrowingMethods(t *testing.T) {
	pkg, err := Load("encoding/json", "Decoder", "NewDecoder", "Marshal")
	if err != nil {
		t.Fatalf("Load(encoding/json): %v", err)
	}
	if pkg.Name != "json" || len(pkg.Statics) != 2 || !pkg.Statics[0].Throws {
		t.Fatalf("statics = %+v", pkg.Statics)
	}
	dec := classNamed(pkg, "Decoder")
	if dec == nil || !dec.Final() {
		t.Fatalf("Decoder = %+v", dec)
	}
	i := slices.IndexFunc(dec.Methods, func(c Callable) bool { return c.Name == "Decode" })
	if i < 0 || !dec.Methods[i].Throws || !slices.Equal(dec.Methods[i].ScopedParams(), []int{0}) {
		t.Errorf("Decode = %+v", dec.Methods)
	}
}

func TestLoadBadPath(t *testing.T) {
	if _, err := Load("nonexistent/package/path"); err == nil {
		t.Error("expected error for nonexistent package")
	}
}
