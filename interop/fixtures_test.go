package interop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"
)

// Minimal guest values for exercising the bridge without a guest runtime.

type gArray []any

func (a gArray) ArraySize() int64 { return int64(len(a)) }

func (a gArray) ReadElement(i int64) (any, error) {
	if i < 0 || i >= int64(len(a)) {
		return nil, &InvalidIndexError{Index: i, Size: int64(len(a))}
	}
	return a[i], nil
}

func (a gArray) WriteElement(i int64, v any) error {
	if i < 0 || i >= int64(len(a)) {
		return &InvalidIndexError{Index: i, Size: int64(len(a))}
	}
	a[i] = v
	return nil
}

type gObject map[string]any

func (o gObject) MemberKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o gObject) HasMember(name string) bool {
	_, ok := o[name]
	return ok
}

func (o gObject) ReadMember(name string) (any, error) {
	v, ok := o[name]
	if !ok {
		return nil, &UnknownMemberError{Type: "object", Name: name}
	}
	return v, nil
}

func (o gObject) WriteMember(name string, v any) error {
	o[name] = v
	return nil
}

// gRecord is array-like and member-bearing at once.
type gRecord struct {
	gArray
	gObject
}

type gFunc func(ctx context.Context, args []any) (any, error)

func (f gFunc) Execute(args ...any) (any, error) { return f(context.Background(), args) }

func (f gFunc) ExecuteContext(ctx context.Context, args ...any) (any, error) { return f(ctx, args) }

type gTime struct {
	facets Facets
	t      time.Time
	d      time.Duration
}

func (g gTime) Facets() Facets { return g.facets }
func (g gTime) AsTime() (time.Time, error) { return g.t, nil }
func (g gTime) AsDuration() (time.Duration, error) {
	if g.facets&FacetDuration == 0 {
		return 0, errors.New("not a duration")
	}
	return g.d, nil
}

type gException struct{ msg string }

func (e *gException) Error() string { return e.msg }
func (e *gException) Exception() any { return e.msg }

// Host types.

type Point struct {
	X, Y   int32
	Label  string `host:"readonly"`
	hidden int
}

func (p *Point) Move(dx, dy int32) {
	p.X += dx
	p.Y += dy
}

func (p *Point) Norm1() int64 { return int64(abs(p.X)) + int64(abs(p.Y)) }

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

type Printer struct {
	Out []string
}

func (p *Printer) Print(v any) string {
	s := fmt.Sprint(v)
	p.Out = append(p.Out, s)
	return s
}

func (p *Printer) Fail(msg string) error { return errors.New(msg) }

func (p *Printer) Boom() { panic("boom") }

func (p *Printer) Join(sep string, parts ...string) string {
	out := ""
	for i, s := range parts {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}

func newEngine(t *testing.T, p *Policy) *Engine {
	t.Helper()
	e, err := NewEngine(p)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func hostOf(t *testing.T, e *Engine, v any) *HostObject {
	t.Helper()
	h, ok := e.Wrap(v).(*HostObject)
	if !ok {
		t.Fatalf("Wrap(%T) is not a host object", v)
	}
	return h
}
