package guest

import (
	"context"
)

// Function is a guest executable backed by a Go closure. The closure
// receives the caller's context so nested host calls keep counting depth.
type Function struct {
	Name string
	fn   func(ctx context.Context, args []any) (any, error)
}

// Func wraps fn as a guest function.
func Func(name string, fn func(ctx context.Context, args []any) (any, error)) *Function {
	return &Function{Name: name, fn: fn}
}

// Lambda wraps a context-free closure.
func Lambda(name string, fn func(args ...any) (any, error)) *Function {
	return Func(name, func(_ context.Context, args []any) (any, error) { return fn(args...) })
}

func (f *Function) Execute(args ...any) (any, error) {
	return f.fn(context.Background(), args)
}

func (f *Function) ExecuteContext(ctx context.Context, args ...any) (any, error) {
	return f.fn(ctx, args)
}

func (f *Function) String() string { return "function " + f.Name }

// Constructor is a guest class: instantiating it calls a closure.
type Constructor struct {
	Name string
	fn   func(args []any) (any, error)
}

func NewConstructor(name string, fn func(args []any) (any, error)) *Constructor {
	return &Constructor{Name: name, fn: fn}
}

func (c *Constructor) Instantiate(args ...any) (any, error) {
	return c.fn(args)
}

func (c *Constructor) String() string { return "class " + c.Name }
