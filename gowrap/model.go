// Package gowrap describes the host surface of Go packages: for every
// exported function, type, method and field, the signature, alternate
// lookup names and conversion kinds the interop layer will expose to guests.
// It works from source through go/types, so a package can be described
// without linking it into the running program.
package gowrap

import (
	"go/types"

	"github.com/chazu/hostbridge/interop"
)

// Package is the host surface of one Go package. Package-level functions
// form its static side.
type Package struct {
	Path    string
	Name    string
	Statics []Callable
	Classes []Class
	Consts  []Const
}

// ClassKind distinguishes how guests may use a class.
type ClassKind uint8

const (
	// ClassStruct is a struct type, used through a pointer.
	ClassStruct ClassKind = iota
	// ClassInterface is implementable only through a registered adapter.
	ClassInterface
	// ClassValue is any other named type.
	ClassValue
)

func (k ClassKind) String() string {
	switch k {
	case ClassStruct:
		return "class"
	case ClassInterface:
		return "interface"
	}
	return "value"
}

// Class is the host surface of an exported named type.
type Class struct {
	Name string
	Type types.Type
	Kind ClassKind

	Fields  []Field
	Methods []Callable // pointer method set for structs

	// Constructors are package functions named New<Name> whose first
	// result is the type or a pointer to it.
	Constructors []Callable

	// Hooks are the exported func-typed fields a guest supplies when it
	// implements a hook struct.
	Hooks []string
}

// Final reports whether a guest can never implement the class: structs
// without hooks and plain named values.
func (c Class) Final() bool {
	return c.Kind == ClassValue || (c.Kind == ClassStruct && len(c.Hooks) == 0)
}

// Callable is a function, method or constructor as dispatch sees it.
type Callable struct {
	Name     string
	Receiver string // "*T" or "T" for methods, empty otherwise
	Params   []Param
	Results  []Param // the trailing error is kept here and flagged by Throws
	Throws   bool
	Variadic bool
}

// Param is one parameter or result.
type Param struct {
	Name     string
	Type     types.Type
	Spelling string // as reflect prints it, e.g. "[]uint8"
	Kind     interop.Kind
}

// Field is an exported struct field.
type Field struct {
	Name     string
	Type     types.Type
	Spelling string
	Kind     interop.Kind
	ReadOnly bool // host:"readonly"
	Export   bool // host:"export", visible under the annotated policy
}

// Const is an exported constant, listed on the package's static side.
type Const struct {
	Name     string
	Spelling string
	Value    string
}
