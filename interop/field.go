package interop

import (
	"context"
	"fmt"
	"reflect"
)

type fieldKind uint8

const (
	fieldStruct fieldKind = iota
	fieldStatic
	fieldPseudo
)

// FieldDescriptor describes a readable, possibly writable, member: an
// exported struct field, a registered static variable or constant, or a
// synthetic pseudo-field such as an array's length.
type FieldDescriptor struct {
	Name          string
	DeclaringType string
	Type          *Type
	Static        bool
	Final         bool

	kind  fieldKind
	index []int         // struct field path
	value reflect.Value // static variable (addressable) or constant
	get   func(e *Engine, recv reflect.Value) reflect.Value
}

func (f *FieldDescriptor) MemberName() string { return f.Name }

// Pseudo reports whether the field is synthesized rather than declared.
func (f *FieldDescriptor) Pseudo() bool { return f.kind == fieldPseudo }

func (f *FieldDescriptor) String() string {
	s := f.DeclaringType + "." + f.Name + " " + f.Type.Name
	if f.Static {
		s = "static " + s
	}
	if f.Final {
		s += " (read-only)"
	}
	return s
}

func (f *FieldDescriptor) read(e *Engine, recv reflect.Value) (reflect.Value, error) {
	switch f.kind {
	case fieldStatic:
		return f.value, nil
	case fieldPseudo:
		return f.get(e, recv), nil
	}
	sv, err := structOf(recv)
	if err != nil {
		return reflect.Value{}, err
	}
	fv, err := sv.FieldByIndexErr(f.index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return fv, nil
}

func (f *FieldDescriptor) write(ctx context.Context, e *Engine, recv reflect.Value, v any) error {
	if f.Final {
		return &UnsupportedMessageError{Receiver: f.DeclaringType, Message: "write to read-only field " + f.Name}
	}
	cv, err := e.convert(ctx, v, f.Type, nil)
	if err != nil {
		return err
	}
	if f.kind == fieldStatic {
		f.value.Set(cv)
		return nil
	}
	sv, err := structOf(recv)
	if err != nil {
		return err
	}
	fv, err := sv.FieldByIndexErr(f.index)
	if err != nil {
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	if !fv.CanSet() {
		return &UnsupportedMessageError{Receiver: f.DeclaringType, Message: "write to unaddressable field " + f.Name}
	}
	fv.Set(cv)
	return nil
}

func structOf(recv reflect.Value) (reflect.Value, error) {
	if recv.Kind() == reflect.Pointer {
		if recv.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil %s receiver", recv.Type())
		}
		recv = recv.Elem()
	}
	if recv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s is not a struct", recv.Type())
	}
	return recv, nil
}

// ---------------------------------------------------------------------------
// Pseudo-fields
// ---------------------------------------------------------------------------

const (
	lengthField = "length"
	classField  = "class"
	staticField = "static"
)

func lengthPseudo(declaring string) *FieldDescriptor {
	return &FieldDescriptor{
		Name: lengthField, DeclaringType: declaring, Type: TypeFor[int](), Final: true, kind: fieldPseudo,
		get: func(_ *Engine, recv reflect.Value) reflect.Value {
			return reflect.ValueOf(recv.Len())
		},
	}
}

// classPseudo yields, on a static view, the class object itself.
func classPseudo(declaring string) *FieldDescriptor {
	return &FieldDescriptor{
		Name: classField, DeclaringType: declaring, Type: TypeOf(classDescType), Static: true, Final: true, kind: fieldPseudo,
		get: func(_ *Engine, recv reflect.Value) reflect.Value {
			return recv
		},
	}
}

// staticPseudo yields, on a class object, the static view of the class it
// describes.
func staticPseudo() *FieldDescriptor {
	return &FieldDescriptor{
		Name: staticField, DeclaringType: classDescType.String(), Type: TypeFor[*HostObject](), Final: true, kind: fieldPseudo,
		get: func(e *Engine, recv reflect.Value) reflect.Value {
			return reflect.ValueOf(e.staticView(recv.Interface().(*ClassDesc)))
		},
	}
}
