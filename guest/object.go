package guest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/chazu/hostbridge/interop"
)

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// Object is a guest object with named members kept in insertion order.
type Object struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]any
}

// NewObject creates an object from alternating name/value pairs.
func NewObject(pairs ...any) *Object {
	if len(pairs)%2 != 0 {
		panic("guest.NewObject: odd number of arguments")
	}
	o := &Object{values: make(map[string]any, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("guest.NewObject: member name %v is not a string", pairs[i]))
		}
		o.set(name, pairs[i+1])
	}
	return o
}

func (o *Object) set(name string, v any) {
	if _, ok := o.values[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.values[name] = v
}

// Set assigns a member and returns o.
func (o *Object) Set(name string, v any) *Object {
	o.mu.Lock()
	o.set(name, v)
	o.mu.Unlock()
	return o
}

func (o *Object) MemberKeys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.keys)
}

func (o *Object) HasMember(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.values[name]
	return ok
}

func (o *Object) ReadMember(name string) (any, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[name]
	if !ok {
		return nil, &interop.UnknownMemberError{Type: "guest object", Name: name}
	}
	return v, nil
}

func (o *Object) WriteMember(name string, v any) error {
	o.Set(name, v)
	return nil
}

func (o *Object) String() string {
	return fmt.Sprintf("object%v", o.MemberKeys())
}

// ---------------------------------------------------------------------------
// Capability masking
// ---------------------------------------------------------------------------

// Masked narrows the capabilities of an Object at run time, the way a guest
// value whose shape changes would.
type Masked struct {
	*Object
	Caps interop.Caps
}

func (m *Masked) Capabilities() interop.Caps { return m.Caps }
