package interop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Call scopes
// ---------------------------------------------------------------------------

const (
	slotLive int32 = iota
	slotPinned
	slotReleased
)

// CallScope bounds the lifetime of guest objects handed to one host call.
// It is owned by the goroutine performing the call; only Pin may race
// with Close.
type CallScope struct {
	id    uuid.UUID
	slots []*ScopedValue
}

func newCallScope() *CallScope {
	return &CallScope{id: uuid.New()}
}

// ID identifies the scope in diagnostics.
func (s *CallScope) ID() string { return s.id.String() }

// Len is the number of scoped values registered so far.
func (s *CallScope) Len() int { return len(s.slots) }

func (s *CallScope) add(v any) *ScopedValue {
	sv := &ScopedValue{scope: s, value: v}
	s.slots = append(s.slots, sv)
	return sv
}

// Close releases every slot that was not pinned.
func (s *CallScope) Close() {
	for _, sv := range s.slots {
		sv.state.CompareAndSwap(slotLive, slotReleased)
	}
}

// ScopedValue is a guest object handed to host code for the duration of
// one call. It forwards every guest operation to the object until the call
// returns; afterwards each operation fails with *UseAfterScopeError unless
// the value was pinned.
type ScopedValue struct {
	scope *CallScope
	value any
	state atomic.Int32
}

// Pin extends the value's lifetime past the call and returns the original
// guest object. Pinning a released value fails.
func (v *ScopedValue) Pin() (any, error) {
	if v.state.CompareAndSwap(slotLive, slotPinned) || v.state.Load() == slotPinned {
		return v.value, nil
	}
	return nil, v.released("pin")
}

// Released reports whether the value is no longer usable.
func (v *ScopedValue) Released() bool { return v.state.Load() == slotReleased }

// Pinned reports whether the value was pinned.
func (v *ScopedValue) Pinned() bool { return v.state.Load() == slotPinned }

func (v *ScopedValue) released(op string) error {
	return &UseAfterScopeError{ScopeID: v.scope.ID(), Operation: op}
}

func (v *ScopedValue) live(op string) (any, error) {
	if v.state.Load() == slotReleased {
		return nil, v.released(op)
	}
	return v.value, nil
}

// Pin pins a scoped value, or the scoped value behind a view, and returns
// what stays usable: the original guest object for a scoped value, the
// view itself for a view. Values that are not scoped are returned as is.
func Pin(v any) (any, error) {
	switch x := v.(type) {
	case *ScopedValue:
		return x.Pin()
	case guestBacked:
		if sv, ok := x.guestValue().(*ScopedValue); ok {
			if _, err := sv.Pin(); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// Capabilities reports the capabilities of the underlying object.
func (v *ScopedValue) Capabilities() Caps {
	return CapabilitiesOf(v.value) &^ (CapHost | CapProxy)
}

func (v *ScopedValue) ArraySize() int64 {
	if x, err := v.live("array size"); err == nil {
		if a, ok := x.(ArrayLike); ok {
			return a.ArraySize()
		}
	}
	return 0
}

func (v *ScopedValue) ReadElement(i int64) (any, error) {
	x, err := v.live("read element")
	if err != nil {
		return nil, err
	}
	a, ok := x.(ArrayLike)
	if !ok {
		return nil, unsupported(x, "read element")
	}
	return a.ReadElement(i)
}

func (v *ScopedValue) WriteElement(i int64, el any) error {
	x, err := v.live("write element")
	if err != nil {
		return err
	}
	a, ok := x.(WritableArray)
	if !ok {
		return unsupported(x, "write element")
	}
	return a.WriteElement(i, el)
}

func (v *ScopedValue) MemberKeys() []string {
	if x, err := v.live("member keys"); err == nil {
		if m, ok := x.(MemberBearing); ok {
			return m.MemberKeys()
		}
	}
	return nil
}

func (v *ScopedValue) HasMember(name string) bool {
	if x, err := v.live("has member"); err == nil {
		if m, ok := x.(MemberBearing); ok {
			return m.HasMember(name)
		}
	}
	return false
}

func (v *ScopedValue) ReadMember(name string) (any, error) {
	x, err := v.live("read member " + name)
	if err != nil {
		return nil, err
	}
	m, ok := x.(MemberBearing)
	if !ok {
		return nil, unsupported(x, "read member")
	}
	return m.ReadMember(name)
}

func (v *ScopedValue) WriteMember(name string, val any) error {
	x, err := v.live("write member " + name)
	if err != nil {
		return err
	}
	m, ok := x.(WritableMembers)
	if !ok {
		return unsupported(x, "write member")
	}
	return m.WriteMember(name, val)
}

func (v *ScopedValue) Execute(args ...any) (any, error) {
	return v.ExecuteContext(context.Background(), args...)
}

func (v *ScopedValue) ExecuteContext(ctx context.Context, args ...any) (any, error) {
	x, err := v.live("execute")
	if err != nil {
		return nil, err
	}
	fn, ok := x.(Executable)
	if !ok {
		return nil, unsupported(x, "execute")
	}
	return executeGuest(ctx, fn, args)
}

func (v *ScopedValue) Instantiate(args ...any) (any, error) {
	x, err := v.live("instantiate")
	if err != nil {
		return nil, err
	}
	c, ok := x.(Instantiable)
	if !ok {
		return nil, unsupported(x, "instantiate")
	}
	return c.Instantiate(args...)
}

func (v *ScopedValue) Iterator() (Iterator, error) {
	x, err := v.live("iterator")
	if err != nil {
		return nil, err
	}
	it, ok := x.(Iterable)
	if !ok {
		return nil, unsupported(x, "iterator")
	}
	return it.Iterator()
}

func (v *ScopedValue) HasNext() (bool, error) {
	x, err := v.live("has next")
	if err != nil {
		return false, err
	}
	it, ok := x.(Iterator)
	if !ok {
		return false, unsupported(x, "has next")
	}
	return it.HasNext()
}

func (v *ScopedValue) Next() (any, error) {
	x, err := v.live("next")
	if err != nil {
		return nil, err
	}
	it, ok := x.(Iterator)
	if !ok {
		return nil, unsupported(x, "next")
	}
	return it.Next()
}

func (v *ScopedValue) HashSize() int64 {
	if x, err := v.live("hash size"); err == nil {
		if h, ok := x.(HashLike); ok {
			return h.HashSize()
		}
	}
	return 0
}

func (v *ScopedValue) ReadHashValue(key any) (any, bool, error) {
	x, err := v.live("read hash value")
	if err != nil {
		return nil, false, err
	}
	h, ok := x.(HashLike)
	if !ok {
		return nil, false, unsupported(x, "read hash value")
	}
	return h.ReadHashValue(key)
}

func (v *ScopedValue) HashKeys() ([]any, error) {
	x, err := v.live("hash keys")
	if err != nil {
		return nil, err
	}
	h, ok := x.(HashLike)
	if !ok {
		return nil, unsupported(x, "hash keys")
	}
	return h.HashKeys()
}

func (v *ScopedValue) Facets() Facets {
	if x, err := v.live("facets"); err == nil {
		if t, ok := x.(Temporal); ok {
			return t.Facets()
		}
	}
	return 0
}

func (v *ScopedValue) AsTime() (time.Time, error) {
	x, err := v.live("as time")
	if err != nil {
		return time.Time{}, err
	}
	t, ok := x.(Temporal)
	if !ok {
		return time.Time{}, unsupported(x, "as time")
	}
	return t.AsTime()
}

func (v *ScopedValue) AsDuration() (time.Duration, error) {
	x, err := v.live("as duration")
	if err != nil {
		return 0, err
	}
	t, ok := x.(Temporal)
	if !ok {
		return 0, unsupported(x, "as duration")
	}
	return t.AsDuration()
}

func (v *ScopedValue) String() string {
	switch v.state.Load() {
	case slotReleased:
		return "scoped(released)"
	case slotPinned:
		return "scoped(pinned " + displayShort(v.value) + ")"
	}
	return "scoped(" + displayShort(v.value) + ")"
}

func unsupported(x any, op string) error {
	return &UnsupportedMessageError{Receiver: typeNameOf(x), Message: op}
}
