package interop

import (
	"context"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Host views
// ---------------------------------------------------------------------------

// List is an indexed host sequence. Guest arrays reach host code as live
// List views; host values implementing List expose the array protocol.
type List interface {
	Len() int
	Get(i int) (any, error)
	Set(i int, v any) error
}

// Map is a keyed host collection. Guest objects and hashes reach host code
// as live Map views; host values implementing Map expose the hash protocol.
type Map interface {
	Len() int
	Keys() ([]any, error)
	Get(key any) (any, bool, error)
	Put(key, v any) error
}

// HostIterable produces host iterators.
type HostIterable interface {
	Iter() HostIterator
}

// HostIterator is a pull iterator in the bufio.Scanner style: call Next
// until it returns false, then check Err.
type HostIterator interface {
	Next() bool
	Value() any
	Err() error
}

// guestBacked is implemented by views so the boundary can hand the
// underlying guest value back instead of wrapping the view.
type guestBacked interface {
	guestValue() any
}

// detach keeps ctx values (call depth) without its cancellation, since a
// view can outlive the call that created it when pinned.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// ---------------------------------------------------------------------------
// List view
// ---------------------------------------------------------------------------

type listView struct {
	e   *Engine
	ctx context.Context
	arr ArrayLike
}

func (l *listView) guestValue() any { return l.arr }

func (l *listView) Len() int { return int(l.arr.ArraySize()) }

func (l *listView) Get(i int) (any, error) {
	v, err := l.arr.ReadElement(int64(i))
	if err != nil {
		return nil, err
	}
	return l.e.toObject(l.ctx, v)
}

func (l *listView) Set(i int, v any) error {
	w, ok := l.arr.(WritableArray)
	if !ok {
		return &UnsupportedMessageError{Receiver: typeNameOf(l.arr), Message: "element write"}
	}
	return w.WriteElement(int64(i), l.e.Wrap(v))
}

func (l *listView) String() string {
	return fmt.Sprintf("List(%s)", displayShort(l.arr))
}

// ---------------------------------------------------------------------------
// Map view
// ---------------------------------------------------------------------------

type mapView struct {
	e       *Engine
	ctx     context.Context
	src     any
	members MemberBearing
	hash    HashLike
}

func newMapView(e *Engine, ctx context.Context, v any) *mapView {
	m := &mapView{e: e, ctx: detach(ctx), src: v}
	caps := CapabilitiesOf(v)
	if h, ok := v.(HashLike); ok && caps.Has(CapHash) {
		m.hash = h
	} else if mb, ok := v.(MemberBearing); ok {
		m.members = mb
	}
	return m
}

func (m *mapView) guestValue() any { return m.src }

func (m *mapView) Len() int {
	if m.hash != nil {
		return int(m.hash.HashSize())
	}
	return len(m.members.MemberKeys())
}

func (m *mapView) Keys() ([]any, error) {
	if m.hash != nil {
		keys, err := m.hash.HashKeys()
		if err != nil {
			return nil, err
		}
		out := make([]any, len(keys))
		for i, k := range keys {
			if out[i], err = m.e.toObject(m.ctx, k); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	names := m.members.MemberKeys()
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out, nil
}

func (m *mapView) Get(key any) (any, bool, error) {
	if m.hash != nil {
		v, ok, err := m.hash.ReadHashValue(m.e.Wrap(key))
		if err != nil || !ok {
			return nil, ok, err
		}
		out, err := m.e.toObject(m.ctx, v)
		return out, true, err
	}
	name, ok := key.(string)
	if !ok || !m.members.HasMember(name) {
		return nil, false, nil
	}
	v, err := m.members.ReadMember(name)
	if err != nil {
		return nil, true, err
	}
	out, err := m.e.toObject(m.ctx, v)
	return out, true, err
}

func (m *mapView) Put(key, v any) error {
	name, ok := key.(string)
	w, writable := m.src.(WritableMembers)
	if m.hash != nil || !ok || !writable {
		return &UnsupportedMessageError{Receiver: typeNameOf(m.src), Message: "member write"}
	}
	return w.WriteMember(name, m.e.Wrap(v))
}

func (m *mapView) String() string {
	return fmt.Sprintf("Map(%s)", displayShort(m.src))
}

// ---------------------------------------------------------------------------
// Iteration views
// ---------------------------------------------------------------------------

type iterableView struct {
	e   *Engine
	ctx context.Context
	src any
}

func (it *iterableView) guestValue() any { return it.src }

func (it *iterableView) Iter() HostIterator {
	if g, ok := it.src.(Iterable); ok && CapabilitiesOf(it.src).Has(CapIterable) {
		inner, err := g.Iterator()
		if err != nil {
			return &iteratorView{err: err}
		}
		return &iteratorView{e: it.e, ctx: it.ctx, it: inner}
	}
	if a, ok := it.src.(ArrayLike); ok {
		return &iteratorView{e: it.e, ctx: it.ctx, arr: a}
	}
	return &iteratorView{err: &UnsupportedMessageError{Receiver: typeNameOf(it.src), Message: "iteration"}}
}

// iteratorView walks a guest iterator, or a guest array by index.
type iteratorView struct {
	e   *Engine
	ctx context.Context
	it  Iterator
	arr ArrayLike
	pos int64
	cur any
	err error
}

func (it *iteratorView) guestValue() any {
	if it.it != nil {
		return it.it
	}
	return it.arr
}

func (it *iteratorView) Next() bool {
	if it.err != nil {
		return false
	}
	var v any
	switch {
	case it.it != nil:
		more, err := it.it.HasNext()
		if err != nil {
			it.err = err
			return false
		}
		if !more {
			return false
		}
		v, err = it.it.Next()
		if errors.Is(err, ErrStopIteration) {
			return false
		}
		if err != nil {
			it.err = err
			return false
		}
	case it.arr != nil:
		if it.pos >= it.arr.ArraySize() {
			return false
		}
		var err error
		if v, err = it.arr.ReadElement(it.pos); err != nil {
			it.err = err
			return false
		}
		it.pos++
	default:
		return false
	}
	out, err := it.e.toObject(it.ctx, v)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = out
	return true
}

func (it *iteratorView) Value() any { return it.cur }

func (it *iteratorView) Err() error { return it.err }

// ---------------------------------------------------------------------------
// Function view
// ---------------------------------------------------------------------------

// GuestFunction is how a guest executable looks to host code that asked
// for a plain object.
type GuestFunction struct {
	e   *Engine
	ctx context.Context
	fn  Executable
}

func (f *GuestFunction) guestValue() any { return f.fn }

// Call invokes the guest function with host arguments.
func (f *GuestFunction) Call(args ...any) (any, error) {
	return f.CallContext(f.ctx, args...)
}

// CallContext is Call with the caller's context, which carries the nested
// call depth.
func (f *GuestFunction) CallContext(ctx context.Context, args ...any) (any, error) {
	wrapped := make([]any, len(args))
	for i, a := range args {
		wrapped[i] = f.e.Wrap(a)
	}
	res, err := f.e.callGuest(ctx, f.fn, wrapped)
	if err != nil {
		return nil, err
	}
	return f.e.toObject(ctx, res)
}

func (f *GuestFunction) String() string {
	return fmt.Sprintf("Function(%s)", displayShort(f.fn))
}
