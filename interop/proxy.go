package interop

import (
	"context"
)

// ---------------------------------------------------------------------------
// Host-implemented proxies
// ---------------------------------------------------------------------------
//
// A proxy is a host value that answers guest protocol messages itself. The
// guest sees it through a proxy wrapper; handing the wrapper back to the
// host yields the original proxy at the HOST_PROXY tier. Arguments reach
// proxies as guest values; results are wrapped like any host return value.

// ProxyArray serves the array protocol.
type ProxyArray interface {
	Get(index int64) (any, error)
	Set(index int64, v any) error
	Size() int64
}

// ProxyObject serves the member protocol.
type ProxyObject interface {
	GetMember(name string) (any, error)
	PutMember(name string, v any) error
	HasMember(name string) bool
	MemberKeys() []string
}

// ProxyExecutable serves the execute protocol.
type ProxyExecutable interface {
	Call(args ...any) (any, error)
}

// ProxyHash serves the hash protocol.
type ProxyHash interface {
	HashSize() int64
	GetHashValue(key any) (any, bool, error)
	PutHashEntry(key, v any) error
	HashKeys() []any
}

func isProxy(v any) bool {
	switch v.(type) {
	case ProxyArray, ProxyObject, ProxyExecutable, ProxyHash:
		return true
	}
	return false
}

type proxyValue struct {
	e     *Engine
	proxy any
}

func (p *proxyValue) caps() Caps {
	var c Caps
	if _, ok := p.proxy.(ProxyArray); ok {
		c |= CapArray
	}
	if _, ok := p.proxy.(ProxyObject); ok {
		c |= CapMembers
	}
	if _, ok := p.proxy.(ProxyExecutable); ok {
		c |= CapExecutable
	}
	if _, ok := p.proxy.(ProxyHash); ok {
		c |= CapHash
	}
	return c
}

func (p *proxyValue) unsupported(op string) error {
	return &UnsupportedMessageError{Receiver: typeNameOf(p), Message: op}
}

func (p *proxyValue) result(v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return p.e.Wrap(v), nil
}

func (p *proxyValue) ArraySize() int64 {
	if a, ok := p.proxy.(ProxyArray); ok {
		return a.Size()
	}
	return 0
}

func (p *proxyValue) ReadElement(i int64) (any, error) {
	a, ok := p.proxy.(ProxyArray)
	if !ok {
		return nil, p.unsupported("read element")
	}
	return p.result(a.Get(i))
}

func (p *proxyValue) WriteElement(i int64, v any) error {
	a, ok := p.proxy.(ProxyArray)
	if !ok {
		return p.unsupported("write element")
	}
	return a.Set(i, v)
}

func (p *proxyValue) MemberKeys() []string {
	if o, ok := p.proxy.(ProxyObject); ok {
		return o.MemberKeys()
	}
	return nil
}

func (p *proxyValue) HasMember(name string) bool {
	o, ok := p.proxy.(ProxyObject)
	return ok && o.HasMember(name)
}

func (p *proxyValue) ReadMember(name string) (any, error) {
	o, ok := p.proxy.(ProxyObject)
	if !ok {
		return nil, p.unsupported("read member")
	}
	return p.result(o.GetMember(name))
}

func (p *proxyValue) WriteMember(name string, v any) error {
	o, ok := p.proxy.(ProxyObject)
	if !ok {
		return p.unsupported("write member")
	}
	return o.PutMember(name, v)
}

func (p *proxyValue) Execute(args ...any) (any, error) {
	return p.ExecuteContext(context.Background(), args...)
}

func (p *proxyValue) ExecuteContext(ctx context.Context, args ...any) (any, error) {
	x, ok := p.proxy.(ProxyExecutable)
	if !ok {
		return nil, p.unsupported("execute")
	}
	if _, err := p.e.enter(ctx); err != nil {
		return nil, err
	}
	return p.result(x.Call(args...))
}

func (p *proxyValue) HashSize() int64 {
	if h, ok := p.proxy.(ProxyHash); ok {
		return h.HashSize()
	}
	return 0
}

func (p *proxyValue) ReadHashValue(key any) (any, bool, error) {
	h, ok := p.proxy.(ProxyHash)
	if !ok {
		return nil, false, p.unsupported("read hash value")
	}
	v, found, err := h.GetHashValue(key)
	if err != nil || !found {
		return nil, false, err
	}
	return p.e.Wrap(v), true, nil
}

func (p *proxyValue) HashKeys() ([]any, error) {
	h, ok := p.proxy.(ProxyHash)
	if !ok {
		return nil, p.unsupported("hash keys")
	}
	keys := h.HashKeys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = p.e.Wrap(k)
	}
	return out, nil
}

func (p *proxyValue) WriteHashEntry(key, v any) error {
	h, ok := p.proxy.(ProxyHash)
	if !ok {
		return p.unsupported("write hash entry")
	}
	return h.PutHashEntry(key, v)
}

func (p *proxyValue) String() string {
	return typeNameOf(p)
}
