package interop

import (
	"reflect"
)

// Visibility selects which host members the guest can see.
type Visibility uint8

const (
	// PublicOnly exposes every exported method and field.
	PublicOnly Visibility = iota
	// Annotated exposes fields tagged `host:"export"` and methods listed
	// with Policy.ExportMethods.
	Annotated
)

// DefaultMaxCallDepth bounds nested host→guest→host call chains.
const DefaultMaxCallDepth = 512

// DefaultCallSiteLimit is the number of argument shapes a call site caches
// before it stops caching.
const DefaultCallSiteLimit = 5

// Policy is the embedder's declarative access configuration. A Policy is
// copied when an Engine is created; later edits do not affect the engine.
type Policy struct {
	Visibility Visibility

	// Structural views of host values for the guest.
	ArrayAccess    bool
	ListAccess     bool
	BufferAccess   bool
	IterableAccess bool
	IteratorAccess bool
	MapAccess      bool

	// BigIntegerNumberAccess lets *big.Int take part in numeric coercion.
	// When off, *big.Int is an ordinary object type.
	BigIntegerNumberAccess bool

	// MethodScoping bounds guest objects passed to `any` or guest-handle
	// parameters to the duration of the host call.
	MethodScoping bool

	// DisableCallSiteCache forces every call through the uncached path.
	DisableCallSiteCache bool
	// VerifyCallSites recomputes every cached decision and panics when the
	// cached and uncached paths disagree.
	VerifyCallSites bool

	MaxCallDepth  int
	CallSiteLimit int

	Mappings []TargetMapping

	exportedMethods map[reflect.Type]map[string]bool
	implementable   map[reflect.Type]bool
	factories       map[reflect.Type]AdapterFactory
}

// DefaultPolicy returns the policy used when an Engine is created without
// one: public members, every structural view, method scoping on.
func DefaultPolicy() *Policy {
	return &Policy{
		Visibility:     PublicOnly,
		ArrayAccess:    true,
		ListAccess:     true,
		BufferAccess:   true,
		IterableAccess: true,
		IteratorAccess: true,
		MapAccess:      true,
		MethodScoping:  true,
		MaxCallDepth:   DefaultMaxCallDepth,
		CallSiteLimit:  DefaultCallSiteLimit,
	}
}

// ExportMethods marks methods of t visible under Annotated visibility.
func (p *Policy) ExportMethods(t reflect.Type, names ...string) *Policy {
	if p.exportedMethods == nil {
		p.exportedMethods = make(map[reflect.Type]map[string]bool)
	}
	set := p.exportedMethods[t]
	if set == nil {
		set = make(map[string]bool)
		p.exportedMethods[t] = set
	}
	for _, n := range names {
		set[n] = true
	}
	return p
}

// AllowImplementation lets guest objects implement the struct type t (a
// struct whose func-typed fields are its abstract methods).
func (p *Policy) AllowImplementation(t reflect.Type) *Policy {
	if p.implementable == nil {
		p.implementable = make(map[reflect.Type]bool)
	}
	p.implementable[t] = true
	return p
}

// Implement registers the adapter factory that lets guest objects implement
// the interface type iface. It implies AllowImplementation.
func (p *Policy) Implement(iface reflect.Type, f AdapterFactory) *Policy {
	if p.factories == nil {
		p.factories = make(map[reflect.Type]AdapterFactory)
	}
	p.factories[iface] = f
	return p.AllowImplementation(iface)
}

// AddMapping appends a target mapping.
func (p *Policy) AddMapping(m TargetMapping) *Policy {
	p.Mappings = append(p.Mappings, m)
	return p
}

func (p *Policy) clone() *Policy {
	c := *p
	c.Mappings = append([]TargetMapping(nil), p.Mappings...)
	c.exportedMethods = make(map[reflect.Type]map[string]bool, len(p.exportedMethods))
	for t, set := range p.exportedMethods {
		cs := make(map[string]bool, len(set))
		for k, v := range set {
			cs[k] = v
		}
		c.exportedMethods[t] = cs
	}
	c.implementable = make(map[reflect.Type]bool, len(p.implementable))
	for k, v := range p.implementable {
		c.implementable[k] = v
	}
	c.factories = make(map[reflect.Type]AdapterFactory, len(p.factories))
	for k, v := range p.factories {
		c.factories[k] = v
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.CallSiteLimit <= 0 {
		c.CallSiteLimit = DefaultCallSiteLimit
	}
	return &c
}

func (p *Policy) methodVisible(t reflect.Type, name string) bool {
	if p.Visibility == PublicOnly {
		return true
	}
	return p.exportedMethods[t][name]
}

func (p *Policy) fieldVisible(f reflect.StructField) bool {
	tag, ok := f.Tag.Lookup("host")
	if tag == "-" {
		return false
	}
	if p.Visibility == PublicOnly {
		return true
	}
	return ok && hasTagOption(tag, "export")
}
