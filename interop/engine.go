package interop

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"
)

// Engine holds everything one guest context shares: the access policy,
// target mappings, class descriptors, generated adapters and call sites.
// All methods are safe for concurrent use.
type Engine struct {
	policy   *Policy
	mappings *mappingTable
	types    *typeRegistry
	adapters *adapterCache
	group    singleflight.Group

	// generation advances whenever registration could change a cached
	// overload decision. Call-site entries from older generations miss.
	generation atomic.Uint64

	log       commonlog.Logger
	exhausted *ResourceExhaustionError

	sitesMu sync.Mutex
	sites   []*CallSite
}

// NewEngine creates an engine for p, or for DefaultPolicy when p is nil.
// The policy is copied.
func NewEngine(p *Policy) (*Engine, error) {
	if p == nil {
		p = DefaultPolicy()
	}
	p = p.clone()
	for i := range p.Mappings {
		if err := validateMapping(&p.Mappings[i]); err != nil {
			return nil, err
		}
	}
	e := &Engine{
		policy:   p,
		mappings: newMappingTable(p.Mappings),
		types:    newTypeRegistry(),
		adapters: newAdapterCache(),
		log:      commonlog.GetLogger("hostbridge.interop"),
	}
	if p.MaxCallDepth == DefaultMaxCallDepth {
		e.exhausted = ErrResourceExhausted
	} else {
		e.exhausted = &ResourceExhaustionError{Resource: ErrResourceExhausted.Resource, Limit: p.MaxCallDepth}
	}
	return e, nil
}

// MustEngine is NewEngine for policies known to be valid.
func MustEngine(p *Policy) *Engine {
	e, err := NewEngine(p)
	if err != nil {
		panic(err)
	}
	return e
}

// Policy returns a copy of the engine's policy.
func (e *Engine) Policy() *Policy {
	return e.policy.clone()
}

// AddMapping registers a target mapping after creation. Cached call-site
// decisions made before the mapping existed are invalidated.
func (e *Engine) AddMapping(m TargetMapping) error {
	if err := validateMapping(&m); err != nil {
		return err
	}
	e.mappings.add(m)
	e.generation.Add(1)
	e.log.Debugf("added mapping %s to %s at %s", m.Name, m.Target, m.Priority)
	return nil
}

// Generation reports the registration generation.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// ClassCount reports how many Go types have been seen.
func (e *Engine) ClassCount() int {
	return e.types.count()
}

func validateMapping(m *TargetMapping) error {
	switch {
	case m.Target == nil:
		return fmt.Errorf("mapping %q: no target type", m.Name)
	case m.Convert == nil:
		return fmt.Errorf("mapping %q: no converter", m.Name)
	}
	switch m.Priority {
	case TierHighest, TierStrict, TierLoose, TierCoerce, TierLowest:
		return nil
	}
	return fmt.Errorf("mapping %q: priority %s is not a mapping tier", m.Name, m.Priority)
}
