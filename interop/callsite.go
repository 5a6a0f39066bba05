package interop

// Call-site caching for overload selection
//
// Modelled on a polymorphic inline cache: a site starts empty, caches one
// argument shape (monomorphic), then up to its limit (polymorphic), and
// past that stops caching (megamorphic). An entry stores the member it
// was computed for, the argument count, one guard per argument, and the
// selection. Entries are immutable and published by swapping an atomic
// pointer, so lookups take no lock.

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// CacheState is the state of a call site's cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // nothing cached yet
	CacheMonomorphic                   // one shape cached
	CachePolymorphic                   // 2..limit shapes cached
	CacheMegamorphic                   // too many shapes, every call resolves
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	}
	return fmt.Sprintf("state(%d)", s)
}

// shape is the type-level identity of an argument.
type shape struct {
	rt     reflect.Type
	inner  reflect.Type // wrapped host or proxy type
	static bool
	null   bool
	caps   Caps
}

func shapeOf(v any) shape {
	s := shape{null: IsNull(v)}
	if v != nil {
		s.rt = reflect.TypeOf(v)
	}
	switch x := v.(type) {
	case *HostObject:
		s.static = x.static
		if x.static {
			s.inner = x.class.Type.Go
		} else if x.value != nil {
			s.inner = reflect.TypeOf(x.value)
		}
	case *proxyValue:
		s.inner = reflect.TypeOf(x.proxy)
	}
	if !s.null {
		s.caps = CapabilitiesOf(v)
	}
	return s
}

// noTier marks a parameter type the argument does not convert to at or
// before the stopping tier.
const noTier = TierLowest + 1

type tierCheck struct {
	t    *Type
	tier Tier
}

// argGuard decides whether a new argument would resolve exactly like the
// cached one. A type guard compares shapes; a tier guard, used when the
// value itself can change the outcome, compares the tier at which the
// argument converts to each competing parameter type.
type argGuard struct {
	shape  shape
	checks []tierCheck // nil for a type guard
	stop   Tier
}

func (g *argGuard) match(e *Engine, v any) bool {
	if g.checks == nil {
		return shapeOf(v) == g.shape
	}
	for _, c := range g.checks {
		if e.tierOf(v, c.t, g.stop) != c.tier {
			return false
		}
	}
	return true
}

// tierOf returns the earliest tier, up to stop, at which v converts to t.
func (e *Engine) tierOf(v any, t *Type, stop Tier) Tier {
	if !e.canConvert(v, t, stop) {
		return noTier
	}
	for _, tier := range Tiers {
		if tier >= stop || e.canConvert(v, t, tier) {
			return tier
		}
	}
	return stop
}

// valueDependent reports whether converting v to any of types can depend
// on v's value rather than its shape.
func (e *Engine) valueDependent(v any, types []*Type) bool {
	for _, t := range types {
		if e.mappings.has(t.Go) {
			return true
		}
	}
	if isGuestPrimitive(unwrapHost(v)) {
		return true
	}
	_, temporal := v.(Temporal)
	return temporal
}

func (e *Engine) guardsFor(args []any, competing [][]*Type, stop Tier) []argGuard {
	guards := make([]argGuard, len(args))
	for i, a := range args {
		if !e.valueDependent(a, competing[i]) {
			guards[i] = argGuard{shape: shapeOf(a)}
			continue
		}
		checks := make([]tierCheck, len(competing[i]))
		for j, t := range competing[i] {
			checks[j] = tierCheck{t: t, tier: e.tierOf(a, t, stop)}
		}
		guards[i] = argGuard{checks: checks, stop: stop}
	}
	return guards
}

type siteEntry struct {
	member Member
	argc   int
	guards []argGuard
	sel    selection
}

type siteState struct {
	state      CacheState
	generation uint64
	entries    []siteEntry
}

// CallSite memoizes overload selection for one call location in guest
// code. It is safe for concurrent use.
type CallSite struct {
	name  string
	limit int

	mu      sync.Mutex // serializes updates
	current atomic.Pointer[siteState]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCallSite creates a call site whose statistics are included in
// Engine.CallSiteStats.
func (e *Engine) NewCallSite(name string) *CallSite {
	s := &CallSite{name: name, limit: e.policy.CallSiteLimit}
	e.sitesMu.Lock()
	e.sites = append(e.sites, s)
	e.sitesMu.Unlock()
	return s
}

func (s *CallSite) lookup(e *Engine, gen uint64, m Member, args []any) (selection, bool) {
	st := s.current.Load()
	if st != nil && st.generation == gen && st.state != CacheMegamorphic {
	entries:
		for i := range st.entries {
			ent := &st.entries[i]
			if ent.member != m || ent.argc != len(args) {
				continue
			}
			for j := range ent.guards {
				if !ent.guards[j].match(e, args[j]) {
					continue entries
				}
			}
			s.hits.Add(1)
			return ent.sel, true
		}
	}
	s.misses.Add(1)
	return selection{}, false
}

func (s *CallSite) update(e *Engine, gen uint64, m Member, args []any, sel selection, guards []argGuard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.current.Load()
	if old != nil && old.generation == gen && old.state == CacheMegamorphic {
		return
	}
	next := &siteState{generation: gen}
	if old != nil && old.generation == gen {
		next.entries = append(next.entries, old.entries...)
	}
	next.entries = append(next.entries, siteEntry{member: m, argc: len(args), guards: guards, sel: sel})
	switch n := len(next.entries); {
	case n == 1:
		next.state = CacheMonomorphic
	case n <= s.limit:
		next.state = CachePolymorphic
	default:
		next.state = CacheMegamorphic
		next.entries = nil
		e.log.Warningf("call site %s went megamorphic after %d shapes", s.name, s.limit)
	}
	if old == nil || old.state != next.state {
		e.log.Debugf("call site %s: %s", s.name, next.state)
	}
	s.current.Store(next)
}

// Reset clears the cache and its statistics.
func (s *CallSite) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(nil)
	s.hits.Store(0)
	s.misses.Store(0)
}

// CallSiteStats describes one call site.
type CallSiteStats struct {
	Name    string
	State   CacheState
	Shapes  int
	Hits    uint64
	Misses  uint64
	HitRate float64 // percentage
}

// Stats returns a snapshot of the site's cache.
func (s *CallSite) Stats() CallSiteStats {
	st := CallSiteStats{Name: s.name, Hits: s.hits.Load(), Misses: s.misses.Load()}
	if cur := s.current.Load(); cur != nil {
		st.State = cur.state
		st.Shapes = len(cur.entries)
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) * 100 / float64(total)
	}
	return st
}

// CacheStats aggregates the statistics of every call site of an engine.
type CacheStats struct {
	CallSites   int
	Empty       int
	Monomorphic int
	Polymorphic int
	Megamorphic int
	Hits        uint64
	Misses      uint64
	HitRate     float64
	Sites       []CallSiteStats
}

// CallSiteStats collects statistics from all call sites created with
// NewCallSite.
func (e *Engine) CallSiteStats() CacheStats {
	e.sitesMu.Lock()
	sites := append([]*CallSite(nil), e.sites...)
	e.sitesMu.Unlock()

	var out CacheStats
	for _, s := range sites {
		st := s.Stats()
		out.Sites = append(out.Sites, st)
		out.CallSites++
		switch st.State {
		case CacheEmpty:
			out.Empty++
		case CacheMonomorphic:
			out.Monomorphic++
		case CachePolymorphic:
			out.Polymorphic++
		case CacheMegamorphic:
			out.Megamorphic++
		}
		out.Hits += st.Hits
		out.Misses += st.Misses
	}
	if total := out.Hits + out.Misses; total > 0 {
		out.HitRate = float64(out.Hits) * 100 / float64(total)
	}
	return out
}
