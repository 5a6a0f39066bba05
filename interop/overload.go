package interop

import "math"

// ---------------------------------------------------------------------------
// Overload resolution
// ---------------------------------------------------------------------------

// selection is a resolved call: the overload, whether trailing arguments
// are packed into its variadic slot, and the tier resolution stopped at.
type selection struct {
	method  *MethodDescriptor
	varArgs bool
	tier    Tier
}

// resolution is a selection plus what influenced it: for each argument
// position, the distinct parameter types the argument was tested against.
type resolution struct {
	selection
	competing [][]*Type
}

// resolve selects the overload of name to call with args. Ambiguity and
// inapplicability are reported with the full candidate list.
func (e *Engine) resolve(name string, cands []*MethodDescriptor, args []any) (resolution, error) {
	n := len(args)
	applicable, err := arityFilter(name, cands, n)
	if err != nil {
		return resolution{}, err
	}
	res := resolution{competing: competingTypes(applicable, n)}
	for _, tier := range Tiers {
		for _, varArgs := range [...]bool{false, true} {
			var found []*MethodDescriptor
			for _, m := range applicable {
				if e.applicableAt(m, args, varArgs, tier) {
					found = append(found, m)
				}
			}
			if len(found) == 0 {
				continue
			}
			best := found[0]
			if len(found) > 1 {
				if best = e.mostSpecific(found, args, varArgs, tier); best == nil {
					return resolution{}, &AmbiguousOverloadError{Name: name, Tied: found, Candidates: cands, Args: args, Tier: tier}
				}
			}
			res.selection = selection{method: best, varArgs: varArgs, tier: tier}
			return res, nil
		}
	}
	return resolution{}, &NoApplicableOverloadError{Name: name, Candidates: cands, Args: args}
}

// arityFilter keeps the overloads that can take n arguments: fixed ones of
// exactly n parameters and variadic ones with at most n fixed parameters.
func arityFilter(name string, cands []*MethodDescriptor, n int) ([]*MethodDescriptor, error) {
	var out []*MethodDescriptor
	lo, hi := math.MaxInt, 0
	for _, m := range cands {
		fixed := m.FixedArity()
		lo = min(lo, fixed)
		if m.Variadic {
			hi = UnboundedArity
			if n >= fixed {
				out = append(out, m)
			}
			continue
		}
		if hi != UnboundedArity {
			hi = max(hi, fixed)
		}
		if n == fixed {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, &ArityError{Name: name, Min: lo, Max: hi, Actual: n}
	}
	return out, nil
}

// competingTypes collects, per argument position, every parameter type an
// argument there can be checked against in either pass.
func competingTypes(applicable []*MethodDescriptor, n int) [][]*Type {
	out := make([][]*Type, n)
	add := func(i int, t *Type) {
		for _, seen := range out[i] {
			if seen == t {
				return
			}
		}
		out[i] = append(out[i], t)
	}
	for _, m := range applicable {
		for i := 0; i < n; i++ {
			if m.ParamCount() == n {
				add(i, m.Params[i])
			}
			if m.Variadic {
				add(i, m.paramTypeAt(i, true))
			}
		}
	}
	return out
}

// applicableAt reports whether every argument converts to m's parameters
// at tier. The fixed pass treats a variadic slot as an ordinary slice
// parameter; the variadic pass checks trailing arguments against its
// element type.
func (e *Engine) applicableAt(m *MethodDescriptor, args []any, varArgs bool, tier Tier) bool {
	if varArgs && !m.Variadic {
		return false
	}
	if !varArgs && m.ParamCount() != len(args) {
		return false
	}
	for i, a := range args {
		if !e.canConvert(a, m.paramTypeAt(i, varArgs), tier) {
			return false
		}
	}
	return true
}

// mostSpecific returns the single overload more specific than all others,
// or nil when no total order emerges.
func (e *Engine) mostSpecific(found []*MethodDescriptor, args []any, varArgs bool, tier Tier) *MethodDescriptor {
	if len(found) == 2 {
		switch e.compareOverloads(found[0], found[1], args, varArgs, tier) {
		case -1:
			return found[0]
		case 1:
			return found[1]
		}
		return nil
	}
	best := []*MethodDescriptor{found[0]}
	for _, cand := range found[1:] {
		add := false
		kept := best[:0]
		for _, b := range best {
			switch e.compareOverloads(cand, b, args, varArgs, tier) {
			case 0:
				add = true
				kept = append(kept, b)
			case -1:
				add = true
			default:
				kept = append(kept, b)
			}
		}
		best = kept
		if add {
			best = append(best, cand)
		}
	}
	if len(best) != 1 {
		return nil
	}
	// A candidate dropped early was never compared with later winners.
	for _, m := range found {
		if m != best[0] && e.compareOverloads(best[0], m, args, varArgs, tier) != -1 {
			return nil
		}
	}
	return best[0]
}

// compareOverloads returns -1 when m1 is more specific for args, 1 when m2
// is, and 0 when neither is. Each differing parameter is ranked first by
// the tier its argument converts at, then by assignability; all ranked
// positions must agree.
func (e *Engine) compareOverloads(m1, m2 *MethodDescriptor, args []any, varArgs bool, tier Tier) int {
	res := 0
	for i, a := range args {
		p1, p2 := m1.paramTypeAt(i, varArgs), m2.paramTypeAt(i, varArgs)
		if p1 == p2 {
			continue
		}
		r := e.compareByTier(p1, p2, a, tier)
		if r == 0 {
			if r = compareAssignable(p1, p2); r == 0 {
				continue
			}
		}
		if res == 0 {
			res = r
		} else if res != r {
			return 0
		}
	}
	if res == 0 && varArgs && m1.ParamCount() != m2.ParamCount() {
		// more fixed parameters is more specific
		if m1.ParamCount() > m2.ParamCount() {
			return -1
		}
		return 1
	}
	return res
}

// compareByTier prefers the parameter type the argument converts to at an
// earlier tier. Below LOOSE every applicable type converts at the same
// tier, so the comparison is skipped.
func (e *Engine) compareByTier(t1, t2 *Type, arg any, stop Tier) int {
	if stop <= TierStrict {
		return 0
	}
	for _, tier := range Tiers {
		if tier > stop {
			break
		}
		c1, c2 := e.canConvert(arg, t1, tier), e.canConvert(arg, t2, tier)
		if c1 != c2 {
			if c1 {
				return -1
			}
			return 1
		}
	}
	return 0
}

// compareAssignable prefers the narrower of two parameter types.
func compareAssignable(t1, t2 *Type) int {
	a12, a21 := IsAssignableFrom(t1, t2), IsAssignableFrom(t2, t1)
	switch {
	case a12 && !a21:
		return 1
	case a21 && !a12:
		return -1
	}
	return 0
}
