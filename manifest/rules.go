package manifest

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/hostbridge/interop"
)

// RuleName converts a rule name to the catalogue's kebab-case form.
// "StringToDuration" -> "string-to-duration", "string_to_int" -> "string-to-int"
func RuleName(s string) string {
	var words []string
	current := ""
	for i, r := range s {
		if r == '-' || r == '_' || r == ' ' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
			continue
		}
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev >= 'a' && prev <= 'z' {
				words = append(words, current)
				current = ""
			}
		}
		current += string(r)
	}
	if current != "" {
		words = append(words, current)
	}
	return strings.ToLower(strings.Join(words, "-"))
}

// rule builds a target mapping from its manifest entry.
type rule func(m Mapping) (interop.TargetMapping, error)

var catalogue = map[string]rule{
	"string-to-duration": stringToDuration,
	"string-to-time":     stringToTime,
	"string-to-int":      stringToInt,
	"string-to-bigint":   stringToBigInt,
	"number-to-duration": numberToDuration,
	"string-to-bool":     stringToBool,
}

// Rules lists the catalogue's rule names.
func Rules() []string {
	names := make([]string, 0, len(catalogue))
	for n := range catalogue {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (m Mapping) build() (interop.TargetMapping, error) {
	name := RuleName(m.Rule)
	r, ok := catalogue[name]
	if !ok {
		return interop.TargetMapping{}, fmt.Errorf("unknown rule %q", m.Rule)
	}
	tm, err := r(m)
	if err != nil {
		return interop.TargetMapping{}, fmt.Errorf("%s: %w", name, err)
	}
	tm.Priority = interop.TierLowest
	if m.Priority != "" {
		tier, err := interop.ParseTier(m.Priority)
		if err != nil {
			return interop.TargetMapping{}, fmt.Errorf("%s: %w", name, err)
		}
		switch tier {
		case interop.TierHighest, interop.TierStrict, interop.TierLoose, interop.TierCoerce, interop.TierLowest:
		default:
			return interop.TargetMapping{}, fmt.Errorf("%s: priority %s is not a mapping tier", name, tier)
		}
		tm.Priority = tier
	}
	return tm, nil
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func stringToDuration(Mapping) (interop.TargetMapping, error) {
	return interop.NewMapping("string-to-duration", 0,
		func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			_, err := time.ParseDuration(s)
			return err == nil
		},
		func(v any) (time.Duration, error) {
			return time.ParseDuration(v.(string))
		}), nil
}

func stringToTime(m Mapping) (interop.TargetMapping, error) {
	layout := m.Layout
	if layout == "" {
		layout = time.RFC3339
	}
	return interop.NewMapping("string-to-time", 0,
		func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			_, err := time.Parse(layout, s)
			return err == nil
		},
		func(v any) (time.Time, error) {
			return time.Parse(layout, v.(string))
		}), nil
}

var intTargets = map[string]reflect.Type{
	"":      reflect.TypeFor[int](),
	"int":   reflect.TypeFor[int](),
	"int32": reflect.TypeFor[int32](),
	"int64": reflect.TypeFor[int64](),
}

func stringToInt(m Mapping) (interop.TargetMapping, error) {
	rt, ok := intTargets[m.Target]
	if !ok {
		return interop.TargetMapping{}, fmt.Errorf("unsupported target %q", m.Target)
	}
	bits := rt.Bits()
	parse := func(v any) (int64, error) {
		return strconv.ParseInt(strings.TrimSpace(v.(string)), 10, bits)
	}
	return interop.TargetMapping{
		Name:   "string-to-int",
		Target: rt,
		Accepts: func(v any) bool {
			if !isString(v) {
				return false
			}
			_, err := parse(v)
			return err == nil
		},
		Convert: func(v any) (any, error) {
			n, err := parse(v)
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(n).Convert(rt).Interface(), nil
		},
	}, nil
}

func stringToBigInt(Mapping) (interop.TargetMapping, error) {
	parse := func(v any) (*big.Int, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		return new(big.Int).SetString(strings.TrimSpace(s), 0)
	}
	return interop.NewMapping("string-to-bigint", 0,
		func(v any) bool {
			_, ok := parse(v)
			return ok
		},
		func(v any) (*big.Int, error) {
			b, ok := parse(v)
			if !ok {
				return nil, fmt.Errorf("%q is not an integer", v)
			}
			return b, nil
		}), nil
}

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
}

func numberToDuration(m Mapping) (interop.TargetMapping, error) {
	unit := m.Unit
	if unit == "" {
		unit = "ms"
	}
	scale, ok := durationUnits[unit]
	if !ok {
		return interop.TargetMapping{}, fmt.Errorf("unknown unit %q", m.Unit)
	}
	toFloat := func(v any) (float64, bool) {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			return 0, false
		}
		switch {
		case rv.CanInt():
			return float64(rv.Int()), true
		case rv.CanUint():
			return float64(rv.Uint()), true
		case rv.CanFloat():
			f := rv.Float()
			return f, !math.IsNaN(f) && !math.IsInf(f, 0)
		}
		return 0, false
	}
	return interop.NewMapping("number-to-duration", 0,
		func(v any) bool {
			if _, isDur := v.(time.Duration); isDur {
				return false
			}
			f, ok := toFloat(v)
			return ok && math.Abs(f*float64(scale)) <= math.MaxInt64
		},
		func(v any) (time.Duration, error) {
			f, _ := toFloat(v)
			return time.Duration(f * float64(scale)), nil
		}), nil
}

func stringToBool(Mapping) (interop.TargetMapping, error) {
	return interop.NewMapping("string-to-bool", 0,
		func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			_, err := strconv.ParseBool(s)
			return err == nil
		},
		func(v any) (bool, error) {
			return strconv.ParseBool(v.(string))
		}), nil
}
