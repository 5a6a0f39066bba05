package interop

import (
	"fmt"
	"strings"
)

// Tier is a conversion precision level. Lower tiers are preferred; every
// conversion allowed at a tier is also allowed at all later tiers.
type Tier uint8

const (
	// TierHighest is reserved for target mappings that must override
	// every built-in rule.
	TierHighest Tier = iota
	// TierStrict covers lossless conversions: subtyping, exact-fit numbers,
	// boxing and unboxing.
	TierStrict
	// TierLoose covers safe representation changes: guest arrays as List
	// views, guest objects as Map views, temporal values as time.Time.
	TierLoose
	// TierCoerce covers copying and lossy conversions: array copies,
	// numeric narrowing, char and integer interchange.
	TierCoerce
	// TierFunctionProxy wraps a guest executable as a Go func or a
	// single-method interface.
	TierFunctionProxy
	// TierObjectProxyIface implements a Go interface with a guest object.
	TierObjectProxyIface
	// TierObjectProxyClass fills an implementable struct with guest members.
	TierObjectProxyClass
	// TierHostProxy hands a host-implemented proxy back to the host.
	TierHostProxy
	// TierLowest is reserved for target mappings that only apply when
	// nothing else does.
	TierLowest
)

// Tiers lists every tier in evaluation order.
var Tiers = [...]Tier{
	TierHighest,
	TierStrict,
	TierLoose,
	TierCoerce,
	TierFunctionProxy,
	TierObjectProxyIface,
	TierObjectProxyClass,
	TierHostProxy,
	TierLowest,
}

var tierNames = [...]string{
	TierHighest:          "highest",
	TierStrict:           "strict",
	TierLoose:            "loose",
	TierCoerce:           "coerce",
	TierFunctionProxy:    "function-proxy",
	TierObjectProxyIface: "object-proxy-iface",
	TierObjectProxyClass: "object-proxy-class",
	TierHostProxy:        "host-proxy",
	TierLowest:           "lowest",
}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return fmt.Sprintf("tier(%d)", t)
}

// ParseTier parses a tier name as printed by Tier.String. Underscores and
// case are ignored.
func ParseTier(s string) (Tier, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for t, name := range tierNames {
		if name == norm {
			return Tier(t), nil
		}
	}
	return 0, fmt.Errorf("unknown conversion tier %q", s)
}

func minTier(a, b Tier) Tier {
	if a < b {
		return a
	}
	return b
}
