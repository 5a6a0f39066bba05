package interop

import (
	"time"
)

// Temporal protocol on time.Time, time.Duration and *time.Location.

func temporalFacets(v any) Facets {
	switch x := v.(type) {
	case time.Time:
		return FacetDate | FacetTime | FacetZone
	case time.Duration:
		return FacetDuration
	case *time.Location:
		if x != nil {
			return FacetZone
		}
	}
	return 0
}

// Facets reports which temporal components h carries.
func (h *HostObject) Facets() Facets {
	if h.static {
		return 0
	}
	return temporalFacets(h.value)
}

// AsTime returns the wrapped time. A zone yields the zero instant of the
// epoch in that zone.
func (h *HostObject) AsTime() (time.Time, error) {
	switch x := h.hostValue().(type) {
	case time.Time:
		return x, nil
	case *time.Location:
		if x != nil {
			return time.Unix(0, 0).In(x), nil
		}
	}
	return time.Time{}, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "as time"}
}

func (h *HostObject) AsDuration() (time.Duration, error) {
	if d, ok := h.hostValue().(time.Duration); ok {
		return d, nil
	}
	return 0, &UnsupportedMessageError{Receiver: typeNameOf(h), Message: "as duration"}
}
