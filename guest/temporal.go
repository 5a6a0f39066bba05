package guest

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/hostbridge/interop"
)

// Temporal is a guest date, time, zone or duration. Which parts are
// meaningful is given by its facets.
type Temporal struct {
	facets interop.Facets
	t      time.Time
	d      time.Duration
}

// Instant carries date, time and zone.
func Instant(t time.Time) *Temporal {
	return &Temporal{facets: interop.FacetDate | interop.FacetTime | interop.FacetZone, t: t}
}

// LocalDateTime carries date and time without a zone.
func LocalDateTime(year int, month time.Month, day, hour, min, sec int) *Temporal {
	return &Temporal{facets: interop.FacetDate | interop.FacetTime, t: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// Date carries only a calendar date.
func Date(year int, month time.Month, day int) *Temporal {
	return &Temporal{facets: interop.FacetDate, t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Zone carries only a time zone.
func Zone(loc *time.Location) *Temporal {
	return &Temporal{facets: interop.FacetZone, t: time.Unix(0, 0).In(loc)}
}

// Duration carries only a length of time.
func Duration(d time.Duration) *Temporal {
	return &Temporal{facets: interop.FacetDuration, d: d}
}

func (t *Temporal) Facets() interop.Facets { return t.facets }

var errNoTime = errors.New("value has no date or time")

func (t *Temporal) AsTime() (time.Time, error) {
	if t.facets&(interop.FacetDate|interop.FacetTime|interop.FacetZone) == 0 {
		return time.Time{}, errNoTime
	}
	return t.t, nil
}

func (t *Temporal) AsDuration() (time.Duration, error) {
	if t.facets&interop.FacetDuration == 0 {
		return 0, fmt.Errorf("value with facets %04b has no duration", t.facets)
	}
	return t.d, nil
}

func (t *Temporal) String() string {
	switch {
	case t.facets&interop.FacetDuration != 0:
		return t.d.String()
	case t.facets.Instant():
		return t.t.Format(time.RFC3339)
	case t.facets == interop.FacetDate:
		return t.t.Format(time.DateOnly)
	case t.facets == interop.FacetZone:
		return t.t.Location().String()
	}
	return t.t.Format(time.DateTime)
}
