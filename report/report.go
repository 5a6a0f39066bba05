// Package report encodes structured interop errors and call-site cache
// statistics as canonical CBOR, so equal reports encode to equal bytes.
package report

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/hostbridge/interop"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ErrorReport is the guest-inspectable payload of an interop error.
type ErrorReport struct {
	Kind    string         `cbor:"1,keyasint"`
	Message string         `cbor:"2,keyasint"`
	Details map[string]any `cbor:"3,keyasint,omitempty"`
}

// SiteReport describes one call site.
type SiteReport struct {
	Name   string `cbor:"1,keyasint"`
	State  string `cbor:"2,keyasint"`
	Shapes int    `cbor:"3,keyasint"`
	Hits   uint64 `cbor:"4,keyasint"`
	Misses uint64 `cbor:"5,keyasint"`
}

// CacheReport aggregates the call sites of an engine.
type CacheReport struct {
	CallSites   int          `cbor:"1,keyasint"`
	Empty       int          `cbor:"2,keyasint"`
	Monomorphic int          `cbor:"3,keyasint"`
	Polymorphic int          `cbor:"4,keyasint"`
	Megamorphic int          `cbor:"5,keyasint"`
	Hits        uint64       `cbor:"6,keyasint"`
	Misses      uint64       `cbor:"7,keyasint"`
	Sites       []SiteReport `cbor:"8,keyasint,omitempty"`
}

// FromError builds the report for err. Kind, message and the structured
// details come from interop.ErrorDetails.
func FromError(err error) *ErrorReport {
	d := interop.ErrorDetails(err)
	r := &ErrorReport{Kind: interop.ErrorKind(err), Message: err.Error()}
	delete(d, "kind")
	delete(d, "message")
	if len(d) > 0 {
		r.Details = d
	}
	return r
}

// FromCacheStats converts engine statistics. Hit rates are left out; they
// derive from hits and misses.
func FromCacheStats(st interop.CacheStats) *CacheReport {
	r := &CacheReport{
		CallSites:   st.CallSites,
		Empty:       st.Empty,
		Monomorphic: st.Monomorphic,
		Polymorphic: st.Polymorphic,
		Megamorphic: st.Megamorphic,
		Hits:        st.Hits,
		Misses:      st.Misses,
	}
	for _, s := range st.Sites {
		r.Sites = append(r.Sites, SiteReport{
			Name:   s.Name,
			State:  s.State.String(),
			Shapes: s.Shapes,
			Hits:   s.Hits,
			Misses: s.Misses,
		})
	}
	return r
}

// MarshalError serializes an ErrorReport to CBOR bytes.
func MarshalError(r *ErrorReport) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalError deserializes an ErrorReport from CBOR bytes.
func UnmarshalError(data []byte) (*ErrorReport, error) {
	var r ErrorReport
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: unmarshal error report: %w", err)
	}
	return &r, nil
}

// MarshalCache serializes a CacheReport to CBOR bytes.
func MarshalCache(r *CacheReport) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalCache deserializes a CacheReport from CBOR bytes.
func UnmarshalCache(data []byte) (*CacheReport, error) {
	var r CacheReport
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: unmarshal cache report: %w", err)
	}
	return &r, nil
}

// Fingerprint hashes the canonical encoding of an error report. Errors of
// the same kind with the same payload share a fingerprint.
func Fingerprint(err error) ([32]byte, error) {
	data, merr := MarshalError(FromError(err))
	if merr != nil {
		return [32]byte{}, merr
	}
	return sha256.Sum256(data), nil
}
