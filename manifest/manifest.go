// Package manifest handles hostbridge.toml access configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/hostbridge/interop"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "hostbridge.toml"

var log = commonlog.GetLogger("hostbridge.manifest")

// Manifest represents a hostbridge.toml configuration.
type Manifest struct {
	Access   Access    `toml:"access"`
	Calls    Calls     `toml:"calls"`
	Exports  []Export  `toml:"export"`
	Mappings []Mapping `toml:"mapping"`

	// Dir is the directory containing the hostbridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Access selects which host members and structural views the guest sees.
// Unset view flags keep the defaults of interop.DefaultPolicy.
type Access struct {
	Visibility    string   `toml:"visibility"`
	Array         *bool    `toml:"array"`
	List          *bool    `toml:"list"`
	Buffer        *bool    `toml:"buffer"`
	Iterable      *bool    `toml:"iterable"`
	Iterator      *bool    `toml:"iterator"`
	Map           *bool    `toml:"map"`
	BigInteger    bool     `toml:"big-integer"`
	MethodScoping *bool    `toml:"method-scoping"`
	Implementable []string `toml:"implementable"`
}

// Calls configures dispatch limits and the call-site cache.
type Calls struct {
	MaxDepth      int  `toml:"max-depth"`
	CallSiteLimit int  `toml:"call-site-limit"`
	DisableCache  bool `toml:"disable-cache"`
	Verify        bool `toml:"verify"`
}

// Export lists methods visible under annotated visibility.
type Export struct {
	Type    string   `toml:"type"`
	Methods []string `toml:"methods"`
}

// Mapping enables one rule from the built-in mapping catalogue.
type Mapping struct {
	Rule     string `toml:"rule"`
	Priority string `toml:"priority"`
	// Target picks the integer type for string-to-int.
	Target string `toml:"target"`
	// Layout is the time layout for string-to-time.
	Layout string `toml:"layout"`
	// Unit is the duration unit for number-to-duration.
	Unit string `toml:"unit"`
}

// Types resolves the type names a manifest mentions. Embedders list the Go
// types they expose, keyed by the names used in hostbridge.toml.
type Types map[string]reflect.Type

// Load parses a hostbridge.toml file from the given directory. Unknown keys
// are rejected.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	log.Debugf("loaded %s: %d mappings, %d exports", path, len(m.Mappings), len(m.Exports))
	return m, nil
}

// Parse decodes manifest text.
func Parse(text string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(text, &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a hostbridge.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Policy builds the interop policy the manifest describes. types resolves
// the names used by export and implementable entries.
func (m *Manifest) Policy(types Types) (*interop.Policy, error) {
	p := interop.DefaultPolicy()

	switch m.Access.Visibility {
	case "", "public":
		p.Visibility = interop.PublicOnly
	case "annotated":
		p.Visibility = interop.Annotated
	default:
		return nil, fmt.Errorf("access.visibility: unknown mode %q", m.Access.Visibility)
	}
	setFlag(&p.ArrayAccess, m.Access.Array)
	setFlag(&p.ListAccess, m.Access.List)
	setFlag(&p.BufferAccess, m.Access.Buffer)
	setFlag(&p.IterableAccess, m.Access.Iterable)
	setFlag(&p.IteratorAccess, m.Access.Iterator)
	setFlag(&p.MapAccess, m.Access.Map)
	setFlag(&p.MethodScoping, m.Access.MethodScoping)
	p.BigIntegerNumberAccess = m.Access.BigInteger

	if m.Calls.MaxDepth < 0 || m.Calls.CallSiteLimit < 0 {
		return nil, fmt.Errorf("calls: limits must not be negative")
	}
	if m.Calls.MaxDepth > 0 {
		p.MaxCallDepth = m.Calls.MaxDepth
	}
	if m.Calls.CallSiteLimit > 0 {
		p.CallSiteLimit = m.Calls.CallSiteLimit
	}
	p.DisableCallSiteCache = m.Calls.DisableCache
	p.VerifyCallSites = m.Calls.Verify

	for _, name := range m.Access.Implementable {
		rt, ok := types[name]
		if !ok {
			return nil, fmt.Errorf("access.implementable: unknown type %q", name)
		}
		p.AllowImplementation(rt)
	}
	for i, ex := range m.Exports {
		rt, ok := types[ex.Type]
		if !ok {
			return nil, fmt.Errorf("export[%d]: unknown type %q", i, ex.Type)
		}
		p.ExportMethods(rt, ex.Methods...)
	}
	for i, mp := range m.Mappings {
		tm, err := mp.build()
		if err != nil {
			return nil, fmt.Errorf("mapping[%d]: %w", i, err)
		}
		p.AddMapping(tm)
	}
	return p, nil
}

func setFlag(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
