package interop

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// ---------------------------------------------------------------------------
// Member lookup
// ---------------------------------------------------------------------------
//
// A name resolves in three steps: the plain name, a signature such as
// "Add(int32,int64)", and a mangled name such as "Add__int32__int64". The
// last two select exactly one overload and mark the member internal: it
// is callable but not enumerated.

// LookupMethod resolves a callable member on one side of c. internal is set
// when the match came from a signature or mangled name.
func (c *ClassDesc) LookupMethod(name string, static bool) (m Member, internal bool) {
	t := c.table(static)
	if m, ok := t.methods[name]; ok {
		return m, false
	}
	if base, params, ok := parseSignature(name); ok {
		if d := t.bySignature(base, params); d != nil {
			return d, true
		}
	}
	if base, params, ok := Demangle(name); ok {
		if d := t.bySignature(base, params); d != nil {
			return d, true
		}
	}
	return nil, false
}

// LookupField resolves a field or pseudo-field on one side of c.
func (c *ClassDesc) LookupField(name string, static bool) *FieldDescriptor {
	return c.table(static).fields[name]
}

func (t *memberTable) bySignature(name string, params []string) *MethodDescriptor {
	for _, d := range t.all[name] {
		names := d.ParamNames()
		if len(names) != len(params) {
			continue
		}
		match := true
		for i := range names {
			if normParam(names[i]) != normParam(params[i]) {
				match = false
				break
			}
		}
		if match {
			return d
		}
	}
	return nil
}

// normParam canonicalizes a parameter spelling: whitespace is dropped and a
// variadic slot may be written either "...T" or "[]T".
func normParam(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(s, "...") {
		s = "[]" + s[3:]
	}
	return s
}

// parseSignature splits "Name(T1,T2)" into its name and parameter types.
// Commas nested inside brackets, as in func and map types, do not split.
func parseSignature(s string) (string, []string, bool) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, false
	}
	name, inner := s[:open], s[open+1:len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return name, nil, true
	}
	var params []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return "", nil, false
			}
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, false
	}
	params = append(params, strings.TrimSpace(inner[start:]))
	return name, params, true
}

// ---------------------------------------------------------------------------
// Name mangling
// ---------------------------------------------------------------------------

const mangleSep = "__"

// Mangle renders a method name and parameter types as a single identifier:
// parts are joined with "__"; within a type '_' becomes "_1", '.' "_2",
// '[' "_3", ']' "_4", '*' "_5", '/' "_6", and any other character outside
// [A-Za-z0-9] "_0" followed by its UTF-16 code unit in four hex digits.
// A method without parameters mangles to its name followed by "__".
func Mangle(name string, params []string) string {
	var b strings.Builder
	b.WriteString(name)
	if len(params) == 0 {
		b.WriteString(mangleSep)
		return b.String()
	}
	for _, p := range params {
		b.WriteString(mangleSep)
		b.WriteString(mangleType(normParam(p)))
	}
	return b.String()
}

func mangleType(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '_':
			b.WriteString("_1")
		case r == '.':
			b.WriteString("_2")
		case r == '[':
			b.WriteString("_3")
		case r == ']':
			b.WriteString("_4")
		case r == '*':
			b.WriteString("_5")
		case r == '/':
			b.WriteString("_6")
		default:
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&b, "_0%04x", u)
			}
		}
	}
	return b.String()
}

// Demangle reverses Mangle.
func Demangle(s string) (string, []string, bool) {
	i := strings.Index(s, mangleSep)
	if i <= 0 {
		return "", nil, false
	}
	name, rest := s[:i], s[i+len(mangleSep):]
	if rest == "" {
		return name, nil, true
	}
	parts := strings.Split(rest, mangleSep)
	params := make([]string, len(parts))
	for j, p := range parts {
		t, ok := demangleType(p)
		if !ok {
			return "", nil, false
		}
		params[j] = t
	}
	return name, params, true
}

func demangleType(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	var b strings.Builder
	var units []uint16
	flush := func() {
		if len(units) > 0 {
			b.WriteString(string(utf16.Decode(units)))
			units = units[:0]
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			flush()
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", false
		}
		i++
		if s[i] == '0' {
			if i+5 > len(s) {
				return "", false
			}
			u, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err != nil {
				return "", false
			}
			units = append(units, uint16(u))
			i += 4
			continue
		}
		flush()
		switch s[i] {
		case '1':
			b.WriteByte('_')
		case '2':
			b.WriteByte('.')
		case '3':
			b.WriteByte('[')
		case '4':
			b.WriteByte(']')
		case '5':
			b.WriteByte('*')
		case '6':
			b.WriteByte('/')
		default:
			return "", false
		}
	}
	flush()
	return b.String(), true
}
