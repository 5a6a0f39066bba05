package gowrap

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chazu/hostbridge/interop"
)

// WriteListing renders the surface of pkg, one line per member. Callables
// show their signature name, mangled name, arity, results and scoped
// parameter positions.
func WriteListing(w io.Writer, pkg *Package) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "package %s (%s)\n", pkg.Name, pkg.Path)

	if len(pkg.Statics) > 0 || len(pkg.Consts) > 0 {
		fmt.Fprintf(tw, "\nstatic %s\n", pkg.Name)
		for _, c := range pkg.Consts {
			fmt.Fprintf(tw, "  const %s\t%s\t%s\n", c.Name, c.Spelling, c.Value)
		}
		for _, fn := range pkg.Statics {
			writeCallable(tw, "  ", fn)
		}
	}
	for _, c := range pkg.Classes {
		header := c.Kind.String()
		if c.Final() {
			header = "final " + header
		}
		fmt.Fprintf(tw, "\n%s %s.%s\n", header, pkg.Name, c.Name)
		for _, k := range c.Constructors {
			writeCallable(tw, "  new ", k)
		}
		for _, f := range c.Fields {
			fmt.Fprintf(tw, "  field %s\t%s\t%s\t%s\n", f.Name, f.Spelling, f.Kind, fieldFlags(f, c))
		}
		for _, m := range c.Methods {
			writeCallable(tw, "  ", m)
		}
	}
	return tw.Flush()
}

func fieldFlags(f Field, c Class) string {
	var flags []string
	if f.ReadOnly {
		flags = append(flags, "readonly")
	}
	if f.Export {
		flags = append(flags, "export")
	}
	for _, h := range c.Hooks {
		if h == f.Name {
			flags = append(flags, "hook")
		}
	}
	return strings.Join(flags, ",")
}

func writeCallable(w io.Writer, prefix string, fn Callable) {
	results := make([]string, 0, len(fn.Results))
	for _, r := range fn.Results {
		results = append(results, r.Spelling)
	}
	lo, hi := fn.Arity()
	arity := fmt.Sprint(lo)
	if hi == interop.UnboundedArity {
		arity += "+"
	}
	scoped := ""
	if ps := fn.ScopedParams(); len(ps) > 0 {
		scoped = fmt.Sprintf("scoped%v", ps)
	}
	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", prefix, fn.Signature(), fn.MangledName(), arity, strings.Join(results, ", "), scoped)
}
