// hostbridge CLI - inspect Go packages and manifests the way the interop
// layer sees them.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/hostbridge/gowrap"
	"github.com/chazu/hostbridge/interop"
	"github.com/chazu/hostbridge/manifest"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	debug := flag.Bool("debug", false, "Log engine decisions")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hostbridge [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  describe <import-path>  List the members a package exposes to guests\n")
		fmt.Fprintf(os.Stderr, "  policy [dir]            Show the policy built from hostbridge.toml\n")
		fmt.Fprintf(os.Stderr, "  demo                    Run sample calls and print cache statistics\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	switch {
	case *debug:
		commonlog.Configure(2, nil)
	case *verbose:
		commonlog.Configure(1, nil)
	default:
		commonlog.Configure(0, nil)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "describe":
		err = describe(args[1:], *verbose)
	case "policy":
		err = showPolicy(args[1:])
	case "demo":
		err = runDemo(*verbose)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func describe(args []string, verbose bool) error {
	if len(args) == 0 {
		return fmt.Errorf("describe requires an import path")
	}
	for _, path := range args {
		if verbose {
			fmt.Printf("Loading %s...\n", path)
		}
		pkg, err := gowrap.Load(path)
		if err != nil {
			return err
		}
		if err := gowrap.WriteListing(os.Stdout, pkg); err != nil {
			return err
		}
	}
	return nil
}

func showPolicy(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Printf("No %s found; using defaults\n", manifest.FileName)
		m = &manifest.Manifest{}
	} else {
		fmt.Printf("Manifest: %s\n", m.Dir)
	}
	p, err := m.Policy(nil)
	if err != nil {
		return err
	}
	printPolicy(p)
	return nil
}

func printPolicy(p *interop.Policy) {
	vis := "public"
	if p.Visibility == interop.Annotated {
		vis = "annotated"
	}
	fmt.Printf("  visibility:      %s\n", vis)
	var views []string
	for _, v := range []struct {
		name string
		on   bool
	}{
		{"array", p.ArrayAccess},
		{"list", p.ListAccess},
		{"buffer", p.BufferAccess},
		{"iterable", p.IterableAccess},
		{"iterator", p.IteratorAccess},
		{"map", p.MapAccess},
		{"big-integer", p.BigIntegerNumberAccess},
	} {
		if v.on {
			views = append(views, v.name)
		}
	}
	fmt.Printf("  access:          %s\n", strings.Join(views, ", "))
	fmt.Printf("  method scoping:  %t\n", p.MethodScoping)
	fmt.Printf("  max call depth:  %d\n", p.MaxCallDepth)
	fmt.Printf("  call-site limit: %d\n", p.CallSiteLimit)
	fmt.Printf("  cache:           %s\n", cacheMode(p))
	for _, m := range p.Mappings {
		fmt.Printf("  mapping:         %s -> %v at %s\n", m.Name, m.Target, m.Priority)
	}
}

func cacheMode(p *interop.Policy) string {
	switch {
	case p.DisableCallSiteCache:
		return "disabled"
	case p.VerifyCallSites:
		return "verified"
	}
	return "on"
}
