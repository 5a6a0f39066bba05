package main

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/chazu/hostbridge/guest"
	"github.com/chazu/hostbridge/interop"
	"github.com/chazu/hostbridge/report"
)

// ledger is the host type the demo exposes.
type ledger struct {
	Owner   string
	entries []float64
}

func (l *ledger) Record(amount int64) int {
	l.entries = append(l.entries, float64(amount))
	return len(l.entries)
}

func (l *ledger) Total() float64 {
	var t float64
	for _, e := range l.entries {
		t += e
	}
	return t
}

func (l *ledger) Each(fn func(float64) bool) {
	for _, e := range l.entries {
		if !fn(e) {
			return
		}
	}
}

func (l *ledger) Hold(d time.Duration) string { return "held for " + d.String() }

func runDemo(verbose bool) error {
	e, err := interop.NewEngine(nil)
	if err != nil {
		return err
	}
	err = e.Register(interop.ClassOf[*ledger]().
		Named("Ledger").
		Constructor(func(owner string) *ledger { return &ledger{Owner: owner} }).
		Overload("Record",
			func(l *ledger, amount float64) int {
				l.entries = append(l.entries, amount)
				return len(l.entries)
			},
			func(l *ledger, amounts []int64) int {
				for _, a := range amounts {
					l.Record(a)
				}
				return len(l.entries)
			}))
	if err != nil {
		return err
	}

	static, err := e.StaticView(reflect.TypeFor[*ledger]())
	if err != nil {
		return err
	}
	inst, err := static.Instantiate("demo")
	if err != nil {
		return err
	}
	obj := inst.(*interop.HostObject)
	ctx := context.Background()
	site := e.NewCallSite("ledger.record")

	for _, arg := range []any{int32(10), 2.5, int64(7), guest.NewArray(1, 2, 3), int8(4), 0.5} {
		n, err := obj.InvokeMemberAt(ctx, site, "Record", arg)
		if err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Record(%v) -> %v\n", arg, n)
		}
	}
	total, err := obj.InvokeMember(ctx, "Total")
	if err != nil {
		return err
	}
	fmt.Printf("%s total: %v\n", obj, total)

	var seen int
	each := guest.Lambda("count", func(args ...any) (any, error) {
		seen++
		return seen < 3, nil
	})
	if _, err := obj.InvokeMember(ctx, "Each", each); err != nil {
		return err
	}
	fmt.Printf("callback saw %d entries\n", seen)

	held, err := obj.InvokeMember(ctx, "Hold", guest.Duration(90*time.Second))
	if err != nil {
		return err
	}
	fmt.Println(held)

	// A failing call shows the structured error payload.
	if _, err := obj.InvokeMember(ctx, "Record", "ten", "twenty"); err != nil {
		r := report.FromError(err)
		data, merr := report.MarshalError(r)
		if merr != nil {
			return merr
		}
		fmt.Printf("error %s (%d bytes CBOR): %s\n", r.Kind, len(data), r.Message)
	}

	stats := e.CallSiteStats()
	fmt.Printf("call sites: %d (%d mono, %d poly, %d mega), hit rate %.1f%%\n",
		stats.CallSites, stats.Monomorphic, stats.Polymorphic, stats.Megamorphic, stats.HitRate)
	data, err := report.MarshalCache(report.FromCacheStats(stats))
	if err != nil {
		return err
	}
	fmt.Printf("cache report: %d bytes CBOR\n", len(data))
	return nil
}
