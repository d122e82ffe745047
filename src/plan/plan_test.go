package plan_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/modifier"
	"github.com/sofmeright/cfgmod/src/plan"
)

func deps(writes string, reads ...string) modifier.Deps {
	d := modifier.Deps{Writes: constraint.Setting(writes)}
	for _, r := range reads {
		d.Reads = append(d.Reads, constraint.Setting(r))
	}
	return d
}

func settings(names ...string) []constraint.Setting {
	out := make([]constraint.Setting, len(names))
	for i, n := range names {
		out[i] = constraint.Setting(n)
	}
	return out
}

func TestOrder(t *testing.T) {
	tests := []struct {
		name string
		deps []modifier.Deps
		want []constraint.Setting
	}{
		{
			name: "independent settings are lexical",
			deps: []modifier.Deps{deps("os"), deps("arch"), deps("compiler")},
			want: settings("arch", "compiler", "os"),
		},
		{
			name: "reader after the setting it reads",
			deps: []modifier.Deps{deps("abi", "os"), deps("os")},
			want: settings("os", "abi"),
		},
		{
			name: "chain",
			deps: []modifier.Deps{deps("a", "b"), deps("b", "c"), deps("c")},
			want: settings("c", "b", "a"),
		},
		{
			name: "read-only settings are not part of the order",
			deps: []modifier.Deps{deps("compiler", "os", "zz")},
			want: settings("compiler"),
		},
		{
			name: "self read is not a cycle",
			deps: []modifier.Deps{deps("os", "os"), deps("arch", "os")},
			want: settings("os", "arch"),
		},
		{
			name: "diamond with lexical tie break",
			deps: []modifier.Deps{deps("d", "b", "c"), deps("c", "a"), deps("b", "a"), deps("a")},
			want: settings("a", "b", "c", "d"),
		},
		{
			name: "ready node inserted in order",
			deps: []modifier.Deps{deps("m"), deps("z", "a"), deps("a"), deps("b")},
			want: settings("a", "b", "m", "z"),
		},
		{
			name: "empty",
			want: settings(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := plan.Order(tt.deps)
			if err != nil {
				t.Fatalf("Order: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrderCycle(t *testing.T) {
	_, err := plan.Order([]modifier.Deps{deps("a", "b"), deps("b", "a"), deps("c", "a")})

	var cyc *plan.CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("want CycleError, got %v", err)
	}
	if diff := cmp.Diff(settings("a", "b", "a"), cyc.Cycle); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}
	if got, want := err.Error(), "cyclic constraint dependency: a -> b -> a"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOrderLongCycleNamesEveryMember(t *testing.T) {
	_, err := plan.Order([]modifier.Deps{deps("x", "z"), deps("y", "x"), deps("z", "y"), deps("w", "x")})

	var cyc *plan.CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("want CycleError, got %v", err)
	}
	if diff := cmp.Diff(settings("x", "y", "z", "x"), cyc.Cycle); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}
}

func TestFingerprintIgnoresOrderAndDuplicates(t *testing.T) {
	a := plan.Fingerprint([]modifier.Deps{deps("os"), deps("compiler", "os", "arch")})
	b := plan.Fingerprint([]modifier.Deps{deps("compiler", "arch", "os"), deps("os"), deps("os")})
	if a != b {
		t.Errorf("fingerprints differ: %q vs %q", a, b)
	}
}

func TestPlannerMemoizes(t *testing.T) {
	p := plan.NewPlanner()
	in := []modifier.Deps{deps("compiler", "os"), deps("os")}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Plan(in)
			if err != nil {
				t.Errorf("Plan: %v", err)
				return
			}
			if diff := cmp.Diff(settings("os", "compiler"), got); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		}()
	}
	wg.Wait()

	if _, err := p.Plan(in); err != nil {
		t.Fatal(err)
	}
	if p.Hits.Load() == 0 {
		t.Errorf("expected cache hits, got none")
	}
	if total := p.Hits.Load() + p.Misses.Load(); total != 9 {
		t.Errorf("hits+misses = %d, want 9", total)
	}
}

func TestPlannerCachesCycles(t *testing.T) {
	p := plan.NewPlanner()
	in := []modifier.Deps{deps("a", "b"), deps("b", "a")}
	for i := 0; i < 2; i++ {
		var cyc *plan.CycleError
		if _, err := p.Plan(in); !errors.As(err, &cyc) {
			t.Fatalf("attempt %d: want CycleError, got %v", i, err)
		}
	}
	if p.Misses.Load() != 1 {
		t.Errorf("misses = %d, want 1", p.Misses.Load())
	}
}
