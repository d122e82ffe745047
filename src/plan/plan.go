// Package plan orders constraint settings so that every setting is resolved
// after all settings its modifiers read.
package plan

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sofmeright/cfgmod/src/constraint"
	"github.com/sofmeright/cfgmod/src/modifier"
)

// CycleError names a dependency cycle among settings. Cycle starts and ends
// with the same setting.
type CycleError struct {
	Cycle []constraint.Setting
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, s := range e.Cycle {
		names[i] = string(s)
	}
	return "cyclic constraint dependency: " + strings.Join(names, " -> ")
}

// Order returns every written setting in dependency order. Settings with no
// ordering constraint between them are ordered lexically. A modifier reading
// the setting it writes is not a cycle: it sees the value left by earlier
// layers of that setting.
func Order(deps []modifier.Deps) ([]constraint.Setting, error) {
	g := newGraph(deps)

	indeg := make(map[constraint.Setting]int, len(g.nodes))
	for n := range g.nodes {
		indeg[n] = 0
	}
	for n := range g.nodes {
		for m := range g.edges[n] {
			indeg[m]++
		}
	}

	var ready []constraint.Setting
	for n, d := range indeg {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sortSettings(ready)

	order := make([]constraint.Setting, 0, len(g.written))
	visited := 0
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		visited++
		if g.written[n] {
			order = append(order, n)
		}
		for _, m := range g.successors(n) {
			indeg[m]--
			if indeg[m] == 0 {
				ready = insertSorted(ready, m)
			}
		}
	}

	if visited != len(g.nodes) {
		return nil, &CycleError{Cycle: g.findCycle(indeg)}
	}
	return order, nil
}

type graph struct {
	nodes   map[constraint.Setting]bool
	written map[constraint.Setting]bool
	// edges[a][b] means a must resolve before b.
	edges map[constraint.Setting]map[constraint.Setting]bool
}

func newGraph(deps []modifier.Deps) *graph {
	g := &graph{
		nodes:   make(map[constraint.Setting]bool),
		written: make(map[constraint.Setting]bool),
		edges:   make(map[constraint.Setting]map[constraint.Setting]bool),
	}
	for _, d := range deps {
		g.nodes[d.Writes] = true
		g.written[d.Writes] = true
		for _, r := range d.Reads {
			g.nodes[r] = true
			if r == d.Writes {
				continue
			}
			if g.edges[r] == nil {
				g.edges[r] = make(map[constraint.Setting]bool)
			}
			g.edges[r][d.Writes] = true
		}
	}
	return g
}

func (g *graph) successors(n constraint.Setting) []constraint.Setting {
	out := make([]constraint.Setting, 0, len(g.edges[n]))
	for m := range g.edges[n] {
		out = append(out, m)
	}
	sortSettings(out)
	return out
}

// findCycle walks the nodes left over by the topological sort (all of which
// lie on or behind a cycle) and returns the first cycle reached, in edge order.
func (g *graph) findCycle(indeg map[constraint.Setting]int) []constraint.Setting {
	var remaining []constraint.Setting
	for n, d := range indeg {
		if d > 0 {
			remaining = append(remaining, n)
		}
	}
	sortSettings(remaining)

	visited := make(map[constraint.Setting]bool)
	onStack := make(map[constraint.Setting]int)
	var stack []constraint.Setting

	var visit func(n constraint.Setting) []constraint.Setting
	visit = func(n constraint.Setting) []constraint.Setting {
		visited[n] = true
		onStack[n] = len(stack)
		stack = append(stack, n)
		for _, m := range g.successors(n) {
			if idx, ok := onStack[m]; ok {
				cycle := append([]constraint.Setting(nil), stack[idx:]...)
				return append(cycle, m)
			}
			if !visited[m] {
				if c := visit(m); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, n)
		return nil
	}

	for _, n := range remaining {
		if !visited[n] {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return remaining
}

func sortSettings(s []constraint.Setting) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

func insertSorted(s []constraint.Setting, v constraint.Setting) []constraint.Setting {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Planner memoizes Order by the set of (written, reads) pairs. It is safe for
// concurrent use.
type Planner struct {
	mu    sync.RWMutex
	cache map[string]result

	Hits   atomic.Int64
	Misses atomic.Int64
}

type result struct {
	order []constraint.Setting
	err   error
}

// NewPlanner creates an empty planner cache.
func NewPlanner() *Planner {
	return &Planner{cache: make(map[string]result)}
}

// Plan returns Order(deps), computing it at most once per distinct input.
// The returned slice must not be modified.
func (p *Planner) Plan(deps []modifier.Deps) ([]constraint.Setting, error) {
	key := Fingerprint(deps)

	p.mu.RLock()
	r, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		p.Hits.Add(1)
		return r.order, r.err
	}

	p.Misses.Add(1)
	order, err := Order(deps)
	p.mu.Lock()
	p.cache[key] = result{order: order, err: err}
	p.mu.Unlock()
	return order, err
}

// Fingerprint is a canonical key for a set of dependency pairs: duplicates
// and input order do not change it.
func Fingerprint(deps []modifier.Deps) string {
	lines := make([]string, 0, len(deps))
	for _, d := range deps {
		reads := make([]string, len(d.Reads))
		for i, r := range d.Reads {
			reads[i] = string(r)
		}
		sort.Strings(reads)
		lines = append(lines, string(d.Writes)+"<"+strings.Join(reads, ","))
	}
	sort.Strings(lines)
	uniq := lines[:0]
	for i, l := range lines {
		if i == 0 || l != lines[i-1] {
			uniq = append(uniq, l)
		}
	}
	return strings.Join(uniq, ";")
}
