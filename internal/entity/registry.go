package entity

import (
	"fmt"
	"slices"
	"strings"
)

// Registry holds entity definitions in declaration order.
//
// A registry is immutable once built; Select returns a new one.
type Registry struct {
	defs   []Definition
	byName map[string]int
}

// NewRegistry validates defs and checks that every dependency is registered
// and the dependency graph has no cycle.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("entity %s: defined more than once", d.Name)
		}
		r.byName[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}

	for _, d := range r.defs {
		for _, dep := range d.DependsOn {
			if _, ok := r.byName[dep]; !ok {
				return nil, fmt.Errorf("entity %s: unknown dependency %q", d.Name, dep)
			}
		}
	}

	if cycle := findCycle(r.graph(), r.Names()); cycle != nil {
		return nil, fmt.Errorf("entity dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	return r, nil
}

// DefaultRegistry returns a registry of the built-in definitions.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		panic(fmt.Sprintf("built-in entities: %v", err))
	}
	return r
}

// With returns a registry extended with extra definitions. An extra
// definition replaces a registered one of the same name.
func (r *Registry) With(extra ...Definition) (*Registry, error) {
	defs := slices.Clone(r.defs)
	for _, d := range extra {
		if i, ok := r.byName[d.Name]; ok {
			defs[i] = d
			continue
		}
		defs = append(defs, d)
	}
	return NewRegistry(defs...)
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Names returns the registered names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

// Definitions returns a copy of the definitions in declaration order.
func (r *Registry) Definitions() []Definition {
	return slices.Clone(r.defs)
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Select returns a registry holding the named definitions and everything
// they transitively depend on. No names selects everything.
func (r *Registry) Select(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}

	keep := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if keep[name] {
			return nil
		}
		d, ok := r.Get(name)
		if !ok {
			return fmt.Errorf("unknown entity %q: must be one of %v", name, r.Names())
		}
		keep[name] = true
		for _, dep := range d.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}

	var defs []Definition
	for _, d := range r.defs {
		if keep[d.Name] {
			defs = append(defs, d)
		}
	}
	return NewRegistry(defs...)
}

// Waves groups definitions into dependency levels. Wave 0 holds
// definitions with no dependencies; wave n holds those whose deepest
// dependency is in wave n-1. Within a wave, declaration order is kept.
func (r *Registry) Waves() [][]Definition {
	level := make(map[string]int, len(r.defs))
	var depth func(name string) int
	depth = func(name string) int {
		if l, ok := level[name]; ok {
			return l
		}
		l := 0
		for _, dep := range r.defs[r.byName[name]].DependsOn {
			l = max(l, depth(dep)+1)
		}
		level[name] = l
		return l
	}

	var waves [][]Definition
	for _, d := range r.defs {
		l := depth(d.Name)
		for len(waves) <= l {
			waves = append(waves, nil)
		}
		waves[l] = append(waves[l], d)
	}
	return waves
}

func (r *Registry) graph() dependencyGraph {
	g := make(dependencyGraph, len(r.defs))
	for _, d := range r.defs {
		g[d.Name] = d.DependsOn
	}
	return g
}
