// Package order implements the Compile-Order Builder and top-level
// selector of component 4.4: a deque-ordered topological assembly over
// strong/weak edges, with cycle detection confined to strong edges.
// Grounded on the original tool's VhdList.move_to_front /
// determine_compile_order (vhdeps/vhdl.py), generalized from its
// `collections.deque` + recursive closures to an explicit Go slice-backed
// deque and a visited map.
package order

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-vhdeps/vhdeps/internal/registry"
	"github.com/go-vhdeps/vhdeps/internal/resolve"
	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

// Root names a required top-level unit via a "[LIB.]NAME" glob, matched
// case-insensitively against (library, name) of every accepted definition
// in the registry (§4.4's "Seeding").
type Root string

// Builder accumulates the compile order as a double-ended list, matching
// the original's deque-based move_to_front algorithm.
type Builder struct {
	reg   *registry.Registry
	order []*unit.File // front-to-back; order[0] is the most recently moved-to-front
	index map[*unit.File]int
}

func newBuilder(reg *registry.Registry) *Builder {
	return &Builder{reg: reg, index: make(map[*unit.File]int)}
}

// Build computes the compile order from the given roots (or, if roots is
// empty, from every accepted unit definition), per §4.4. warnings
// collects "glob matched nothing" notices for the caller to print.
func Build(reg *registry.Registry, roots []Root) (files []*unit.File, warnings []string, err error) {
	b := newBuilder(reg)

	seeds, warnings, err := seedUnits(reg, roots)
	if err != nil {
		return nil, warnings, err
	}

	for _, seed := range seeds {
		if err := b.add(seed.File, false); err != nil {
			return nil, warnings, err
		}
	}

	return b.compileOrder(), warnings, nil
}

// seedUnits expands roots into the accepted units to seed the builder
// with, or returns every accepted unit when roots is empty.
func seedUnits(reg *registry.Registry, roots []Root) ([]registry.AcceptedUnit, []string, error) {
	accepted := reg.AcceptedUnits()

	if len(roots) == 0 {
		sortUnitsReverse(accepted)
		return accepted, nil, nil
	}

	var warnings []string
	var seeds []registry.AcceptedUnit
	seen := map[*unit.File]bool{}
	for _, root := range roots {
		// Split on the *first* dot, mirroring the original tool's
		// `req.split('.', maxsplit=1)`: everything after it is the name,
		// so a name containing dots is still matched as a single glob.
		lib, name, hasDot := strings.Cut(string(root), ".")
		if !hasDot {
			lib, name = "work", lib
		}
		matched := false
		for _, u := range accepted {
			if globMatch(lib, u.Lib) && globMatch(name, u.Name) {
				matched = true
				if !seen[u.File] {
					seen[u.File] = true
					seeds = append(seeds, u)
				}
			}
		}
		if !matched {
			warnings = append(warnings, fmt.Sprintf("root pattern %q matched no accepted design unit", root))
		}
	}
	sortUnitsReverse(seeds)
	return seeds, warnings, nil
}

func globMatch(pattern, s string) bool {
	matched, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(s))
	return err == nil && matched
}

// sortUnitsReverse sorts u in place, reverse order by (kind, lib, name),
// per §4.4's determinism rule ("seeds are iterated reverse-sorted").
func sortUnitsReverse(u []registry.AcceptedUnit) {
	sort.Slice(u, func(i, j int) bool {
		return unitKey(u[i]) > unitKey(u[j])
	})
}

func unitKey(u registry.AcceptedUnit) string {
	return u.Kind + " " + u.Lib + " " + u.Name
}

// add implements the Add(F, strong) operation from §4.4.
func (b *Builder) add(f *unit.File, strong bool) error {
	if _, ok := b.index[f]; !ok {
		b.pushFront(f)
		if err := resolve.Resolve(f, b.reg); err != nil {
			return err
		}
		for _, d := range sortedByPath(f.StrongPreds) {
			if err := b.add(d, true); err != nil {
				return err
			}
		}
		for _, d := range sortedByPath(f.WeakPreds) {
			if err := b.add(d, false); err != nil {
				return err
			}
		}
		return nil
	}
	if strong {
		return b.moveToFront(f, map[*unit.File]bool{f: true}, []*unit.File{f})
	}
	return nil
}

// moveToFront implements MoveToFront(F, stack) from §4.4. stackSet is used
// for O(1) membership tests; stackOrder preserves insertion order for the
// cycle error message.
func (b *Builder) moveToFront(f *unit.File, stackSet map[*unit.File]bool, stackOrder []*unit.File) error {
	b.removeAndPushFront(f)
	for _, d := range sortedByPath(f.StrongPreds) {
		if stackSet[d] {
			return cycleError(append(stackOrder, d))
		}
		next := make(map[*unit.File]bool, len(stackSet)+1)
		for k := range stackSet {
			next[k] = true
		}
		next[d] = true
		if err := b.moveToFront(d, next, append(append([]*unit.File{}, stackOrder...), d)); err != nil {
			return err
		}
	}
	return nil
}

func cycleError(stack []*unit.File) error {
	names := make([]string, len(stack))
	for i, f := range stack {
		names[i] = f.Path
	}
	return vherr.New(vherr.KindCycle, "circular dependency:\n - %s", strings.Join(names, "\n - "))
}

// pushFront inserts f at the front of the order; f must not already be
// present.
func (b *Builder) pushFront(f *unit.File) {
	b.order = append([]*unit.File{f}, b.order...)
	b.reindex()
}

// removeAndPushFront removes f from wherever it sits and reinserts it at
// the front.
func (b *Builder) removeAndPushFront(f *unit.File) {
	out := make([]*unit.File, 0, len(b.order))
	out = append(out, f)
	for _, g := range b.order {
		if g != f {
			out = append(out, g)
		}
	}
	b.order = out
	b.reindex()
}

func (b *Builder) reindex() {
	for i, f := range b.order {
		b.index[f] = i
	}
}

// compileOrder returns a copy of the order read front-to-back. Every
// dependency is pushed (or moved) in front of the file that pulled it in,
// so this reading is the dependency-first compile order.
func (b *Builder) compileOrder() []*unit.File {
	return append([]*unit.File{}, b.order...)
}

func sortedByPath(files []*unit.File) []*unit.File {
	out := append([]*unit.File{}, files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// TopLevels returns the files in order that are top-level: at least one
// entity definition and no other file in order lists them as a strong or
// weak predecessor (§4.4).
func TopLevels(order []*unit.File) []*unit.File {
	depended := map[*unit.File]bool{}
	for _, f := range order {
		for _, d := range f.StrongPreds {
			depended[d] = true
		}
		for _, d := range f.WeakPreds {
			depended[d] = true
		}
	}

	var tops []*unit.File
	for _, f := range order {
		if len(f.EntityDefs) > 0 && !depended[f] {
			tops = append(tops, f)
		}
	}
	return tops
}
