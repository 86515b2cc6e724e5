// Package resolve implements the Dependency Resolver of component 4.3:
// for one unit.File it computes the strong (must-precede) and weak
// (must-exist-somewhere) predecessor sets against a registry.Registry.
// Grounded on the original tool's VhdFile.resolve_dependencies
// (vhdeps/vhdl.py) and the teacher's work-library substitution idiom
// (internal/indexer/deps.go resolveDependencies).
package resolve

import (
	"sort"

	"github.com/go-vhdeps/vhdeps/internal/registry"
	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

// standardLibs are always-available and never resolved (§4.3, §6 "Library
// specials").
var standardLibs = map[string]bool{"ieee": true, "std": true}

// Resolve fills f.StrongPreds and f.WeakPreds against reg, per §4.3's
// algorithm. Idempotent: a second call on an already-resolved file returns
// immediately without recomputation, satisfying §8's "idempotence of
// resolution" property.
func Resolve(f *unit.File, reg *registry.Registry) error {
	if f.Resolved() {
		return nil
	}

	var strong, weak []*unit.File
	seenStrong := map[*unit.File]bool{}
	seenWeak := map[*unit.File]bool{}

	addStrong := func(dep *unit.File) {
		if dep == f || seenStrong[dep] {
			return
		}
		seenStrong[dep] = true
		strong = append(strong, dep)
	}
	addWeak := func(dep *unit.File) {
		if dep == f || seenWeak[dep] {
			return
		}
		seenWeak[dep] = true
		weak = append(weak, dep)
	}

	substitute := func(lib string) string {
		if lib == "" || lib == "work" {
			return f.Library
		}
		return lib
	}

	var pkgDeclSources []*unit.File

	for _, use := range f.PackageUses {
		if f.IgnorePackages[use.Name] {
			continue
		}
		lib := substitute(use.Lib)
		if standardLibs[lib] {
			continue
		}
		dep, err := reg.Resolve("package", lib, use.Name)
		if err != nil {
			return vherr.Wrap(errKind(err), err, "while resolving package %s.%s in %s", lib, use.Name, f.Path)
		}
		if dep == f {
			continue
		}
		addStrong(dep)
		pkgDeclSources = append(pkgDeclSources, dep)
	}

	for _, use := range f.EntityUses {
		if f.IgnoreEntities[use.Name] {
			continue
		}
		lib := substitute(use.Lib)
		if standardLibs[lib] {
			continue
		}
		dep, err := reg.Resolve("entity", lib, use.Name)
		if err != nil {
			return vherr.Wrap(errKind(err), err, "while resolving entity %s.%s in %s", lib, use.Name, f.Path)
		}
		if dep == f {
			continue
		}
		addStrong(dep)
	}

	for _, name := range f.ComponentUses {
		if f.IgnoreComponents[name] {
			continue
		}

		var winner *unit.File
		if f.ComponentDefs[name] {
			winner = f
		} else {
			for _, src := range pkgDeclSources {
				if src.ComponentDefs[name] {
					winner = src
					break
				}
			}
		}
		if winner == nil {
			return vherr.New(vherr.KindMissing, "while resolving component %s in %s: could not find component declaration", name, f.Path)
		}

		dep, err := reg.Resolve("entity", winner.Library, name)
		if err != nil {
			if winner.AllowBlackBox {
				continue
			}
			return vherr.Wrap(vherr.KindBlackBox, err, "while resolving component %s in %s: black box: could not find entity %s.%s", name, f.Path, winner.Library, name)
		}
		if dep == f {
			continue
		}
		addWeak(dep)
	}

	sort.Slice(strong, func(i, j int) bool { return strong[i].Path < strong[j].Path })
	sort.Slice(weak, func(i, j int) bool { return weak[i].Path < weak[j].Path })

	f.StrongPreds = strong
	f.WeakPreds = weak
	f.MarkResolved()
	return nil
}

// errKind preserves the original resolution error's kind (Missing,
// Filtered, Ambiguous) when re-wrapping with resolver context.
func errKind(err error) vherr.Kind {
	if kind, ok := vherr.KindOf(err); ok {
		return kind
	}
	return vherr.KindMissing
}
