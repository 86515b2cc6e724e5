// Package registry implements the File Registry and filter policy of
// component 4.2: an unordered collection of unit.File values with a
// version/mode filter policy, exposing a deterministic
// UnitRef -> File resolver. Grounded on the original tool's
// VhdList.is_file_filtered_out / resolve_design_unit (vhdeps/vhdl.py) and
// the teacher's sync.RWMutex-guarded SymbolTable (internal/indexer/indexer.go)
// for the memoization idiom.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

// Mode is the registry-wide simulation/synthesis filter policy.
type Mode string

const (
	ModeSim Mode = "sim"
	ModeSyn Mode = "syn"
	ModeAll Mode = "all"
)

// Ref identifies a design unit by kind ("entity"|"package"), library and
// name — the lookup key for Resolve (§3's UnitRef).
type Ref struct {
	Kind string
	Lib  string
	Name string
}

func (r Ref) String() string { return fmt.Sprintf("%s %s.%s", r.Kind, r.Lib, r.Name) }

// Registry holds the full set of extracted files plus the policy used to
// filter and version-select among them.
type Registry struct {
	Mode            Mode
	RequiredVersion *int
	DesiredVersion  int

	files []*unit.File

	mu    sync.Mutex
	memo  map[Ref]*unit.File
}

const defaultDesiredVersion = 2008

// New builds a Registry over files under the given policy. desiredVersion
// defaults to 2008 when 0 and no required version is set; when
// requiredVersion is non-nil it also becomes the desired version, matching
// the original tool's VhdList.__init__.
func New(files []*unit.File, mode Mode, requiredVersion *int, desiredVersion int) *Registry {
	desired := desiredVersion
	if requiredVersion != nil {
		desired = *requiredVersion
	} else if desired == 0 {
		desired = defaultDesiredVersion
	}
	return &Registry{
		Mode:            mode,
		RequiredVersion: requiredVersion,
		DesiredVersion:  desired,
		files:           files,
		memo:            make(map[Ref]*unit.File),
	}
}

// Files returns every file in the registry, filtered or not.
func (r *Registry) Files() []*unit.File { return r.files }

// FilterReason reports whether f is rejected by the registry's policy and,
// if so, a human-readable reason (§4.2 "Filter decision").
func (r *Registry) FilterReason(f *unit.File) (reason string, filtered bool) {
	switch r.Mode {
	case ModeSim:
		if !f.UseForSimulation {
			return fmt.Sprintf("%s is tagged .syn. and is not usable in simulation mode", f.Path), true
		}
	case ModeSyn:
		if !f.UseForSynthesis {
			return fmt.Sprintf("%s is tagged .sim. and is not usable in synthesis mode", f.Path), true
		}
	}
	if r.RequiredVersion != nil && len(f.Versions) > 0 && !f.Versions[*r.RequiredVersion] {
		return fmt.Sprintf("%s does not support required version %d (supports %v)", f.Path, *r.RequiredVersion, f.SortedVersions()), true
	}
	return "", false
}

func defSet(f *unit.File, kind string) map[string]bool {
	if kind == "package" {
		return f.PackageDefs
	}
	return f.EntityDefs
}

// candidates returns every file in the registry whose library matches lib
// and whose corresponding definition set contains name, split into
// accepted and filtered-out, each sorted by path for determinism.
func (r *Registry) candidates(kind, lib, name string) (accepted, filteredOut []*unit.File, reasons []string) {
	var acc, flt []*unit.File
	var rs []string
	for _, f := range r.files {
		if f.Library != lib {
			continue
		}
		if !defSet(f, kind)[name] {
			continue
		}
		if reason, isFiltered := r.FilterReason(f); isFiltered {
			flt = append(flt, f)
			rs = append(rs, reason)
		} else {
			acc = append(acc, f)
		}
	}
	sort.Slice(acc, func(i, j int) bool { return acc[i].Path < acc[j].Path })
	sort.Slice(flt, func(i, j int) bool { return flt[i].Path < flt[j].Path })
	sort.Strings(rs)
	return acc, flt, rs
}

// Resolve looks up (kind, lib, name) per §4.2's algorithm, memoized by Ref.
func (r *Registry) Resolve(kind, lib, name string) (*unit.File, error) {
	ref := Ref{Kind: kind, Lib: lib, Name: name}

	r.mu.Lock()
	if f, ok := r.memo[ref]; ok {
		r.mu.Unlock()
		return f, nil
	}
	r.mu.Unlock()

	f, err := r.resolveUncached(kind, lib, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.memo[ref] = f
	r.mu.Unlock()
	return f, nil
}

func (r *Registry) resolveUncached(kind, lib, name string) (*unit.File, error) {
	accepted, filteredOut, reasons := r.candidates(kind, lib, name)

	if len(accepted) == 0 {
		if len(filteredOut) > 0 {
			return nil, vherr.New(vherr.KindFiltered, "%s %s.%s is defined but filtered out: %v", kind, lib, name, reasons)
		}
		return nil, vherr.New(vherr.KindMissing, "could not find %s %s.%s", kind, lib, name)
	}

	best := bestVersion(accepted, r.DesiredVersion)

	var survivors []*unit.File
	for _, f := range accepted {
		if len(f.Versions) == 0 || f.Versions[best] {
			survivors = append(survivors, f)
		}
	}

	if len(survivors) > 1 {
		paths := make([]string, len(survivors))
		for i, f := range survivors {
			paths[i] = f.Path
		}
		return nil, vherr.New(vherr.KindAmbiguous, "%s %s.%s is defined in multiple ambiguous files: %v", kind, lib, name, paths)
	}

	return survivors[0], nil
}

// bestVersion unions the version sets of files (a universal member - empty
// Versions - contributes {desired} and short-circuits), then picks the
// value closest to desired, ties broken toward the lower value. Delegates
// the single-set arithmetic to unit.File.EffectiveVersion.
func bestVersion(files []*unit.File, desired int) int {
	versions := map[int]bool{}
	for _, f := range files {
		if len(f.Versions) == 0 {
			return desired
		}
		for v := range f.Versions {
			versions[v] = true
		}
	}

	union := &unit.File{Versions: versions}
	return union.EffectiveVersion(desired)
}

// AcceptedUnit names one accepted design-unit definition, used by the
// compile-order builder's root-glob expansion (§4.4).
type AcceptedUnit struct {
	Kind string
	Lib  string
	Name string
	File *unit.File
}

// AcceptedUnits lists every (kind, lib, name) triplet defined by an
// accepted file in the registry, one entry per definition (a file
// defining several units of the same kind contributes several entries).
func (r *Registry) AcceptedUnits() []AcceptedUnit {
	var out []AcceptedUnit
	for _, f := range r.files {
		if _, filtered := r.FilterReason(f); filtered {
			continue
		}
		for name := range f.EntityDefs {
			out = append(out, AcceptedUnit{Kind: "entity", Lib: f.Library, Name: name, File: f})
		}
		for name := range f.PackageDefs {
			out = append(out, AcceptedUnit{Kind: "package", Lib: f.Library, Name: name, File: f})
		}
	}
	return out
}
