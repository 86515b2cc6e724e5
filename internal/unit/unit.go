// Package unit implements the lightweight, pattern-based extractor of
// component 4.1: it turns a single VHDL source file into a File value
// describing the design units it defines and the design units it uses,
// without doing full VHDL parsing or semantic analysis (an explicit
// non-goal). Grounded on the teacher's regex fallback extraction path
// (internal/extractor/patterns.go) and the original Python VhdFile class
// (vhdeps/vhdl.py), whose regex patterns and version/mode tagging rules
// this package reproduces in idiomatic Go.
package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

// Ref identifies a design unit by kind, library and name (§3). Kind is
// either "entity" or "package" — components are resolved through entities
// of the same name and never appear as a Ref themselves.
type Ref struct {
	Kind string // "entity" | "package"
	Lib  string
	Name string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s %s.%s", r.Kind, r.Lib, r.Name)
}

// Use is a single occurrence of a design unit reference inside a file. Lib
// is empty when the source used an unqualified name (work library implied).
type Use struct {
	Lib  string
	Name string
}

// Options configures extraction of a single file.
type Options struct {
	Library         string
	VersionOverride []int // explicit version set from a [VERSION:]LIB:PATH spec; nil means derive from filename
	Strict          bool
	AllowBlackBox   bool
}

// File is the result of extracting a single VHDL source file (§3's File
// type). EntityDefs/PackageDefs/ComponentDefs are definition sets;
// EntityUses/PackageUses/ComponentUses are usage occurrences in the order
// they were encountered in the source text.
type File struct {
	Path    string // canonical (symlink-resolved, absolute) path
	Library string

	Versions         map[int]bool // compatible version tags parsed from the filename, or VersionOverride
	UseForSimulation bool
	UseForSynthesis  bool
	AllowBlackBox    bool
	Strict           bool

	EntityDefs    map[string]bool
	PackageDefs   map[string]bool
	ComponentDefs map[string]bool

	EntityUses    []Use
	PackageUses   []Use
	ComponentUses []string

	IgnoreEntities   map[string]bool
	IgnoreComponents map[string]bool
	IgnorePackages   map[string]bool

	Timeout string // raw duration string from a simulation-timeout pragma, or ""

	// Unit/IsPkg describe the single design unit this file defines, when
	// it defines exactly one entity xor exactly one package; Unit is ""
	// otherwise (§4.1 style rule territory).
	Unit  string
	IsPkg bool

	// StrongPreds/WeakPreds are filled exactly once by the dependency
	// resolver (component 4.3); nil until then. Excluded from JSON so the
	// extraction cache (which runs before resolution) never serializes a
	// File-to-File reference graph.
	StrongPreds []*File `json:"-"`
	WeakPreds   []*File `json:"-"`
	resolved    bool
}

// Resolved reports whether the dependency resolver has already filled
// this file's StrongPreds/WeakPreds.
func (f *File) Resolved() bool { return f.resolved }

// MarkResolved records that resolution has completed for this file. Called
// by internal/resolve once StrongPreds/WeakPreds are populated.
func (f *File) MarkResolved() { f.resolved = true }

// versionTagPattern matches a 2-digit or 4-digit (1970-2069) year segment;
// applied to filename segments already known to sit strictly between two
// dots (see splitVersionTags), so no look-around is needed here.
var versionTagPattern = regexp.MustCompile(`^(19[7-9]\d|20[0-6]\d|\d{2})$`)

// New reads path and extracts a File per §4.1. It never resolves
// dependencies against a registry; that is component 4.3's job.
func New(path string, opts Options) (*File, error) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		real = path
	}
	real, err = filepath.Abs(real)
	if err != nil {
		return nil, vherr.Wrap(vherr.KindIO, err, "resolve path %s", path)
	}

	raw, err := os.ReadFile(real)
	if err != nil {
		return nil, vherr.Wrap(vherr.KindIO, err, "read %s", real)
	}

	f := &File{
		Path:             real,
		Library:          opts.Library,
		AllowBlackBox:    opts.AllowBlackBox,
		Strict:           opts.Strict,
		EntityDefs:       map[string]bool{},
		PackageDefs:      map[string]bool{},
		ComponentDefs:    map[string]bool{},
		IgnoreEntities:   map[string]bool{},
		IgnoreComponents: map[string]bool{},
		IgnorePackages:   map[string]bool{},
	}

	base := filepath.Base(real)
	tags := splitVersionTags(base)
	if opts.VersionOverride != nil {
		f.Versions = map[int]bool{}
		for _, v := range opts.VersionOverride {
			f.Versions[ParseVersion(v)] = true
		}
	} else {
		f.Versions = tags
	}

	lowerBase := strings.ToLower(base)
	hasSim := strings.Contains(lowerBase, ".sim.")
	hasSyn := strings.Contains(lowerBase, ".syn.")
	if hasSim && hasSyn {
		return nil, vherr.New(vherr.KindConfig, "%s: filename is tagged both .sim. and .syn., which selects it for neither", real)
	}
	f.UseForSynthesis = !hasSim
	f.UseForSimulation = !hasSyn

	// VHDL is case-insensitive; match against a lowercased copy. Pragmas
	// are read from the same lowercased copy, before comments are stripped
	// (pragmas live inside comments).
	content := strings.ToLower(string(raw))

	for _, m := range ignorePragmaPattern.FindAllStringSubmatch(content, -1) {
		switch m[1] {
		case "entity":
			f.IgnoreEntities[m[2]] = true
		case "component":
			f.IgnoreComponents[m[2]] = true
		case "package":
			f.IgnorePackages[m[2]] = true
		}
	}
	if m := timeoutPragmaPattern.FindStringSubmatch(content); m != nil {
		f.Timeout = strings.TrimSpace(m[1])
	}

	stripped := stripComments(content)

	for _, m := range entityDefPattern.FindAllStringSubmatch(stripped, -1) {
		f.EntityDefs[m[1]] = true
	}
	for _, m := range packageDefPattern.FindAllStringSubmatch(stripPackageBodies(stripped), -1) {
		f.PackageDefs[m[1]] = true
	}
	for _, m := range componentDefPattern.FindAllStringSubmatch(stripped, -1) {
		f.ComponentDefs[m[1]] = true
	}

	for _, m := range entityUsePattern.FindAllStringSubmatch(stripped, -1) {
		f.EntityUses = append(f.EntityUses, Use{Lib: m[1], Name: m[2]})
	}
	for _, m := range packageUsePattern.FindAllStringSubmatch(stripped, -1) {
		f.PackageUses = append(f.PackageUses, Use{Lib: m[1], Name: m[2]})
	}
	for _, m := range componentUsePattern.FindAllStringSubmatch(stripped, -1) {
		f.ComponentUses = append(f.ComponentUses, m[1])
	}

	switch {
	case len(f.EntityDefs) == 1 && len(f.PackageDefs) == 0:
		f.Unit = soleKey(f.EntityDefs)
		f.IsPkg = false
	case len(f.PackageDefs) == 1 && len(f.EntityDefs) == 0:
		f.Unit = soleKey(f.PackageDefs)
		f.IsPkg = true
	}

	if opts.Strict {
		if err := f.checkStyle(); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// CheckStyle reruns the style-rule checks (§4.1) against f's already
// extracted definitions. Exported so a cache hit can reapply strict
// enforcement even when the entry was first populated by a non-strict
// scan of the same file.
func (f *File) CheckStyle() error {
	return f.checkStyle()
}

func (f *File) checkStyle() error {
	base := filepath.Base(f.Path)
	if f.Unit == "" {
		return vherr.New(vherr.KindStyle, "%s: file must define exactly one entity or exactly one package (found %d entities, %d packages)",
			base, len(f.EntityDefs), len(f.PackageDefs))
	}
	if f.IsPkg && !strings.HasSuffix(f.Unit, "_pkg") {
		return vherr.New(vherr.KindStyle, "%s: package %q must have a name ending in \"_pkg\"", base, f.Unit)
	}
	stem := strings.SplitN(base, ".", 2)[0]
	if !strings.EqualFold(stem, f.Unit) {
		return vherr.New(vherr.KindStyle, "%s: filename must start with the design unit name %q", base, f.Unit)
	}
	return nil
}

// splitVersionTags extracts the version tags from a filename: every
// segment strictly between two dots (i.e. excluding the first segment and
// the extension) that looks like a 2- or 4-digit year is a compatible
// version. Mirrors the original tool's "\.(TAG)(?=\.)" regex via an
// explicit split, which also sidesteps Go RE2's lack of lookahead.
func splitVersionTags(base string) map[int]bool {
	segs := strings.Split(base, ".")
	versions := map[int]bool{}
	if len(segs) < 3 {
		return versions
	}
	for _, seg := range segs[1 : len(segs)-1] {
		if versionTagPattern.MatchString(seg) {
			n, err := strconv.Atoi(seg)
			if err == nil {
				versions[ParseVersion(n)] = true
			}
		}
	}
	return versions
}

// ParseVersion normalizes a 2- or 4-digit VHDL standard year to its full
// 4-digit form (e.g. 93 -> 1993, 8 -> 2008, 2 -> 2002), matching the
// original tool's parse_version. Values already >= 100 pass through
// unchanged.
func ParseVersion(v int) int {
	switch {
	case v < 70:
		return v + 2000
	case v < 100:
		return v + 1900
	default:
		return v
	}
}

// stripComments removes everything from "--" to end-of-line, per VHDL
// comment syntax, the same way the original tool does (split on "--").
func stripComments(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

// stripPackageBodies drops every line containing "package body" so the
// package-definition pattern only matches package declarations, not
// bodies. Only those lines are removed; the rest of a body's text stays.
// A body header always reads "package body NAME is", so this per-line
// filter is sufficient for the lightweight extractor (full block parsing
// is out of scope).
func stripPackageBodies(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if packageBodyPattern.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func soleKey(m map[string]bool) string {
	for k := range m {
		return k
	}
	return ""
}

// SortedVersions returns f.Versions as a sorted slice, for deterministic
// diagnostics and version-selection tie-breaking (§4.2).
func (f *File) SortedVersions() []int {
	out := make([]int, 0, len(f.Versions))
	for v := range f.Versions {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// EffectiveVersion reports the version a file is taken to be compiled at:
// desired when the file carries no version tags (universal), else the
// argmin_v |v - desired| among its tags, ties broken toward the lower
// value — the same selection rule component 4.2 applies when resolving a
// UnitRef across several candidate files, specialized to one file.
func (f *File) EffectiveVersion(desired int) int {
	versions := f.SortedVersions()
	if len(versions) == 0 {
		return desired
	}
	best := versions[0]
	bestDist := abs(best - desired)
	for _, v := range versions[1:] {
		dist := abs(v - desired)
		if dist < bestDist {
			bestDist = dist
			best = v
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
