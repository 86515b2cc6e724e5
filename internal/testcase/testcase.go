// Package testcase implements the test-case filter of component 4.5:
// a sequential glob pattern list, applied per top-level entity, deciding
// inclusion via a left-to-right running "include" flag. Grounded on the
// original tool's targets/shared.py get_test_cases.
package testcase

import (
	"path/filepath"
	"strings"

	"github.com/go-vhdeps/vhdeps/internal/unit"
)

// DefaultPattern is used when no patterns are supplied (§4.5).
const DefaultPattern = "*_tc"

// TestCase pairs a top-level File with one of its entity names (§3).
type TestCase struct {
	File   *unit.File
	Entity string
}

// pattern is one parsed "[:][!]GLOB" filter entry.
type pattern struct {
	matchPath bool
	invert    bool
	glob      string
}

func parsePattern(raw string) pattern {
	p := pattern{glob: raw}
	if strings.HasPrefix(p.glob, ":") {
		p.matchPath = true
		p.glob = p.glob[1:]
	}
	if strings.HasPrefix(p.glob, "!") {
		p.invert = true
		p.glob = p.glob[1:]
	}
	return p
}

// Filter applies patterns (or DefaultPattern, when empty) over every
// entity of every top-level file and returns the included TestCases,
// grouped by file in the order tops were presented. The order of the
// entities within one file is not defined.
func Filter(tops []*unit.File, patterns []string) []TestCase {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}
	parsed := make([]pattern, len(patterns))
	for i, p := range patterns {
		parsed[i] = parsePattern(p)
	}

	var out []TestCase
	for _, f := range tops {
		for name := range f.EntityDefs {
			if matches(parsed, f, name) {
				out = append(out, TestCase{File: f, Entity: name})
			}
		}
	}
	return out
}

func matches(patterns []pattern, f *unit.File, entity string) bool {
	include := false
	for _, p := range patterns {
		subject := entity
		if p.matchPath {
			subject = f.Path
		}
		matched, _ := filepath.Match(p.glob, subject)
		if !matched {
			continue
		}
		if p.invert {
			include = false
		} else {
			include = true
		}
	}
	return include
}
