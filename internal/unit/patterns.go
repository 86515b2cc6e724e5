package unit

import "regexp"

// Pattern table for the lightweight pattern-matching extractor (spec §4.1,
// §9: "a tiny tokenizer-style scan ... or precompiled pattern tables").
// Grounded on the teacher's regex fallback path
// (internal/extractor/patterns.go) and the original Python VhdFile regexes,
// generalized to the exact patterns §4.1 lists (library-qualified entity
// use, "component" keyword optional on component use, multi-name package
// use).
//
// All input text is lowercased by the caller before matching, so patterns
// need not be case-insensitive themselves.
var (
	entityDefPattern = regexp.MustCompile(`\bentity\s+([a-z][\w]*)\s+is\b`)

	// `: entity [lib.]name` followed by port, generic, or ';'.
	entityUsePattern = regexp.MustCompile(`:\s*entity\s+(?:([a-z][\w]*)\.)?([a-z][\w]*)\s*(?:port\b|generic\b|;)`)

	componentDefPattern = regexp.MustCompile(`\bcomponent\s+([a-z][\w]*)\s+is\b`)

	// `: [component] name port map` or `: [component] name generic map`.
	componentUsePattern = regexp.MustCompile(`:\s*(?:component\s+)?([a-z][\w]*)\s+(?:port|generic)\s+map\b`)

	packageDefPattern = regexp.MustCompile(`\bpackage\s+([a-z][\w]*)\s+is\b`)

	packageUsePattern = regexp.MustCompile(`\buse\s+([a-z][\w]*)\.([a-z][\w]*)`)

	timeoutPragmaPattern = regexp.MustCompile(`pragma\s+simulation\s+timeout\s+([0-9]+(?:\.[0-9]+)?\s*[pnum]?s)`)

	ignorePragmaPattern = regexp.MustCompile(`vhdeps\s+ignore\s+(entity|component|package)\s+([a-z][\w]*)`)

	packageBodyPattern = regexp.MustCompile(`\bpackage\s+body\b`)
)
