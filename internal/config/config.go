// Package config implements vhdeps.json ambient configuration
// (ADD 4.2.1): named libraries with glob file lists, merged with the
// CLI's repeated -i/-I/-x flags. Grounded on the teacher's
// internal/config/config.go (LibraryConfig, search-path Load, JSON
// encoding/decoding, applyDefaults), generalized from lint-library
// selection to compile-source selection and given a contract check
// (internal/schema) the teacher's own config loader never had.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-vhdeps/vhdeps/internal/schema"
	"github.com/go-vhdeps/vhdeps/internal/source"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

// Library is one named library's file selection and per-library flags,
// equivalent in effect to a repeated -i/-I/-x CLI flag (ADD 4.2.1).
type Library struct {
	Files         []string `json:"files"`
	Exclude       []string `json:"exclude,omitempty"`
	Strict        bool     `json:"strict,omitempty"`
	AllowBlackBox bool     `json:"allowBlackBox,omitempty"`
	Version       *int     `json:"version,omitempty"`
}

// Config is the decoded form of a vhdeps.json file.
type Config struct {
	DesiredVersion  int                `json:"desiredVersion,omitempty"`
	RequiredVersion *int               `json:"requiredVersion,omitempty"`
	Mode            string             `json:"mode,omitempty"`
	Libraries       map[string]Library `json:"libraries,omitempty"`
}

// searchPaths returns the vhdeps.json search order from ADD 4.2.1:
// ./vhdeps.json, ./.vhdeps.json, <root>/vhdeps.json (when root != cwd),
// ~/.config/vhdeps/config.json.
func searchPaths(root string) []string {
	cwd, _ := os.Getwd()
	paths := []string{
		filepath.Join(cwd, "vhdeps.json"),
		filepath.Join(cwd, ".vhdeps.json"),
	}
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		if absRoot, err := filepath.Abs(root); err == nil && absRoot != cwd {
			paths = append(paths, filepath.Join(root, "vhdeps.json"))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vhdeps", "config.json"))
	}
	return paths
}

// Load finds and decodes the first vhdeps.json on the search path,
// validating it against the embedded schema (ADD 4.2.2). Returns a nil
// Config (not an error) when no config file exists anywhere on the path.
func Load(root string) (*Config, error) {
	for _, path := range searchPaths(root) {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, nil
}

// LoadFile decodes and validates one vhdeps.json file.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, vherr.Wrap(vherr.KindIO, err, "reading %s", path)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, vherr.Wrap(vherr.KindConfig, err, "parsing %s", path)
	}
	validator, err := schema.New()
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(generic); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, vherr.Wrap(vherr.KindConfig, err, "decoding %s", path)
	}
	return &cfg, nil
}

// ConfiguredSpec pairs a source.Spec for one matched file with the
// owning library's extraction options, since vhdeps.json carries
// strict/allowBlackBox per library rather than once globally (unlike the
// CLI's -i/-I/-x, which is per invocation).
type ConfiguredSpec struct {
	Spec    source.Spec
	Options source.Options
}

// Specs expands every library's glob file lists (relative to root) into
// ConfiguredSpec values, applying that library's version override and
// strict/allowBlackBox flags. Exclude globs are subtracted from the
// match set before expansion.
func (c *Config) Specs(root string) ([]ConfiguredSpec, error) {
	names := make([]string, 0, len(c.Libraries))
	for name := range c.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)

	var specs []ConfiguredSpec
	for _, name := range names {
		lib := c.Libraries[name]
		excluded := map[string]bool{}
		for _, pattern := range lib.Exclude {
			matches, err := source.WalkGlob(absPattern(root, pattern))
			if err != nil {
				return nil, vherr.Wrap(vherr.KindConfig, err, "expanding exclude pattern %q for library %s", pattern, name)
			}
			for _, m := range matches {
				excluded[m] = true
			}
		}

		opts := source.Options{Strict: lib.Strict, AllowBlackBox: lib.AllowBlackBox}
		seen := map[string]bool{}
		for _, pattern := range lib.Files {
			matches, err := source.WalkGlob(absPattern(root, pattern))
			if err != nil {
				return nil, vherr.Wrap(vherr.KindConfig, err, "expanding file pattern %q for library %s", pattern, name)
			}
			for _, m := range matches {
				if excluded[m] || seen[m] {
					continue
				}
				seen[m] = true
				spec := source.Spec{Library: name, Path: m}
				if lib.Version != nil {
					spec.Version = lib.Version
				}
				specs = append(specs, ConfiguredSpec{Spec: spec, Options: opts})
			}
		}
	}
	return specs, nil
}

func absPattern(root, pattern string) string {
	if filepath.IsAbs(pattern) {
		return pattern
	}
	return filepath.Join(root, pattern)
}

// Merge overlays config-derived specs with CLI-derived specs, the latter
// taking precedence for any library name both define (ADD 4.2.1: "CLI
// flags for the same library name take precedence").
func Merge(configSpecs []ConfiguredSpec, cliSpecs []source.Spec, cliOpts source.Options) []ConfiguredSpec {
	cliLibs := map[string]bool{}
	for _, s := range cliSpecs {
		cliLibs[s.Library] = true
	}
	out := make([]ConfiguredSpec, 0, len(configSpecs)+len(cliSpecs))
	for _, cs := range configSpecs {
		if cliLibs[cs.Spec.Library] {
			continue
		}
		out = append(out, cs)
	}
	for _, s := range cliSpecs {
		out = append(out, ConfiguredSpec{Spec: s, Options: cliOpts})
	}
	return out
}
