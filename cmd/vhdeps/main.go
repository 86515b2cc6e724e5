// Command vhdeps is the outer CLI driver (§6): it turns include/strict/
// external path specs and top-level-entity globs into a compile order,
// then hands that order to one of the registered backends (dump, ghdl,
// vsim). Grounded on the original tool's vhdeps/__init__.py run_cli (flag
// surface, error formatting, exit-code policy) and the teacher's
// cmd/vhdl-lint/main.go driver shape, rebuilt on cobra/pflag per
// SPEC_FULL.md's CLI enrichment.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/go-vhdeps/vhdeps/internal/backend"
	"github.com/go-vhdeps/vhdeps/internal/backend/dump"
	"github.com/go-vhdeps/vhdeps/internal/backend/ghdl"
	"github.com/go-vhdeps/vhdeps/internal/backend/vsim"
	"github.com/go-vhdeps/vhdeps/internal/cache"
	"github.com/go-vhdeps/vhdeps/internal/config"
	"github.com/go-vhdeps/vhdeps/internal/order"
	"github.com/go-vhdeps/vhdeps/internal/registry"
	"github.com/go-vhdeps/vhdeps/internal/source"
	"github.com/go-vhdeps/vhdeps/internal/testcase"
	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

var targetNames = []string{"dump", "ghdl", "vsim"}

var styleRules = []string{
	"Each VHDL file must define exactly one entity or exactly one package.",
	"VHDL package names must use the _pkg suffix.",
	"The filename must match the name of the VHDL entity/package.",
}

type cliFlags struct {
	include  []string
	strict   []string
	external []string
	desired  int
	version  int
	mode     string
	patterns []string
	outfile  string

	stacktrace bool
	listTargs  bool
	style      bool
	jobs       int
	noCache    bool
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "vhdeps <target> [toplevel ...]",
		Short: "VHDL dependency analyzer and simulation driver",
		Long: "vhdeps scans VHDL files and directories, builds a dependency-ordered " +
			"compile order, and hands it to a backend target (dump/ghdl/vsim). " +
			"Specify --targets to list available targets, --style to list the " +
			"rules enforced by -I/--strict.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, flags)
		},
	}

	root.Flags().StringArrayVarP(&flags.include, "include", "i", nil, "recursively include {{version:}lib:}path")
	root.Flags().StringArrayVarP(&flags.strict, "strict", "I", nil, "same as -i, plus style-rule enforcement")
	root.Flags().StringArrayVarP(&flags.external, "external", "x", nil, "same as -i, black-box components allowed")
	root.Flags().IntVarP(&flags.desired, "desired-version", "d", 0, "desired VHDL version (default 2008)")
	root.Flags().IntVarP(&flags.version, "version", "v", 0, "required VHDL version (default: mixed-mode)")
	root.Flags().StringVarP(&flags.mode, "mode", "m", "sim", "sim|syn|all")
	root.Flags().StringArrayVarP(&flags.patterns, "pattern", "p", nil, "test-case filter pattern (repeatable)")
	root.Flags().StringVarP(&flags.outfile, "outfile", "o", "", "redirect output to FILE instead of stdout")
	root.Flags().BoolVar(&flags.stacktrace, "stacktrace", false, "print full Go error chains")
	root.Flags().BoolVar(&flags.listTargs, "targets", false, "list the supported targets")
	root.Flags().BoolVar(&flags.style, "style", false, "print the style rules enforced by -I/--strict")
	root.Flags().IntVarP(&flags.jobs, "jobs", "j", 1, "number of test cases to run concurrently")
	root.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the on-disk extraction cache")

	if err := root.Execute(); err != nil {
		if flags.stacktrace {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, formatError(err))
		}
		os.Exit(exitCodeFor(err))
	}
}

func run(cmd *cobra.Command, args []string, flags *cliFlags) error {
	if flags.listTargs {
		fmt.Fprintln(cmd.OutOrStdout(), "Available targets:")
		for _, name := range targetNames {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
		return nil
	}
	if flags.style {
		fmt.Fprintln(cmd.OutOrStdout(), "The following style rules are enforced by -I/--strict:")
		for _, r := range styleRules {
			fmt.Fprintf(cmd.OutOrStdout(), " - %s\n", r)
		}
		return nil
	}

	if len(args) == 0 {
		return vherr.New(vherr.KindConfig, "no target specified; specify --targets to list available targets")
	}
	targetName, roots := args[0], args[1:]
	if !isKnownTarget(targetName) {
		return vherr.New(vherr.KindConfig, "unknown target %q; specify --targets to list available targets", targetName)
	}

	files, err := scanInputs(flags)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return vherr.New(vherr.KindMissing, "no VHDL files found")
	}

	mode := registry.Mode(flags.mode)
	var required *int
	if flags.version != 0 {
		v := unit.ParseVersion(flags.version)
		required = &v
	}
	desired := flags.desired
	if desired != 0 {
		desired = unit.ParseVersion(desired)
	}
	reg := registry.New(files, mode, required, desired)

	orderRoots := make([]order.Root, len(roots))
	for i, r := range roots {
		orderRoots[i] = order.Root(r)
	}
	compileOrder, warnings, err := order.Build(reg, orderRoots)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
	}
	if len(compileOrder) == 0 {
		return vherr.New(vherr.KindMissing, "no VHDL files found")
	}

	out, closeOut, err := openOutput(flags.outfile)
	if err != nil {
		return err
	}
	defer closeOut()

	switch targetName {
	case "dump":
		return dump.Write(out, compileOrder, reg.DesiredVersion)
	case "ghdl":
		return runGHDL(cmd, out, compileOrder, flags)
	case "vsim":
		tops := order.TopLevels(compileOrder)
		cases := testcase.Filter(tops, flags.patterns)
		return vsim.Emit(out, compileOrder, cases, vsim.Options{}, cmd.ErrOrStderr())
	default:
		return vherr.New(vherr.KindConfig, "unknown target %q", targetName)
	}
}

func runGHDL(cmd *cobra.Command, out io.Writer, compileOrder []*unit.File, flags *cliFlags) error {
	tops := order.TopLevels(compileOrder)
	cases := testcase.Filter(tops, flags.patterns)

	analyze := ghdl.Analyze(ghdl.Options{})
	runner, err := ghdl.Run(compileOrder, ghdl.Options{})
	if err != nil {
		return err
	}

	code, err := backend.Run(context.Background(), out, compileOrder, cases, analyze, runner, backend.Options{Jobs: flags.jobs})
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// scanInputs turns the CLI's -i/-I/-x specs and any vhdeps.json-declared
// libraries into a merged spec list (config.Merge: CLI flags win for any
// library name both define, per ADD 4.2.1) and scans every resulting spec
// exactly once.
func scanInputs(flags *cliFlags) ([]*unit.File, error) {
	include, strict, external := flags.include, flags.strict, flags.external
	if len(include) == 0 && len(strict) == 0 && len(external) == 0 {
		fmt.Fprintln(os.Stderr, "Including the current working directory recursively by default...")
		include = []string{"."}
	}

	var c *cache.Cache
	if !flags.noCache {
		c = cache.New(".vhdeps_cache")
		_ = c.Load()
	}

	var configSpecs []config.ConfiguredSpec
	if cfg, err := config.Load("."); err != nil {
		return nil, err
	} else if cfg != nil {
		configSpecs, err = cfg.Specs(".")
		if err != nil {
			return nil, err
		}
	}

	// One Merge over all CLI specs, so a later flag group never drops an
	// earlier group's specs for the same library. Merge appends the CLI
	// specs last and in order; each group's options are set there.
	cliSpecs := append(append(toSpecs(include), toSpecs(strict)...), toSpecs(external)...)
	merged := config.Merge(configSpecs, cliSpecs, source.Options{})
	cli := merged[len(merged)-len(cliSpecs):]
	for i := range cli {
		switch {
		case i >= len(include)+len(strict):
			cli[i].Options.AllowBlackBox = true
		case i >= len(include):
			cli[i].Options.Strict = true
		}
	}

	var all []*unit.File
	for _, cs := range merged {
		opts := cs.Options
		opts.Cache = c
		fs, err := source.Scan(cs.Spec, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, fs...)
	}

	if c != nil {
		_ = c.Save()
	}
	return all, nil
}

func toSpecs(raw []string) []source.Spec {
	specs := make([]source.Spec, len(raw))
	for i, arg := range raw {
		specs[i] = source.ParseSpec(arg)
	}
	return specs
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, vherr.Wrap(vherr.KindIO, err, "create %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func isKnownTarget(name string) bool {
	for _, n := range targetNames {
		if n == name {
			return true
		}
	}
	return false
}

func formatError(err error) string {
	if kind, ok := vherr.KindOf(err); ok {
		return color.RedString("%s", kind) + ": " + stripKindPrefix(err.Error(), string(kind))
	}
	return err.Error()
}

func stripKindPrefix(msg, kind string) string {
	prefix := kind + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

func exitCodeFor(err error) int {
	if kind, ok := vherr.KindOf(err); ok {
		return vherr.ExitCode(kind)
	}
	return 1
}
