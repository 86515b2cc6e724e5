// Package ghdl implements a direct-elaborate backend (§4.6) driving the
// GHDL simulator: analyze every file in the compile order, then elaborate
// and run each test case, classifying PASSED/FAILED/TIMEOUT/ERROR from
// GHDL's exit code and captured output. Grounded on the original tool's
// targets/ghdl.py (_get_ghdl_cmds, _run_test_case), translated from
// Plumbum command objects to os/exec.Cmd.
package ghdl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/go-vhdeps/vhdeps/internal/backend"
	"github.com/go-vhdeps/vhdeps/internal/testcase"
	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

// IEEELibrary selects which IEEE library implementation GHDL should link
// against.
type IEEELibrary string

const (
	IEEESynopsys IEEELibrary = "synopsys"
	IEEEStandard IEEELibrary = "standard"
	IEEEMentor   IEEELibrary = "mentor"
	IEEENone     IEEELibrary = "none"
)

// Options configures the GHDL backend.
type Options struct {
	IEEE     IEEELibrary
	NoDebug  bool
	GHDLPath string // defaults to "ghdl" on PATH
}

var stdSwitch = map[int]string{
	1987: "--std=87",
	1993: "--std=93c",
	2000: "--std=00",
	2002: "--std=02",
	2008: "--std=08",
}

// commonSwitches returns the GHDL flags shared by analyze/elaborate/run,
// rejecting a compile order that mixes VHDL versions (GHDL requires a
// single --std switch), per the original's _get_ghdl_cmds.
func commonSwitches(order []*unit.File, opts Options) ([]string, error) {
	// Files with no version tag are universal (they impose no constraint);
	// only files that name specific versions can conflict with each other.
	versions := map[int]bool{}
	for _, f := range order {
		for _, v := range f.SortedVersions() {
			versions[v] = true
		}
	}
	if len(versions) > 1 {
		vs := make([]int, 0, len(versions))
		for v := range versions {
			vs = append(vs, v)
		}
		sort.Ints(vs)
		strs := make([]string, len(vs))
		for i, v := range vs {
			strs[i] = strconv.Itoa(v)
		}
		return nil, vherr.New(vherr.KindConfig, "GHDL does not support mixing VHDL versions (found %s); use -v to force one", strings.Join(strs, ", "))
	}

	version := 2008
	for v := range versions {
		version = v
	}
	std, ok := stdSwitch[version]
	if !ok {
		return nil, vherr.New(vherr.KindConfig, "GHDL supports only versions 1987/1993/2000/2002/2008, got %d", version)
	}

	debug := "-g"
	if opts.NoDebug {
		debug = "-g0"
	}
	ieee := opts.IEEE
	if ieee == "" {
		ieee = IEEESynopsys
	}
	return []string{debug, std, "--ieee=" + string(ieee)}, nil
}

func ghdlPath(opts Options) string {
	if opts.GHDLPath != "" {
		return opts.GHDLPath
	}
	return "ghdl"
}

// Analyze returns a backend.AnalyzeFunc that runs `ghdl -a` over every
// file in the compile order, in order.
func Analyze(opts Options) backend.AnalyzeFunc {
	return func(ctx context.Context, sink io.Writer, order []*unit.File) error {
		switches, err := commonSwitches(order, opts)
		if err != nil {
			return err
		}
		for i, f := range order {
			fmt.Fprintf(sink, "Analyzing (%d/%d) %s...\n", i+1, len(order), f.Path)
			args := append(append([]string{"-a"}, switches...), "--work="+f.Library, f.Path)
			cmd := exec.CommandContext(ctx, ghdlPath(opts), args...)
			var out bytes.Buffer
			cmd.Stdout = io.MultiWriter(sink, &out)
			cmd.Stderr = io.MultiWriter(sink, &out)
			if err := cmd.Run(); err != nil {
				return vherr.Wrap(vherr.KindAnalyzeFail, err, "ghdl -a failed on %s", f.Path)
			}
		}
		return nil
	}
}

// Run returns a backend.Runner that elaborates and runs one test case,
// classifying PASSED/TIMEOUT/FAILED/ERROR exactly as the original's
// _run_test_case: elaboration failure is ERROR, a stop-time message in
// stdout is TIMEOUT, any other non-zero exit is FAILED, zero is PASSED.
func Run(order []*unit.File, opts Options) (backend.Runner, error) {
	switches, err := commonSwitches(order, opts)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, sink io.Writer, tc testcase.TestCase) (backend.ResultClass, error) {
		fmt.Fprintf(sink, "Elaborating %s...\n", tc.Entity)
		elabArgs := append(append([]string{"-e"}, switches...), "--work="+tc.File.Library, tc.Entity)
		elab := exec.CommandContext(ctx, ghdlPath(opts), elabArgs...)
		var elabOut bytes.Buffer
		elab.Stdout = io.MultiWriter(sink, &elabOut)
		elab.Stderr = io.MultiWriter(sink, &elabOut)
		if err := elab.Run(); err != nil {
			fmt.Fprintf(sink, "Elaboration for %s failed!\n", tc.Entity)
			return backend.Error, err
		}

		fmt.Fprintf(sink, "Running %s...\n", tc.Entity)
		timeout := strings.ReplaceAll(backend.Timeout(sink, tc), " ", "")
		runArgs := append(append([]string{"-r"}, switches...), "--work="+tc.File.Library, tc.Entity, "--stop-time="+timeout)
		run := exec.CommandContext(ctx, ghdlPath(opts), runArgs...)
		var runOut bytes.Buffer
		run.Stdout = io.MultiWriter(sink, &runOut)
		run.Stderr = sink
		runErr := run.Run()

		switch {
		case strings.Contains(runOut.String(), "simulation stopped by --stop-time"):
			return backend.Timeout, nil
		case runErr != nil:
			return backend.Failed, nil
		default:
			return backend.Passed, nil
		}
	}, nil
}
