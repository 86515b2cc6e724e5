// Package backend defines the Backend contract of component 4.6 and the
// worker-pool execution model of §5: a backend is a function of
// (compile order, test cases, output sink, options) -> exit code. It may
// run a tool directly (a "direct-elaborate runner", grounded on the
// original tool's targets/ghdl.py) or emit a driver script instead (a
// "script emitter", grounded on targets/vsim.py). Concurrency plumbing is
// generalized from the original's queue.Queue/threading.Thread pool and
// the teacher's os/exec + context.Context subprocess idiom
// (internal/policy/daemon.go) into a golang.org/x/sync/semaphore pool.
package backend

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/go-vhdeps/vhdeps/internal/testcase"
	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

// ResultClass classifies one test case's outcome (§4.6, §7).
type ResultClass int

const (
	Passed ResultClass = iota
	Timeout
	Failed
	Error
)

func (c ResultClass) String() string {
	switch c {
	case Passed:
		return "PASSED"
	case Timeout:
		return "TIMEOUT"
	case Failed:
		return "FAILED"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of running one TestCase.
type Result struct {
	Case  testcase.TestCase
	Class ResultClass
	Err   error // non-nil when Class is Error
}

// DefaultTimeout is used when a test case carries no simulation-timeout
// pragma (§5 "Timeouts").
const DefaultTimeout = "1 ms"

// Options configures a backend run. Jobs <= 1 runs test cases
// sequentially; Jobs > 1 bounds the worker pool to that many concurrent
// cases (§5).
type Options struct {
	Jobs int
}

// Runner executes one test case, producing its classification. Concrete
// backends supply this; it is the seam that lets the worker pool in Run
// stay backend-agnostic.
type Runner func(ctx context.Context, sink io.Writer, tc testcase.TestCase) (ResultClass, error)

// AnalyzeFunc runs the per-file analyze step over the compile order in
// order, returning a non-nil error (wrapped vherr.KindAnalyzeFail) on the
// first tool failure, mirroring the original's sequential "Analyzing
// (i/n) ..." loop.
type AnalyzeFunc func(ctx context.Context, sink io.Writer, order []*unit.File) error

// Run drives the common contract shared by every backend: analyze the
// compile order, then run every test case (sequentially or via a bounded
// worker pool), then print a deterministic summary. It returns the
// process exit code (§6: 1 for any non-passing case, 0 otherwise; an
// AnalyzeFunc error is surfaced to the caller unconverted so the driver
// can map it to exit code 2 via vherr.KindAnalyzeFail).
func Run(ctx context.Context, sink io.Writer, order []*unit.File, cases []testcase.TestCase, analyze AnalyzeFunc, run Runner, opts Options) (int, error) {
	if analyze != nil {
		if err := analyze(ctx, sink, order); err != nil {
			return 0, vherr.Wrap(vherr.KindAnalyzeFail, err, "analysis failed")
		}
	}

	results, err := runCases(ctx, sink, cases, run, opts)
	if err != nil {
		return 0, err
	}

	printSummary(sink, results)

	for _, r := range results {
		if r.Class != Passed {
			return 1, nil
		}
	}
	return 0, nil
}

// runCases executes every test case, sequentially when opts.Jobs <= 1 or
// via a semaphore-bounded worker pool otherwise. A mutex protects sink
// across concurrent writers (§5's "mutex protecting the shared output
// sink"). Cancellation (ctx done) stops launching new work; in-flight
// cases are allowed to finish, matching §5's drain-then-join contract.
func runCases(ctx context.Context, sink io.Writer, cases []testcase.TestCase, run Runner, opts Options) ([]Result, error) {
	if opts.Jobs <= 1 {
		results := make([]Result, 0, len(cases))
		for _, tc := range cases {
			if ctx.Err() != nil {
				break
			}
			class, err := run(ctx, sink, tc)
			results = append(results, Result{Case: tc, Class: class, Err: err})
		}
		return results, nil
	}

	sem := semaphore.NewWeighted(int64(opts.Jobs))
	var mu sync.Mutex
	var sinkMu sync.Mutex
	results := make([]Result, len(cases))

	var wg sync.WaitGroup
	for i, tc := range cases {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: stop launching new work, let in-flight
			// cases finish via wg.Wait below.
			break
		}
		wg.Add(1)
		go func(i int, tc testcase.TestCase) {
			defer wg.Done()
			defer sem.Release(1)

			var buf writerBuf
			class, err := run(ctx, &buf, tc)

			sinkMu.Lock()
			_, _ = sink.Write(buf.data)
			sinkMu.Unlock()

			mu.Lock()
			results[i] = Result{Case: tc, Class: class, Err: err}
			mu.Unlock()
		}(i, tc)
	}
	wg.Wait()

	// Compact away any never-started slots left by cancellation.
	out := results[:0]
	for _, r := range results {
		if r.Case.File != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

type writerBuf struct{ data []byte }

func (w *writerBuf) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

// printSummary writes the final PASSED/FAILED/TIMEOUT/ERROR line for
// every result, ordered deterministically by (result class, library,
// entity name) per §5.
func printSummary(sink io.Writer, results []Result) {
	sorted := append([]Result{}, results...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if a.Case.File.Library != b.Case.File.Library {
			return a.Case.File.Library < b.Case.File.Library
		}
		return a.Case.Entity < b.Case.Entity
	})

	fmt.Fprintln(sink, "\nFinal summary:")
	for _, r := range sorted {
		fmt.Fprintf(sink, " * %-7s %s.%s\n", r.Class, r.Case.File.Library, r.Case.Entity)
	}
}

// Timeout returns tc's simulation timeout, or DefaultTimeout when the
// file carries no timeout pragma (§5). A missing pragma also prints a
// two-line warning to sink, matching the original tool's get_timeout,
// which warns once per test case the first time its timeout is read.
func Timeout(sink io.Writer, tc testcase.TestCase) string {
	if tc.File.Timeout != "" {
		return tc.File.Timeout
	}
	fmt.Fprintf(sink, "Warning: no simulation timeout specified for %s.%s, defaulting to %s.\n", tc.File.Library, tc.Entity, DefaultTimeout)
	fmt.Fprintln(sink, `Specify using "--pragma simulation timeout <VHDL timespec>"`)
	return DefaultTimeout
}
