package vsim

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-vhdeps/vhdeps/internal/testcase"
	"github.com/go-vhdeps/vhdeps/internal/unit"
)

func mkFile(t *testing.T, dir, name, content string) *unit.File {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := unit.New(p, unit.Options{Library: "work"})
	if err != nil {
		t.Fatalf("unit.New(%s): %v", name, err)
	}
	return f
}

func TestEmitIncludesSourcesAndTestCases(t *testing.T) {
	dir := t.TempDir()
	tc := mkFile(t, dir, "foo_tc.vhd", "entity foo_tc is\nend entity;\n")

	var buf, warn bytes.Buffer
	err := Emit(&buf, []*unit.File{tc}, []testcase.TestCase{{File: tc, Entity: "foo_tc"}}, Options{}, &warn)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "add_source {"+tc.Path+"} {work}") {
		t.Fatalf("expected add_source call for %s, got:\n%s", tc.Path, out)
	}
	if !strings.Contains(out, "add_test {work} {foo_tc}") {
		t.Fatalf("expected add_test call for foo_tc, got:\n%s", out)
	}
	if !strings.Contains(out, "Final summary:") {
		t.Fatalf("expected a final summary section, got:\n%s", out)
	}
	if !strings.Contains(warn.String(), "no simulation timeout specified for work.foo_tc") {
		t.Fatalf("expected a missing-timeout warning, got:\n%s", warn.String())
	}
}

func TestEmitDefaultLibDir(t *testing.T) {
	var buf, warn bytes.Buffer
	if err := Emit(&buf, nil, nil, Options{}, &warn); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(buf.String(), `set libdir "work-libs"`) {
		t.Fatalf("expected default libdir, got:\n%s", buf.String())
	}
}
